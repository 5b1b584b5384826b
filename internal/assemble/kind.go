package assemble

import (
	"strings"

	"github.com/ppiankov/triggerscope/internal/model"
)

var sourceTypeKinds = map[string]model.SourceKind{
	"review":        model.KindVoiceOfCustomer,
	"testimonial":   model.KindVoiceOfCustomer,
	"support":       model.KindVoiceOfCustomer,
	"ticket":        model.KindVoiceOfCustomer,
	"survey":        model.KindVoiceOfCustomer,
	"forum":         model.KindCommunity,
	"community":     model.KindCommunity,
	"social":        model.KindCommunity,
	"thread":        model.KindCommunity,
	"comment":       model.KindCommunity,
	"discussion":    model.KindCommunity,
	"event":         model.KindEvent,
	"conference":    model.KindEvent,
	"webinar":       model.KindEvent,
	"meetup":        model.KindEvent,
	"talk":          model.KindEvent,
	"interview":     model.KindExecutive,
	"executive":     model.KindExecutive,
	"podcast":       model.KindExecutive,
	"leadership":    model.KindExecutive,
	"earnings_call": model.KindExecutive,
	"news":          model.KindNews,
	"press":         model.KindNews,
	"article":       model.KindNews,
	"blog":          model.KindNews,
	"publication":   model.KindNews,
}

var platformKinds = map[string]model.SourceKind{
	"g2":            model.KindVoiceOfCustomer,
	"capterra":      model.KindVoiceOfCustomer,
	"trustpilot":    model.KindVoiceOfCustomer,
	"gartner":       model.KindVoiceOfCustomer,
	"yelp":          model.KindVoiceOfCustomer,
	"amazon":        model.KindVoiceOfCustomer,
	"appstore":      model.KindVoiceOfCustomer,
	"playstore":     model.KindVoiceOfCustomer,
	"reddit":        model.KindCommunity,
	"hackernews":    model.KindCommunity,
	"hn":            model.KindCommunity,
	"quora":         model.KindCommunity,
	"twitter":       model.KindCommunity,
	"x":             model.KindCommunity,
	"facebook":      model.KindCommunity,
	"discord":       model.KindCommunity,
	"slack":         model.KindCommunity,
	"stackoverflow": model.KindCommunity,
	"youtube":       model.KindCommunity,
	"linkedin":      model.KindCommunity,
	"eventbrite":    model.KindEvent,
	"meetup":        model.KindEvent,
	"techcrunch":    model.KindNews,
	"medium":        model.KindNews,
	"substack":      model.KindNews,
	"news":          model.KindNews,
}

// KindOf infers a sample's coarse source kind from its declared source type,
// falling back to its platform.
func KindOf(s model.RawSample) model.SourceKind {
	if k, ok := sourceTypeKinds[normalizeKey(s.SourceType)]; ok {
		return k
	}
	if k, ok := platformKinds[normalizeKey(s.Platform)]; ok {
		return k
	}
	return model.KindUnknown
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".com")
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case "app_store":
		return "appstore"
	case "play_store", "google_play":
		return "playstore"
	case "hacker_news":
		return "hackernews"
	case "earnings", "earnings_call":
		return "earnings_call"
	}
	if strings.HasSuffix(s, "s") {
		if _, ok := sourceTypeKinds[s[:len(s)-1]]; ok {
			return s[:len(s)-1]
		}
	}
	return s
}

// Triangulation multipliers by number of distinct source kinds
const (
	TriangulatedStrong = 1.3  // three or more kinds
	TriangulatedPair   = 1.15 // two kinds
	SingleKind         = 0.9
	MaxConfidence      = 0.99
)

// Triangulate scales confidence by how many distinct source kinds back the
// evidence. The result never exceeds MaxConfidence.
func Triangulate(confidence float64, kinds int) float64 {
	mult := SingleKind
	switch {
	case kinds >= 3:
		mult = TriangulatedStrong
	case kinds == 2:
		mult = TriangulatedPair
	}
	c := confidence * mult
	if c > MaxConfidence {
		c = MaxConfidence
	}
	if c < 0 {
		c = 0
	}
	return c
}
