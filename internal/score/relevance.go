package score

import (
	"fmt"
	"strings"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/util"
)

// Profile weighting bonuses
const (
	PriorityCategoryBonus = 0.2
	PriorityPlatformBonus = 0.1
)

// ProfileRelevance is 1 plus the priority bonuses, times the category weight.
// A nil profile yields 1.
func ProfileRelevance(t model.ConsolidatedTrigger, profile *model.BusinessProfile) float64 {
	if profile == nil {
		return 1
	}

	rel := 1.0
	if hasCategory(profile.PriorityCategories, t.Category) {
		rel += PriorityCategoryBonus
	}
	if hasPlatform(profile.PriorityPlatforms, t.Platforms()) {
		rel += PriorityPlatformBonus
	}
	if w, ok := profile.CategoryWeights[t.Category]; ok && w > 0 {
		rel *= w
	}
	return rel
}

// vocabularyFit is twice the share of trigger tokens found in the business
// vocabulary, capped at 1.
func vocabularyFit(t model.ConsolidatedTrigger, vocab map[string]bool) float64 {
	tokens := util.TokenSet(t.Title + " " + t.ExecutiveSummary)
	if len(tokens) == 0 || len(vocab) == 0 {
		return 0
	}
	return clamp(2*util.Coverage(tokens, vocab), 0, 1)
}

// profileFit starts at 0.5 and rises with priority category and platform
func profileFit(t model.ConsolidatedTrigger, profile *model.BusinessProfile) float64 {
	fit := 0.5
	if profile == nil {
		return fit
	}
	if hasCategory(profile.PriorityCategories, t.Category) {
		fit += 0.3
	}
	if hasPlatform(profile.PriorityPlatforms, t.Platforms()) {
		fit += 0.2
	}
	return fit
}

// geographicFit is 1 when no locations are configured or one is mentioned,
// otherwise 0.5.
func geographicFit(t model.ConsolidatedTrigger, locations []string) float64 {
	if len(locations) == 0 {
		return 1
	}
	text := " " + util.NormalizeText(textOf(t)) + " "
	for _, loc := range locations {
		norm := util.NormalizeText(loc)
		if norm != "" && strings.Contains(text, " "+norm+" ") {
			return 1
		}
	}
	return 0.5
}

func formula(cfg model.ScoringConfig, b model.RelevanceBreakdown, result float64) string {
	if b.SelfPromotion {
		return "self-promotional language = 0"
	}
	return fmt.Sprintf("(%.2f*%.2f vocabulary + %.2f*%.2f profile + %.2f*%.2f geographic) * %.2f tier = %.3f",
		cfg.VocabularyWeight, b.Vocabulary,
		cfg.ProfileWeight, b.ProfileFit,
		cfg.GeographicWeight, b.GeographicFit,
		b.TierMultiplier, result)
}

func textOf(t model.ConsolidatedTrigger) string {
	parts := []string{t.Title, t.ExecutiveSummary}
	for _, ev := range t.Evidence {
		parts = append(parts, ev.Quote)
	}
	return strings.Join(parts, " ")
}

func hasCategory(list []model.Category, c model.Category) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func hasPlatform(priority, platforms []string) bool {
	for _, p := range priority {
		p = strings.ToLower(strings.TrimSpace(p))
		for _, have := range platforms {
			if p == have {
				return true
			}
		}
	}
	return false
}

func clamp(f, lo, hi float64) float64 {
	switch {
	case f < lo:
		return lo
	case f > hi:
		return hi
	}
	return f
}

// vocabulary collects every business-context token
func vocabulary(vp model.ValueProposition) map[string]bool {
	parts := []string{
		vp.BusinessName, vp.ProductCategory, vp.TargetCustomer, vp.KeyBenefit,
		vp.Transformation.Before, vp.Transformation.After,
	}
	parts = append(parts, vp.Differentiators...)
	parts = append(parts, vp.Products...)
	return util.TokenSet(strings.Join(parts, " "))
}
