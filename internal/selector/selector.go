// Package selector bounds the sample set sent to generation, favoring text
// that carries psychological signal.
package selector

import (
	"sort"
	"strings"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/util"
)

// Lexicon is the fear/desire/frustration vocabulary. Entries ending in '*'
// match any token with that prefix.
var Lexicon = []string{
	// fear
	"afraid", "scared", "terrified", "fear*", "worr*", "anxious", "nervous", "risk*", "panic*", "lose", "losing", "lost",
	// desire
	"wish", "want*", "hope*", "love*", "dream*", "need*", "finally", "easier", "faster",
	// frustration
	"frustrat*", "annoy*", "hate*", "tired", "sick", "broken", "slow", "waste*", "nightmare", "terrible", "awful", "confus*",
	// objection and cost
	"expensive", "cost*", "price*", "pricing", "afford*", "budget", "worth", "skeptic*",
	// urgency and trust
	"deadline", "urgent*", "asap", "trust*", "reliab*", "recommend*",
}

// Score counts lexicon hits in content
func Score(content string) int {
	score := 0
	for _, tok := range util.Tokens(content) {
		for _, term := range Lexicon {
			if strings.HasSuffix(term, "*") {
				if strings.HasPrefix(tok, term[:len(term)-1]) {
					score++
					break
				}
			} else if tok == term {
				score++
				break
			}
		}
	}
	return score
}

type scored struct {
	source model.VerifiedSource
	score  int
}

// SelectBest returns up to limit sources ordered by lexicon score, highest
// first. Ties keep input order. limit <= 0 returns every source ranked.
func SelectBest(sources []model.VerifiedSource, limit int) []model.VerifiedSource {
	ranked := make([]scored, len(sources))
	for i, s := range sources {
		ranked[i] = scored{source: s, score: Score(s.Sample.Content)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]model.VerifiedSource, len(ranked))
	for i, r := range ranked {
		out[i] = r.source
	}
	return out
}

// Unique drops repeated source ids, keeping first occurrence
func Unique(sources []model.VerifiedSource) []model.VerifiedSource {
	seen := make(map[string]bool, len(sources))
	out := make([]model.VerifiedSource, 0, len(sources))
	for _, s := range sources {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}
