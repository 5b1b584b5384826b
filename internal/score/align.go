package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/util"
)

// FallbackScore is the match score of a category-based fallback alignment
const FallbackScore = 0.3

// fallbackComponent maps each category to the component it most often speaks to
var fallbackComponent = map[model.Category]model.AlignmentComponent{
	model.CategoryFear:       model.ComponentTransformation,
	model.CategoryPainPoint:  model.ComponentTransformation,
	model.CategoryObjection:  model.ComponentUniqueSolution,
	model.CategoryDesire:     model.ComponentKeyBenefit,
	model.CategoryMotivation: model.ComponentKeyBenefit,
	model.CategoryUrgency:    model.ComponentKeyBenefit,
	model.CategoryTrust:      model.ComponentUniqueSolution,
}

type component struct {
	name model.AlignmentComponent
	text string
}

func components(vp model.ValueProposition) []component {
	return []component{
		{model.ComponentTargetCustomer, vp.TargetCustomer},
		{model.ComponentKeyBenefit, vp.KeyBenefit},
		{model.ComponentTransformation, vp.Transformation.Before + " " + vp.Transformation.After},
		{model.ComponentUniqueSolution, strings.Join(append(append([]string(nil), vp.Differentiators...), vp.Products...), " ")},
	}
}

// Align links a trigger to the value-proposition components its text shares
// vocabulary with. Components scoring above threshold are attached, best
// first; when none qualify a category-based fallback is attached so every
// trigger carries at least one alignment.
func Align(t model.ConsolidatedTrigger, vp model.ValueProposition, threshold float64) []model.ValuePropAlignment {
	text := triggerTokens(t)

	var out []model.ValuePropAlignment
	for _, c := range components(vp) {
		compTokens := util.TokenSet(c.text)
		if len(compTokens) == 0 {
			continue
		}
		shared := sharedTokens(compTokens, text)
		score := float64(len(shared)) / float64(len(compTokens))
		if score <= threshold {
			continue
		}
		out = append(out, model.ValuePropAlignment{
			Component:   c.name,
			MatchScore:  score,
			MatchReason: "shared terms: " + strings.Join(shared, ", "),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})

	if len(out) == 0 {
		comp, ok := fallbackComponent[t.Category]
		if !ok {
			comp = model.ComponentKeyBenefit
		}
		out = append(out, model.ValuePropAlignment{
			Component:   comp,
			MatchScore:  FallbackScore,
			MatchReason: fmt.Sprintf("category fallback: %s triggers map to %s", t.Category, comp),
		})
	}

	return out
}

// triggerTokens is the vocabulary of a trigger's title, summary and quotes
func triggerTokens(t model.ConsolidatedTrigger) map[string]bool {
	return util.TokenSet(textOf(t))
}

func sharedTokens(a, b map[string]bool) []string {
	var out []string
	for tok := range a {
		if b[tok] {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}
