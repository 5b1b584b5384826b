// Package prompt builds the per-batch extraction request.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ppiankov/triggerscope/internal/llm"
	"github.com/ppiankov/triggerscope/internal/model"
)

// CategoryDefinitions describe each category for the model
var CategoryDefinitions = map[model.Category]string{
	model.CategoryFear:       "what the buyer is afraid will happen (loss, exposure, failure, blame)",
	model.CategoryDesire:     "an outcome the buyer actively wants or wishes for",
	model.CategoryPainPoint:  "a current, concrete frustration or problem they live with today",
	model.CategoryObjection:  "a reason they hesitate to buy (price, risk, switching cost, doubt)",
	model.CategoryMotivation: "what pushes them to act or change now",
	model.CategoryTrust:      "what makes them believe or distrust a vendor (proof, reviews, guarantees)",
	model.CategoryUrgency:    "time pressure, deadlines or events forcing a decision",
}

// Options tune the request
type Options struct {
	MaxOutputTokens int
	MinPerCategory  int
	BannedTerms     []string
}

// Builder turns a batch of sources into a generation request
type Builder struct {
	vp   model.ValueProposition
	opts Options
}

// NewBuilder creates a builder for one business context
func NewBuilder(vp model.ValueProposition, opts Options) *Builder {
	return &Builder{vp: vp, opts: opts}
}

// Build creates the request for batch (0-based) of total. Samples are
// numbered from 1 in the prompt; validated references use that numbering.
func (b *Builder) Build(sources []model.VerifiedSource, batch, total int) llm.Request {
	return llm.Request{
		System:     b.system(),
		Prompt:     b.user(sources),
		MaxTokens:  b.opts.MaxOutputTokens,
		JSONOutput: true,
		RouteHint:  llm.RouteHint(batch, total),
	}
}

func (b *Builder) system() string {
	var s strings.Builder

	s.WriteString("You extract psychological buying triggers from real customer text.\n\n")
	s.WriteString("Categories (assign exactly one per trigger):\n")
	for _, c := range model.Categories {
		fmt.Fprintf(&s, "- %s: %s\n", c, CategoryDefinitions[c])
	}

	s.WriteString("\nRules:\n")
	s.WriteString("1. The title MUST be a short VERBATIM excerpt copied from one numbered sample. Do not paraphrase, summarize or merge samples.\n")
	s.WriteString("2. Cite the samples that support each trigger by their number in sampleReferences. Never copy sample text into any other field; do not add evidence, quote or excerpt fields.\n")
	s.WriteString("3. The summary is one sentence naming which part of the value proposition the excerpt supports (target customer, key benefit, transformation or differentiator).\n")
	s.WriteString("4. Do not comment on the data, the samples, the search or your own process. No phrases like \"based on the data\" or \"the search results\".\n")
	s.WriteString("5. Complaints are pain-point, not desire. Expressions of worry or being afraid are fear.\n")

	productCategory := strings.TrimSpace(b.vp.ProductCategory)
	if len(b.opts.BannedTerms) > 0 {
		if productCategory == "" {
			productCategory = "the specific product or service"
		}
		fmt.Fprintf(&s, "6. Never use generic jargon (%s). Say \"%s\" instead.\n",
			strings.Join(b.opts.BannedTerms, ", "), productCategory)
	}
	if b.opts.MinPerCategory > 0 {
		fmt.Fprintf(&s, "7. Return at least %d triggers for every category the samples support; do not return only one category.\n",
			b.opts.MinPerCategory)
	}

	s.WriteString("\nOutput: ONLY a JSON array, no prose. If a JSON object is required, use {\"triggers\": [...]}. Each element:\n")
	s.WriteString(`{"category": "fear", "title": "...", "summary": "...", "sampleReferences": [1, 4], "confidence": 0.0-1.0, ` +
		`"isTimeSensitive": false, "buyerJourneyStage": "awareness|consideration|decision", ` +
		`"buyerProductFit": 0.0-1.0, "buyerProductFitReasoning": "..."}`)
	s.WriteString("\n")

	return s.String()
}

func (b *Builder) user(sources []model.VerifiedSource) string {
	var s strings.Builder

	s.WriteString("Business context:\n")
	writeField(&s, "Business", b.vp.BusinessName)
	writeField(&s, "Product category", b.vp.ProductCategory)
	writeField(&s, "Target customer", b.vp.TargetCustomer)
	writeField(&s, "Key benefit", b.vp.KeyBenefit)
	if b.vp.Transformation.Before != "" || b.vp.Transformation.After != "" {
		fmt.Fprintf(&s, "- Transformation: from %q to %q\n", b.vp.Transformation.Before, b.vp.Transformation.After)
	}
	if len(b.vp.Differentiators) > 0 {
		writeField(&s, "Differentiators", strings.Join(b.vp.Differentiators, "; "))
	}
	if len(b.vp.Products) > 0 {
		writeField(&s, "Products", strings.Join(b.vp.Products, "; "))
	}

	fmt.Fprintf(&s, "\nSamples (%d):\n", len(sources))
	for i, src := range sources {
		fmt.Fprintf(&s, "[%d] %s\n", i+1, flatten(src.Sample.Content))
		platform := src.Sample.Platform
		if platform == "" {
			platform = "unknown"
		}
		fmt.Fprintf(&s, "    platform: %s\n", platform)
	}

	s.WriteString("\nReturn the JSON array now.\n")
	return s.String()
}

func writeField(s *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(s, "- %s: %s\n", label, value)
}

// flatten keeps each sample on one numbered line
func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
