// Package rules holds the pattern catalogs used to vet generated trigger text.
// Catalogs are plain data so they can be tuned from YAML without touching the
// validator.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ppiankov/triggerscope/internal/model"
	"gopkg.in/yaml.v3"
)

// Config is the serializable form of every catalog
type Config struct {
	Garbage         []string        `yaml:"garbage"`          // meta-commentary, placeholders, cut-off text
	QuoteIndicators []string        `yaml:"quote_indicators"` // at least one must match a title
	SummaryMeta     []string        `yaml:"summary_meta"`     // commentary about the data or process
	BannedTerms     []string        `yaml:"banned_terms"`     // generic jargon, matched as whole words
	Inversions      []InversionRule `yaml:"inversions"`       // deterministic re-categorization
	Leakage         []string        `yaml:"leakage"`          // prompt fragments echoed back
	SelfPromotion   []string        `yaml:"self_promotion"`   // marketing copy, zero relevance
	EvidenceFields  []string        `yaml:"evidence_fields"`  // embedded free-text evidence keys
}

// InversionRule moves a candidate whose text matches Pattern from any of
// From (or any category when From is empty) to To.
type InversionRule struct {
	Name    string           `yaml:"name"`
	From    []model.Category `yaml:"from,omitempty"`
	Pattern string           `yaml:"pattern"`
	To      model.Category   `yaml:"to"`
}

// DefaultConfig returns the built-in catalogs
func DefaultConfig() Config {
	return Config{
		Garbage: []string{
			`(?i)\bsearch results?\b`,
			`(?i)\b(based on|according to) (the )?(data|samples?|results?|provided|analysis)\b`,
			`(?i)\bthe (provided|given|above) (samples?|data|text|content)\b`,
			`(?i)\bas an ai\b`,
			`(?i)\b(unable|not able) to (extract|find|identify)\b`,
			`(?i)\bno (relevant )?(triggers?|quotes?|data) (found|available)\b`,
			`\[[A-Za-z _-]+\]`, // [Product Name] style placeholders
			`(?i)\b(insert|placeholder|lorem ipsum)\b`,
			`(?i)\b(and|or|the|to|a|of|with|for|but|because)\s*$`, // cut off mid-clause
			`(\.\.\.|…)\s*$`,
			`(?i)^(customers|users|people|businesses|clients|buyers|many|some|most|companies)\s+(are|want|need|feel|often|tend|seem|may|might|would|express|report|mention)\b`,
		},
		QuoteIndicators: []string{
			`(?i)\b(i|i'm|im|i've|i'd|my|me|mine|we|we're|our|us)\b`,
			`\?`,
			`!`,
			`(?i)\b(hate|love|frustrat\w*|annoy\w*|worr\w*|afraid|scared|fear\w*|tired|sick of|nightmare|terrible|awful|amazing|finally|wish|desperate|stress\w*|angry|disappoint\w*|confus\w*|overwhelm\w*|can't|cannot|won't|never|always)\b`,
			`(?i)\b(cost\w*|price\w*|pricing|expensive|cheap|afford\w*|budget|money|\$\d+|fee\w*|deadline|urgent\w*|asap|immediately|now|today|before|losing|lost|waste\w*)\b`,
		},
		SummaryMeta: []string{
			`(?i)\bsearch results?\b`,
			`(?i)\bthe (provided|given) (samples?|data|text)\b`,
			`(?i)\bthis (dataset|data set|sample set)\b`,
			`(?i)\bas an ai\b`,
			`(?i)\b(i|we) (was|were|am|are) (unable|not able)\b`,
			`(?i)\bthe (scraper|scraping|search) (process|tool|query)\b`,
		},
		BannedTerms: []string{
			"solution", "solutions", "platform", "synergy", "leverage", "best-in-class",
			"cutting-edge", "next-generation", "holistic", "robust", "seamless", "innovative",
			"industry-leading", "world-class", "game-changer", "paradigm",
		},
		Inversions: []InversionRule{
			{
				Name:    "complaint-tagged-desire",
				From:    []model.Category{model.CategoryDesire, model.CategoryMotivation},
				Pattern: `(?i)\b(frustrat\w*|annoy\w*|hate|sick of|tired of|fed up|complain\w*|broken|doesn't work|never works|waste of|slow)\b`,
				To:      model.CategoryPainPoint,
			},
			{
				Name:    "fear-tagged-elsewhere",
				From:    []model.Category{model.CategoryDesire, model.CategoryPainPoint, model.CategoryMotivation, model.CategoryObjection, model.CategoryUrgency},
				Pattern: `(?i)\b(afraid|scared|terrified|fear\w*|worr(y|ied|ies)|anxious|panic\w*|nervous)\b`,
				To:      model.CategoryFear,
			},
			{
				Name:    "price-hesitation-tagged-pain",
				From:    []model.Category{model.CategoryPainPoint, model.CategoryDesire},
				Pattern: `(?i)\b(too expensive|not worth|can't justify|cannot justify|can't afford|over budget|not sure (it|if)|skeptic\w*)\b`,
				To:      model.CategoryObjection,
			},
			{
				Name:    "deadline-tagged-elsewhere",
				From:    []model.Category{model.CategoryDesire, model.CategoryMotivation},
				Pattern: `(?i)\b(deadline|by (monday|friday|tomorrow|end of (the )?(week|month|quarter))|running out of time|asap|right now)\b`,
				To:      model.CategoryUrgency,
			},
		},
		Leakage: []string{
			`(?i)^\s*(from |in |per )?samples? \[?\d+\]?\s*[:\-]\s*`,
			`(?i)^\s*\[\d+\]\s*[:\-]?\s*`,
			`(?i)^\s*(quote|excerpt|verbatim|title|trigger)\s*:\s*`,
			`(?i)\s*\((samples?|source) \[?\d+(,\s*\d+)*\]?\)\s*$`,
			`^["'“”‘’]+|["'“”‘’]+$`,
		},
		SelfPromotion: []string{
			`(?i)\bindustry[- ]leading\b`,
			`(?i)\btrusted by (thousands|millions|\d[\d,]*\+?)\b`,
			`(?i)\bbest[- ]in[- ]class\b`,
			`(?i)\baward[- ]winning\b`,
			`(?i)\b(world|market)[- ]leader\b`,
			`(?i)\bstart (your|a) free trial\b`,
			`(?i)\b(sign|signup|sign up) (today|now)\b`,
			`(?i)\b#1 (rated|choice)\b`,
			`(?i)\bleading provider of\b`,
			`(?i)\bcutting[- ]edge (technology|platform|solution)s?\b`,
		},
		EvidenceFields: []string{"evidence", "quote", "quotes", "excerpt", "excerpts", "supporting_quote"},
	}
}

// Load reads a YAML catalog file. Sections present in the file replace the
// defaults; absent sections keep them.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read rules file: %w", err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("parse rules file: %w", err)
	}

	if override.Garbage != nil {
		cfg.Garbage = override.Garbage
	}
	if override.QuoteIndicators != nil {
		cfg.QuoteIndicators = override.QuoteIndicators
	}
	if override.SummaryMeta != nil {
		cfg.SummaryMeta = override.SummaryMeta
	}
	if override.BannedTerms != nil {
		cfg.BannedTerms = override.BannedTerms
	}
	if override.Inversions != nil {
		cfg.Inversions = override.Inversions
	}
	if override.Leakage != nil {
		cfg.Leakage = override.Leakage
	}
	if override.SelfPromotion != nil {
		cfg.SelfPromotion = override.SelfPromotion
	}
	if override.EvidenceFields != nil {
		cfg.EvidenceFields = override.EvidenceFields
	}

	return cfg, nil
}

// Rules is the compiled form of Config
type Rules struct {
	garbage         []*regexp.Regexp
	quoteIndicators []*regexp.Regexp
	summaryMeta     []*regexp.Regexp
	bannedTerms     []*regexp.Regexp
	bannedWords     []string
	inversions      []compiledInversion
	leakage         []*regexp.Regexp
	selfPromotion   []*regexp.Regexp
	evidenceFields  []string
}

type compiledInversion struct {
	name    string
	from    map[model.Category]bool
	pattern *regexp.Regexp
	to      model.Category
}

// Compile compiles every pattern and fails on the first invalid one
func Compile(cfg Config) (*Rules, error) {
	r := &Rules{
		bannedWords:    cfg.BannedTerms,
	}
	for _, f := range cfg.EvidenceFields {
		if f = fieldKey(f); f != "" {
			r.evidenceFields = append(r.evidenceFields, f)
		}
	}

	var err error
	if r.garbage, err = compileAll("garbage", cfg.Garbage); err != nil {
		return nil, err
	}
	if r.quoteIndicators, err = compileAll("quote_indicators", cfg.QuoteIndicators); err != nil {
		return nil, err
	}
	if r.summaryMeta, err = compileAll("summary_meta", cfg.SummaryMeta); err != nil {
		return nil, err
	}
	if r.leakage, err = compileAll("leakage", cfg.Leakage); err != nil {
		return nil, err
	}
	if r.selfPromotion, err = compileAll("self_promotion", cfg.SelfPromotion); err != nil {
		return nil, err
	}

	for _, term := range cfg.BannedTerms {
		re, err := regexp.Compile(`(?i)(^|[^\w-])` + regexp.QuoteMeta(term) + `($|[^\w-])`)
		if err != nil {
			return nil, fmt.Errorf("banned term %q: %w", term, err)
		}
		r.bannedTerms = append(r.bannedTerms, re)
	}

	for _, inv := range cfg.Inversions {
		if !inv.To.Valid() {
			return nil, fmt.Errorf("inversion %q: unknown target category %q", inv.Name, inv.To)
		}
		re, err := regexp.Compile(inv.Pattern)
		if err != nil {
			return nil, fmt.Errorf("inversion %q: %w", inv.Name, err)
		}
		from := make(map[model.Category]bool, len(inv.From))
		for _, c := range inv.From {
			from[c] = true
		}
		r.inversions = append(r.inversions, compiledInversion{name: inv.Name, from: from, pattern: re, to: inv.To})
	}

	return r, nil
}

// MustDefault compiles DefaultConfig and panics if the built-in catalogs are broken
func MustDefault() *Rules {
	r, err := Compile(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return r
}

func compileAll(section string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s pattern %q: %w", section, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Garbage returns the first garbage pattern matching text, or "" if none
func (r *Rules) Garbage(text string) string {
	return firstMatch(r.garbage, text)
}

// HasQuoteIndicator reports whether text reads like an extracted quote
func (r *Rules) HasQuoteIndicator(text string) bool {
	return firstMatch(r.quoteIndicators, text) != ""
}

// SummaryMeta returns the first meta-commentary pattern matching text
func (r *Rules) SummaryMeta(text string) string {
	return firstMatch(r.summaryMeta, text)
}

// BannedTerm returns the first banned term present in text
func (r *Rules) BannedTerm(text string) string {
	for i, re := range r.bannedTerms {
		if re.MatchString(text) {
			return r.bannedWords[i]
		}
	}
	return ""
}

// BannedTerms returns the configured banned vocabulary
func (r *Rules) BannedTerms() []string {
	return r.bannedWords
}

// Invert applies the first matching inversion rule. It returns the new
// category, the rule name, and whether anything changed.
func (r *Rules) Invert(category model.Category, text string) (model.Category, string, bool) {
	for _, inv := range r.inversions {
		if inv.to == category {
			continue
		}
		if len(inv.from) > 0 && !inv.from[category] {
			continue
		}
		if inv.pattern.MatchString(text) {
			return inv.to, inv.name, true
		}
	}
	return category, "", false
}

// StripLeakage removes echoed prompt fragments until nothing more matches
func (r *Rules) StripLeakage(text string) string {
	out := strings.TrimSpace(text)
	for pass := 0; pass < 3; pass++ {
		before := out
		for _, re := range r.leakage {
			out = strings.TrimSpace(re.ReplaceAllString(out, ""))
		}
		if out == before {
			break
		}
	}
	return out
}

// SelfPromotion returns the first self-promotional pattern matching text
func (r *Rules) SelfPromotion(text string) string {
	return firstMatch(r.selfPromotion, text)
}

// IsEvidenceField reports whether a wire key carries embedded evidence text.
// Keys compare case-insensitively with '_' and '-' removed, and a configured
// field also matches as a key prefix or suffix: "evidenceText" and
// "supporting_quote" both count.
func (r *Rules) IsEvidenceField(key string) bool {
	key = fieldKey(key)
	if key == "" {
		return false
	}
	for _, f := range r.evidenceFields {
		if key == f || strings.HasPrefix(key, f) || strings.HasSuffix(key, f) {
			return true
		}
	}
	return false
}

var keySeparators = strings.NewReplacer("_", "", "-", "", " ", "")

func fieldKey(s string) string {
	return keySeparators.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if re.MatchString(text) {
			return re.String()
		}
	}
	return ""
}
