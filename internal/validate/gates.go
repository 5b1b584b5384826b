package validate

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/rules"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Rejection reasons
const (
	ReasonMissingCategory   = "missing_category"
	ReasonUnknownCategory   = "unknown_category"
	ReasonMissingTitle      = "missing_title"
	ReasonMissingSummary    = "missing_summary"
	ReasonMissingReferences = "missing_references"
	ReasonEmbeddedEvidence  = "embedded_evidence"
	ReasonTitleGarbage      = "title_garbage"
	ReasonTitleNotQuote     = "title_not_quote"
	ReasonSummaryMeta       = "summary_meta"
	ReasonSummaryBanned     = "summary_banned_term"
	ReasonEmptyAfterCleanup = "empty_after_cleanup"
	ReasonNotAnObject       = "not_an_object"
)

const defaultConfidence = 0.5

// Result is the outcome of parsing one batch response
type Result struct {
	Candidates    []model.Candidate
	Total         int            // objects found before gating
	Recovered     bool           // objects came from truncation recovery
	Recategorized int            // candidates moved by an inversion rule
	Rejections    map[string]int // reason -> count
}

// Rejected returns the number of objects that failed a gate
func (r Result) Rejected() int {
	n := 0
	for _, c := range r.Rejections {
		n += c
	}
	return n
}

// Validator runs generated output through the gates
type Validator struct {
	rules  *rules.Rules
	logger *zap.Logger
}

// New creates a new Validator
func New(r *rules.Rules, logger *zap.Logger) *Validator {
	if r == nil {
		r = rules.MustDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{rules: r, logger: logger}
}

// Parse extracts, recovers and gates raw generated text. An error is only
// returned when nothing structured could be found at all.
func (v *Validator) Parse(raw string) (Result, error) {
	res := Result{Rejections: make(map[string]int)}

	objects, recovered, ok := decodeObjects(extractPayload(raw))
	if !ok {
		return res, eris.Wrapf(model.ErrMalformedOutput, "no complete object in %d bytes", len(raw))
	}
	res.Recovered = recovered
	res.Total = len(objects)

	if recovered {
		v.logger.Warn("recovered objects from truncated output", zap.Int("objects", len(objects)))
	}

	for _, obj := range objects {
		cand, reason, fragment := v.gate(obj)
		if reason != "" {
			res.Rejections[reason]++
			v.logger.Info("candidate rejected",
				zap.String("reason", reason),
				zap.String("fragment", truncate(fragment, 120)),
				zap.Error(eris.Wrap(model.ErrValidationRejection, reason)),
			)
			continue
		}
		if cand.Recategorized {
			res.Recategorized++
		}
		res.Candidates = append(res.Candidates, cand)
	}

	return res, nil
}

// gate converts one raw object into a candidate, or returns the rejection
// reason and the text fragment that caused it.
func (v *Validator) gate(obj json.RawMessage) (model.Candidate, string, string) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(obj, &keys); err != nil {
		return model.Candidate{}, ReasonNotAnObject, string(obj)
	}

	var w wireCandidate
	if err := json.Unmarshal(obj, &w); err != nil {
		return model.Candidate{}, ReasonNotAnObject, string(obj)
	}

	// Structural
	for key := range keys {
		if v.rules.IsEvidenceField(key) {
			return model.Candidate{}, ReasonEmbeddedEvidence, key
		}
	}
	if strings.TrimSpace(w.Category) == "" {
		return model.Candidate{}, ReasonMissingCategory, w.Title
	}
	category, ok := model.ParseCategory(w.Category)
	if !ok {
		return model.Candidate{}, ReasonUnknownCategory, w.Category
	}
	title := strings.TrimSpace(w.Title)
	if title == "" {
		return model.Candidate{}, ReasonMissingTitle, string(obj)
	}
	summary := strings.TrimSpace(w.summary())
	if summary == "" {
		return model.Candidate{}, ReasonMissingSummary, title
	}
	refs := w.references()
	if len(refs) == 0 {
		return model.Candidate{}, ReasonMissingReferences, title
	}

	// Title
	if v.rules.Garbage(title) != "" {
		return model.Candidate{}, ReasonTitleGarbage, title
	}
	if !v.rules.HasQuoteIndicator(title) {
		return model.Candidate{}, ReasonTitleNotQuote, title
	}

	// Summary
	if v.rules.SummaryMeta(summary) != "" {
		return model.Candidate{}, ReasonSummaryMeta, summary
	}
	if term := v.rules.BannedTerm(summary); term != "" {
		return model.Candidate{}, ReasonSummaryBanned, term
	}

	// Inversion
	recategorized := false
	if to, rule, changed := v.rules.Invert(category, title); changed {
		v.logger.Debug("category corrected",
			zap.String("rule", rule),
			zap.String("from", string(category)),
			zap.String("to", string(to)),
			zap.String("title", truncate(title, 120)),
		)
		category = to
		recategorized = true
	}

	// Leakage
	title = capitalize(v.rules.StripLeakage(title))
	summary = capitalize(v.rules.StripLeakage(summary))
	if title == "" || summary == "" {
		return model.Candidate{}, ReasonEmptyAfterCleanup, w.Title
	}

	confidence := defaultConfidence
	if w.Confidence != nil {
		confidence = float64(*w.Confidence)
	}

	return model.Candidate{
		Category:                 category,
		Title:                    title,
		ExecutiveSummary:         summary,
		SampleReferences:         refs,
		Confidence:               clamp01(confidence),
		IsTimeSensitive:          bool(w.IsTimeSensitive),
		BuyerJourneyStage:        strings.ToLower(strings.TrimSpace(w.BuyerJourneyStage)),
		BuyerProductFit:          clamp01(float64(w.BuyerProductFit)),
		BuyerProductFitReasoning: strings.TrimSpace(w.BuyerProductFitReasoning),
		Recategorized:            recategorized,
	}, "", ""
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
