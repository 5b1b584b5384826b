// Package assemble turns validated candidates into evidence-backed triggers.
// Evidence text is always copied out of the registry, never taken from
// generated output.
package assemble

import (
	"github.com/google/uuid"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/registry"
	"github.com/ppiankov/triggerscope/internal/util"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Report counts what happened to one batch's candidates
type Report struct {
	Assembled      int `json:"assembled"`
	DroppedEmpty   int `json:"dropped_empty"`   // no resolvable evidence
	UnresolvedRefs int `json:"unresolved_refs"` // individual references dropped
	Reanchored     int `json:"reanchored"`      // references moved to a better-matching source
}

// Assembler resolves sample references against the registry
type Assembler struct {
	registry *registry.Registry
	cfg      model.SynthesisConfig
	logger   *zap.Logger
	newID    func() string
}

// New creates a new Assembler
func New(reg *registry.Registry, cfg model.SynthesisConfig, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Assemble converts candidates produced for batch (whose prompt listed
// sources in order) into consolidated triggers. Candidates without any
// resolvable evidence are dropped.
func (a *Assembler) Assemble(candidates []model.Candidate, sources []model.VerifiedSource, batch int) ([]model.ConsolidatedTrigger, Report) {
	var (
		out    []model.ConsolidatedTrigger
		report Report
	)

	for _, cand := range candidates {
		evidence, kinds := a.resolve(cand, sources, batch, &report)
		if len(evidence) == 0 {
			report.DroppedEmpty++
			a.logger.Info("candidate dropped",
				zap.Int("batch", batch),
				zap.String("title", cand.Title),
				zap.Error(eris.Wrapf(model.ErrEmptyEvidence, "%d references", len(cand.SampleReferences))),
			)
			continue
		}

		out = append(out, model.ConsolidatedTrigger{
			ID:                       a.newID(),
			Category:                 cand.Category,
			Title:                    cand.Title,
			ExecutiveSummary:         cand.ExecutiveSummary,
			Confidence:               Triangulate(cand.Confidence, kinds),
			Evidence:                 evidence,
			BuyerJourneyStage:        cand.BuyerJourneyStage,
			BuyerProductFit:          cand.BuyerProductFit,
			BuyerProductFitReasoning: cand.BuyerProductFitReasoning,
			IsTimeSensitive:          cand.IsTimeSensitive,
			BatchIndex:               batch,
			ProfileRelevance:         1,
			Stage:                    model.StageCategorized,
		})
		report.Assembled++
	}

	return out, report
}

// resolve dereferences each sample reference and returns evidence plus the
// number of distinct known source kinds behind it.
func (a *Assembler) resolve(cand model.Candidate, sources []model.VerifiedSource, batch int, report *Report) ([]model.EvidenceItem, int) {
	titleTokens := util.TokenSet(cand.Title)
	used := make(map[string]bool)
	kinds := make(map[model.SourceKind]bool)

	var evidence []model.EvidenceItem
	for _, ref := range cand.SampleReferences {
		src, sim, reanchored, err := a.lookup(ref, titleTokens, cand.Title, sources, used)
		if err != nil {
			report.UnresolvedRefs++
			a.logger.Debug("reference dropped",
				zap.Int("batch", batch),
				zap.Int("ref", ref),
				zap.String("title", cand.Title),
				zap.Error(err),
			)
			continue
		}
		if reanchored {
			report.Reanchored++
		}

		used[src.ID] = true
		if k := KindOf(src.Sample); k != model.KindUnknown {
			kinds[k] = true
		}

		quote := BestExcerpt(src.Sample.Content, cand.Title, a.cfg.MaxQuoteLength)
		evidence = append(evidence, model.EvidenceItem{
			SourceID:   src.ID,
			Quote:      quote,
			Platform:   src.Sample.Platform,
			URL:        src.Sample.URL,
			Author:     src.Sample.Author,
			Sentiment:  Sentiment(quote),
			Confidence: sim,
		})
	}

	return evidence, len(kinds)
}

// lookup resolves one 1-based reference. A hinted source that shares too
// little with the title is re-anchored to the best registry match instead.
func (a *Assembler) lookup(ref int, titleTokens map[string]bool, title string, sources []model.VerifiedSource, used map[string]bool) (model.VerifiedSource, float64, bool, error) {
	if ref < 1 || ref > len(sources) {
		return model.VerifiedSource{}, 0, false, eris.Wrapf(model.ErrUnresolvedReference, "reference %d outside batch of %d", ref, len(sources))
	}

	src, ok := a.registry.Get(sources[ref-1].ID)
	if !ok {
		return model.VerifiedSource{}, 0, false, eris.Wrapf(model.ErrUnresolvedReference, "source %s", sources[ref-1].ID)
	}

	if used[src.ID] {
		return model.VerifiedSource{}, 0, false, eris.Wrapf(model.ErrUnresolvedReference, "source %s already cited", src.ID)
	}

	sim := util.Coverage(titleTokens, util.TokenSet(src.Sample.Content))
	if sim >= a.cfg.MinReferenceSimilarity {
		return src, sim, false, nil
	}

	for _, m := range a.registry.FindByContent(title, a.cfg.ReanchorThreshold) {
		if used[m.Source.ID] {
			continue
		}
		return m.Source, m.Similarity, true, nil
	}

	return model.VerifiedSource{}, 0, false, eris.Wrapf(model.ErrUnresolvedReference, "reference %d similarity %.2f below %.2f", ref, sim, a.cfg.MinReferenceSimilarity)
}
