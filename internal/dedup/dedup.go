// Package dedup merges near-identical triggers produced by parallel batches.
package dedup

import (
	"sort"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/util"
	"go.uber.org/zap"
)

// DefaultThreshold is the shared-token ratio above which titles are duplicates
const DefaultThreshold = 0.7

// Deduplicator removes cross-batch duplicates
type Deduplicator struct {
	threshold float64
	logger    *zap.Logger
}

// New creates a new Deduplicator. threshold <= 0 uses DefaultThreshold.
func New(threshold float64, logger *zap.Logger) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{threshold: threshold, logger: logger}
}

// duplicate reports whether two title word sets are near-identical
func (d *Deduplicator) duplicate(a, b map[string]bool) bool {
	return util.SharedRatio(a, b) > d.threshold
}

// Dedupe keeps one trigger per group of duplicates: the one with the higher
// confidence, or the earlier one on a tie. Survivors keep input order.
func (d *Deduplicator) Dedupe(triggers []model.ConsolidatedTrigger) []model.ConsolidatedTrigger {
	type kept struct {
		trigger model.ConsolidatedTrigger
		tokens  map[string]bool
	}

	var out []kept
	for _, t := range triggers {
		tokens := util.WordSet(t.Title)

		dup := -1
		for i := range out {
			if d.duplicate(tokens, out[i].tokens) {
				dup = i
				break
			}
		}

		if dup < 0 {
			out = append(out, kept{trigger: t, tokens: tokens})
			continue
		}

		d.logger.Debug("duplicate trigger",
			zap.String("kept", out[dup].trigger.Title),
			zap.String("other", t.Title),
			zap.Int("other_batch", t.BatchIndex),
		)
		if t.Confidence > out[dup].trigger.Confidence {
			out[dup] = kept{trigger: t, tokens: tokens}
		}
	}

	result := make([]model.ConsolidatedTrigger, len(out))
	for i, k := range out {
		result[i] = k.trigger
	}
	return result
}

// Cap keeps the n most confident triggers, preserving input order among
// equal confidence. n <= 0 keeps everything.
func Cap(triggers []model.ConsolidatedTrigger, n int) []model.ConsolidatedTrigger {
	if n <= 0 || len(triggers) <= n {
		return triggers
	}

	sorted := make([]model.ConsolidatedTrigger, len(triggers))
	copy(sorted, triggers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted[:n]
}
