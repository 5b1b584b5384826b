// Package pipeline orchestrates trigger synthesis: registration, selection,
// parallel batch generation and the final consolidation pass.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/triggerscope/internal/assemble"
	"github.com/ppiankov/triggerscope/internal/dedup"
	"github.com/ppiankov/triggerscope/internal/llm"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/prompt"
	"github.com/ppiankov/triggerscope/internal/registry"
	"github.com/ppiankov/triggerscope/internal/rules"
	"github.com/ppiankov/triggerscope/internal/score"
	"github.com/ppiankov/triggerscope/internal/selector"
	"github.com/ppiankov/triggerscope/internal/validate"
	"github.com/ppiankov/triggerscope/internal/worker"
	"go.uber.org/zap"
)

// BatchCallback receives each batch's triggers as soon as the batch settles.
// Failed batches deliver an empty slice.
type BatchCallback func(triggers []model.ConsolidatedTrigger, batchIndex, totalBatches int)

// Verifier checks registered sources in the background
type Verifier interface {
	VerifyAll(ctx context.Context, sources []model.VerifiedSource)
}

// Input is one synthesis request. RunID is generated when empty.
type Input struct {
	RunID            string                 `json:"run_id,omitempty"`
	Samples          []model.RawSample      `json:"samples"`
	ValueProposition model.ValueProposition `json:"value_proposition"`
	Profile          *model.BusinessProfile `json:"profile,omitempty"`
	OnBatchComplete  BatchCallback          `json:"-"`
}

// Output is the consolidated result of a run
type Output struct {
	RunID           string                      `json:"run_id"`
	Triggers        []model.ConsolidatedTrigger `json:"triggers"`
	SynthesisTime   time.Duration               `json:"synthesis_time"`
	Model           string                      `json:"model"`
	RawTriggerCount int                         `json:"raw_trigger_count"`
	FilteredCount   int                         `json:"filtered_count"`
	Batches         []BatchReport               `json:"batches"`
	CategoryCounts  map[model.Category]int      `json:"category_counts"`
	SelectedSources int                         `json:"selected_sources"`
}

// Batch statuses
const (
	BatchOK     = "ok"
	BatchFailed = "failed"
)

// BatchReport describes how one batch went
type BatchReport struct {
	Index         int             `json:"index"`
	Sources       int             `json:"sources"`
	Status        string          `json:"status"`
	Error         string          `json:"error,omitempty"`
	Attempts      int             `json:"attempts"`
	Model         string          `json:"model,omitempty"`
	Cached        bool            `json:"cached,omitempty"`
	Truncated     bool            `json:"truncated,omitempty"`
	Recovered     bool            `json:"recovered,omitempty"`
	Candidates    int             `json:"candidates"`
	Recategorized int             `json:"recategorized"`
	Rejections    map[string]int  `json:"rejections,omitempty"`
	Assembly      assemble.Report `json:"assembly"`
	Triggers      int             `json:"triggers"`
	Duration      time.Duration   `json:"duration"`
}

// Synthesizer runs the synthesis pipeline against one registry
type Synthesizer struct {
	cfg      model.Config
	provider llm.Provider
	registry *registry.Registry
	rules    *rules.Rules
	tierer   score.Tierer
	limiter  *worker.Limiter
	verifier Verifier
	logger   *zap.Logger
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRules replaces the built-in validation catalogs
func WithRules(r *rules.Rules) Option {
	return func(s *Synthesizer) {
		if r != nil {
			s.rules = r
		}
	}
}

// WithTierer replaces the default domain-table tierer
func WithTierer(t score.Tierer) Option {
	return func(s *Synthesizer) {
		if t != nil {
			s.tierer = t
		}
	}
}

// WithLimiter replaces the per-slot rate limiter
func WithLimiter(l *worker.Limiter) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithVerifier enables background source verification
func WithVerifier(v Verifier) Option {
	return func(s *Synthesizer) {
		s.verifier = v
	}
}

// New creates a new Synthesizer. A nil registry gets a fresh one.
func New(cfg model.Config, provider llm.Provider, reg *registry.Registry, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		cfg:      cfg,
		provider: provider,
		registry: reg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = registry.New(s.logger)
	}
	if s.rules == nil {
		s.rules = rules.MustDefault()
	}
	if s.tierer == nil {
		s.tierer = score.NewDomainTierer(&cfg.Tiers)
	}
	if s.limiter == nil {
		s.limiter = worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst)
	}

	return s
}

// Registry returns the registry this synthesizer writes to
func (s *Synthesizer) Registry() *registry.Registry {
	return s.registry
}

// Synthesize runs one complete pass. Batch failures degrade the result
// instead of failing it; the only error returned is the caller's context
// ending before any batch ran.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := s.logger.With(zap.String("run_id", runID))

	out := &Output{
		RunID:          runID,
		Model:          model.ModelUnavailable,
		Triggers:       []model.ConsolidatedTrigger{},
		CategoryCounts: map[model.Category]int{},
	}

	registered := selector.Unique(s.registry.RegisterAll(in.Samples))
	eligible := make([]model.VerifiedSource, 0, len(registered))
	for _, src := range registered {
		if src.Status == model.StatusInvalid || src.Status == model.StatusArchived {
			continue
		}
		eligible = append(eligible, src)
	}
	selected := selector.SelectBest(eligible, s.cfg.Synthesis.SampleLimit)
	out.SelectedSources = len(selected)

	logger.Info("synthesis started",
		zap.Int("samples", len(in.Samples)),
		zap.Int("registered", len(registered)),
		zap.Int("selected", len(selected)),
	)

	if s.verifier != nil && len(registered) > 0 {
		go s.verifier.VerifyAll(context.WithoutCancel(ctx), registered)
	}

	batches := worker.Partition(selected, s.cfg.Synthesis.BatchCount)
	if len(batches) == 0 {
		out.SynthesisTime = time.Since(start)
		logger.Warn("no samples to synthesize")
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine := score.NewEngine(s.cfg.Scoring, in.ValueProposition, in.Profile, s.tierer, s.rules, logger)
	deps := batchDeps{
		builder: prompt.NewBuilder(in.ValueProposition, prompt.Options{
			MaxOutputTokens: s.cfg.Synthesis.MaxOutputTokens,
			MinPerCategory:  s.cfg.Synthesis.MinPerCategory,
			BannedTerms:     s.rules.BannedTerms(),
		}),
		provider:  s.provider,
		validator: validate.New(s.rules, logger),
		assembler: assemble.New(s.registry, s.cfg.Synthesis, logger),
		engine:    engine,
		limiter:   s.limiter,
		slots:     llm.SlotCount(s.provider),
		cfg:       s.cfg.Synthesis,
		logger:    logger,
	}

	results := s.runBatches(ctx, batches, deps, in.OnBatchComplete)

	var all []model.ConsolidatedTrigger
	for _, r := range results {
		out.Batches = append(out.Batches, r.report)
		if r.report.Status != BatchOK {
			continue
		}
		if out.Model == model.ModelUnavailable && r.report.Model != "" {
			out.Model = r.report.Model
		}
		out.RawTriggerCount += len(r.triggers)
		all = append(all, r.triggers...)
	}

	d := dedup.New(s.cfg.Dedup.Threshold, logger)
	unique := dedup.Cap(d.Dedupe(all), s.cfg.Synthesis.MaxTriggers)
	final := engine.Consolidate(unique)

	if final.Ranked != nil {
		out.Triggers = final.Ranked
	}
	out.FilteredCount = len(final.Filtered)
	out.CategoryCounts = final.CategoryCounts
	out.SynthesisTime = time.Since(start)

	logger.Info("synthesis complete",
		zap.String("model", out.Model),
		zap.Int("raw_triggers", out.RawTriggerCount),
		zap.Int("after_dedup", len(unique)),
		zap.Int("ranked", len(out.Triggers)),
		zap.Int("filtered", out.FilteredCount),
		zap.Duration("elapsed", out.SynthesisTime),
	)

	return out, nil
}

// runBatches fans batches out over a worker pool and forwards each result to
// onBatch in completion order. Results are returned sorted by batch index.
func (s *Synthesizer) runBatches(ctx context.Context, batches [][]model.VerifiedSource, deps batchDeps, onBatch BatchCallback) []*batchResult {
	total := len(batches)
	pool := worker.NewPool(ctx, total)
	pool.Start()

	for i, sources := range batches {
		pool.Submit(&batchJob{index: i, total: total, sources: sources, deps: deps})
	}

	var results []*batchResult
	seen := make(map[int]bool)

	pool.Drain(func(r worker.Result) {
		br, ok := r.(*batchResult)
		if !ok {
			return
		}
		results = append(results, br)
		seen[br.report.Index] = true

		if onBatch != nil {
			onBatch(br.delivered, br.report.Index, total)
		}
	})

	// Batches that never ran because the context ended still report
	for i, sources := range batches {
		if seen[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		br := failedBatch(i, len(sources), err)
		results = append(results, br)
		if onBatch != nil {
			onBatch(br.delivered, i, total)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].report.Index < results[j].report.Index
	})
	return results
}
