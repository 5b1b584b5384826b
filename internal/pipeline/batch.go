package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/triggerscope/internal/assemble"
	"github.com/ppiankov/triggerscope/internal/llm"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/prompt"
	"github.com/ppiankov/triggerscope/internal/score"
	"github.com/ppiankov/triggerscope/internal/validate"
	"github.com/ppiankov/triggerscope/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// sleepFunc waits between retries (injectable for tests)
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// batchDeps is shared, read-only state for every batch of a run
type batchDeps struct {
	builder   *prompt.Builder
	provider  llm.Provider
	validator *validate.Validator
	assembler *assemble.Assembler
	engine    *score.Engine
	limiter   *worker.Limiter
	slots     int
	cfg       model.SynthesisConfig
	logger    *zap.Logger
}

type batchJob struct {
	index   int
	total   int
	sources []model.VerifiedSource
	deps    batchDeps
}

type batchResult struct {
	report    BatchReport
	triggers  []model.ConsolidatedTrigger // assembled, before consolidation
	delivered []model.ConsolidatedTrigger // scored view passed to the callback
	err       error
}

func (r *batchResult) GetError() error {
	return r.err
}

func failedBatch(index, sources int, err error) *batchResult {
	return &batchResult{
		report: BatchReport{
			Index:   index,
			Sources: sources,
			Status:  BatchFailed,
			Error:   err.Error(),
		},
		delivered: []model.ConsolidatedTrigger{},
		err:       err,
	}
}

// Execute runs prompt → generate → validate → assemble for one batch. It
// never returns a nil result; failures are carried in the report.
func (j *batchJob) Execute(ctx context.Context) worker.Result {
	start := time.Now()
	logger := j.deps.logger.With(zap.Int("batch", j.index+1), zap.Int("of", j.total))

	res := &batchResult{
		report:    BatchReport{Index: j.index, Sources: len(j.sources), Status: BatchOK},
		delivered: []model.ConsolidatedTrigger{},
	}
	defer func() {
		res.report.Duration = time.Since(start)
	}()

	req := j.deps.builder.Build(j.sources, j.index, j.total)

	resp, attempts, err := j.generate(ctx, req, logger)
	res.report.Attempts = attempts
	if err != nil {
		logger.Warn("batch failed", zap.Int("attempts", attempts), zap.Error(err))
		res.report.Status = BatchFailed
		res.report.Error = err.Error()
		res.err = err
		return res
	}
	res.report.Model = resp.Model
	res.report.Cached = resp.Cached
	res.report.Truncated = resp.Truncated
	if resp.Truncated {
		logger.Warn("generation truncated at token limit", zap.Int("max_tokens", req.MaxTokens))
	}

	parsed, err := j.deps.validator.Parse(resp.Text)
	if err != nil {
		logger.Warn("batch output unusable", zap.Error(err), zap.Int("bytes", len(resp.Text)))
		res.report.Status = BatchFailed
		res.report.Error = err.Error()
		res.err = err
		return res
	}
	res.report.Recovered = parsed.Recovered
	res.report.Candidates = len(parsed.Candidates)
	res.report.Recategorized = parsed.Recategorized
	if len(parsed.Rejections) > 0 {
		res.report.Rejections = parsed.Rejections
	}

	triggers, assembly := j.deps.assembler.Assemble(parsed.Candidates, j.sources, j.index)
	res.report.Assembly = assembly
	res.report.Triggers = len(triggers)
	res.triggers = triggers

	if scored := j.deps.engine.Consolidate(triggers).Ranked; scored != nil {
		res.delivered = scored
	}

	logger.Info("batch complete",
		zap.Int("objects", parsed.Total),
		zap.Int("candidates", len(parsed.Candidates)),
		zap.Int("rejected", parsed.Rejected()),
		zap.Int("triggers", len(triggers)),
		zap.Bool("cached", resp.Cached),
	)
	return res
}

// generate calls the provider with a per-call timeout, retrying transport
// failures with exponential backoff.
func (j *batchJob) generate(ctx context.Context, req llm.Request, logger *zap.Logger) (*llm.Response, int, error) {
	slotKey := fmt.Sprintf("slot-%d", j.index%max(j.deps.slots, 1))

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= j.deps.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := j.deps.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			logger.Debug("retrying generation", zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff))
			if err := sleepFunc(ctx, backoff); err != nil {
				return nil, attempts, eris.Wrap(model.ErrTransport, err.Error())
			}
		}

		if err := j.deps.limiter.Wait(ctx, slotKey); err != nil {
			return nil, attempts, eris.Wrap(model.ErrTransport, err.Error())
		}

		attempts++
		resp, err := j.call(ctx, req)
		if err == nil {
			return resp, attempts, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, attempts, lastErr
}

func (j *batchJob) call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	callCtx := ctx
	if j.deps.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, j.deps.cfg.CallTimeout)
		defer cancel()
	}

	resp, err := j.deps.provider.Generate(callCtx, req)
	if err != nil {
		return nil, eris.Wrapf(model.ErrTransport, "%s: %v", j.deps.provider.Name(), err)
	}
	if resp == nil {
		return nil, eris.Wrapf(model.ErrTransport, "%s: empty response", j.deps.provider.Name())
	}
	return resp, nil
}
