// Package verify checks that registered sources still resolve and records
// the outcome in the registry.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/util"
	"github.com/ppiankov/triggerscope/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sleepFunc waits between retries and gives up when ctx ends (injectable for tests)
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

// StatusSetter receives verification outcomes
type StatusSetter interface {
	SetStatus(id string, status model.VerificationStatus) bool
}

// Outcome is the result of checking one source
type Outcome struct {
	SourceID   string                   `json:"source_id"`
	URL        string                   `json:"url"`
	Status     model.VerificationStatus `json:"status"`
	StatusCode int                      `json:"status_code,omitempty"`
	Attempts   int                      `json:"attempts"`
	Skipped    string                   `json:"skipped,omitempty"` // no_url, robots
	Error      string                   `json:"error,omitempty"`
}

// Summary counts outcomes of one run
type Summary struct {
	Checked  int `json:"checked"`
	Verified int `json:"verified"`
	Invalid  int `json:"invalid"`
	Skipped  int `json:"skipped"`
	Unknown  int `json:"unknown"` // transient failures; status left unchanged
}

// Options tune the HTTP side of verification
type Options struct {
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
	Limiter    *worker.Limiter // per-host; nil disables host limiting
}

// Verifier HEAD-checks source URLs with bounded concurrency
type Verifier struct {
	cfg        model.VerifyConfig
	httpClient *http.Client
	robots     *RobotsChecker
	limiter    *worker.Limiter
	registry   StatusSetter
	delayed    sync.Map // hosts already slowed to their crawl delay
	logger     *zap.Logger
}

// New creates a new Verifier writing outcomes to reg
func New(cfg model.VerifyConfig, reg StatusSetter, opts Options, logger *zap.Logger) *Verifier {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	v := &Verifier{
		cfg:        cfg,
		httpClient: client,
		limiter:    opts.Limiter,
		registry:   reg,
		logger:     logger,
	}
	if cfg.RespectRobots {
		v.robots = NewRobotsChecker(client, cfg.UserAgent)
	}
	return v
}

// VerifyAll checks every source and logs a summary. It satisfies the
// synthesizer's background verifier hook.
func (v *Verifier) VerifyAll(ctx context.Context, sources []model.VerifiedSource) {
	summary, _ := v.Run(ctx, sources)
	v.logger.Info("source verification complete",
		zap.Int("checked", summary.Checked),
		zap.Int("verified", summary.Verified),
		zap.Int("invalid", summary.Invalid),
		zap.Int("skipped", summary.Skipped),
		zap.Int("unknown", summary.Unknown),
	)
}

// Run checks sources concurrently and returns outcomes in input order.
// Individual failures never fail the group.
func (v *Verifier) Run(ctx context.Context, sources []model.VerifiedSource) (Summary, []Outcome) {
	outcomes := make([]Outcome, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)

	var verified, invalid, skipped, unknown atomic.Int32
	for i, src := range sources {
		g.Go(func() error {
			out := v.Check(gctx, src)
			outcomes[i] = out

			switch {
			case out.Skipped != "":
				skipped.Add(1)
			case out.Status == model.StatusVerified:
				verified.Add(1)
			case out.Status == model.StatusInvalid:
				invalid.Add(1)
			default:
				unknown.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Summary{
		Checked:  len(sources),
		Verified: int(verified.Load()),
		Invalid:  int(invalid.Load()),
		Skipped:  int(skipped.Load()),
		Unknown:  int(unknown.Load()),
	}, outcomes
}

// Check verifies one source and records a definitive result in the registry.
// Transient failures leave the stored status untouched.
func (v *Verifier) Check(ctx context.Context, src model.VerifiedSource) Outcome {
	out := Outcome{SourceID: src.ID, URL: src.Sample.URL, Status: src.Status}

	if strings.TrimSpace(src.Sample.URL) == "" {
		out.Skipped = "no_url"
		return out
	}

	if v.robots != nil {
		allowed, delay, err := v.robots.CanFetch(ctx, src.Sample.URL)
		if err != nil {
			out.Status = model.StatusInvalid
			out.Error = err.Error()
			v.record(out)
			return out
		}
		if !allowed {
			out.Skipped = "robots"
			v.logger.Debug("robots.txt disallows verification", zap.String("url", src.Sample.URL))
			return out
		}
		if delay > 0 && v.limiter != nil {
			if host, err := worker.HostKey(src.Sample.URL); err == nil {
				if _, seen := v.delayed.LoadOrStore(host, true); !seen {
					v.limiter.SetKeyRate(host, 1/delay.Seconds(), 1)
				}
			}
		}
	}

	for attempt := 0; attempt <= v.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepFunc(ctx, time.Duration(1<<uint(attempt-1))*500*time.Millisecond); err != nil {
				out.Error = err.Error()
				return out
			}
		}
		if v.limiter != nil {
			if err := v.limiter.WaitHost(ctx, src.Sample.URL); err != nil {
				out.Error = err.Error()
				return out
			}
		}

		out.Attempts++
		code, err := v.head(ctx, src.Sample.URL)
		out.StatusCode = code
		out.Error = ""
		if err != nil {
			out.Error = err.Error()
		}
		if !retryable(code, err) || ctx.Err() != nil {
			break
		}
	}

	switch {
	case out.Error == "" && out.StatusCode >= 200 && out.StatusCode < 400:
		out.Status = model.StatusVerified
	case out.StatusCode == http.StatusNotFound || out.StatusCode == http.StatusGone:
		out.Status = model.StatusInvalid
	case out.Error != "" && !isRetryableNetworkError(out.Error) && out.StatusCode == 0:
		// DNS failure, bad scheme, redirect loop
		out.Status = model.StatusInvalid
	default:
		return out
	}

	v.record(out)
	return out
}

func (v *Verifier) record(out Outcome) {
	if v.registry == nil {
		return
	}
	v.registry.SetStatus(out.SourceID, out.Status)
	v.logger.Debug("source status updated",
		zap.String("source_id", out.SourceID),
		zap.String("status", string(out.Status)),
		zap.Int("code", out.StatusCode),
	)
}

func (v *Verifier) head(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if v.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", v.cfg.UserAgent)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, nil
}

// retryable reports transient failures: 5xx, 429 and flaky network errors
func retryable(code int, err error) bool {
	if code >= 500 && code < 600 || code == http.StatusTooManyRequests {
		return true
	}
	return err != nil && isRetryableNetworkError(err.Error())
}

func isRetryableNetworkError(msg string) bool {
	s := strings.ToLower(msg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
