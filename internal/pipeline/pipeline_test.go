package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/triggerscope/internal/llm"
	"github.com/ppiankov/triggerscope/internal/model"
)

var sampleLine = regexp.MustCompile(`(?m)^\[(\d+)\] (.+)$`)

// echoProvider answers every prompt with one fear trigger per numbered
// sample, quoting the sample verbatim.
type echoProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	seen     map[string][]string // route hint -> sample lines
	failHint string              // route hint prefix that always errors
	failOnce bool                // first call per hint errors
	raw      string              // fixed response text when set
}

func newEchoProvider() *echoProvider {
	return &echoProvider{calls: map[string]int{}, seen: map[string][]string{}}
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls[req.RouteHint]++
	n := p.calls[req.RouteHint]
	p.mu.Unlock()

	var items []map[string]interface{}
	var lines []string
	for _, m := range sampleLine.FindAllStringSubmatch(req.Prompt, -1) {
		ref, _ := strconv.Atoi(m[1])
		lines = append(lines, m[2])
		items = append(items, map[string]interface{}{
			"category":         "fear",
			"title":            m[2],
			"summary":          "Speaks to the key benefit of audit-ready payroll.",
			"sampleReferences": []int{ref},
			"confidence":       0.8,
		})
	}

	p.mu.Lock()
	p.seen[req.RouteHint] = lines
	p.mu.Unlock()

	if p.failHint != "" && strings.HasPrefix(req.RouteHint, p.failHint) {
		return nil, errors.New("upstream 503")
	}
	if p.failOnce && n == 1 {
		return nil, errors.New("connection reset")
	}
	if p.raw != "" {
		return &llm.Response{Text: p.raw, Model: "echo-1"}, nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: string(data), Model: "echo-1"}, nil
}

func (p *echoProvider) callCount(hint string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[hint]
}

func testSamples(n int) []model.RawSample {
	samples := make([]model.RawSample, n)
	for i := range samples {
		samples[i] = model.RawSample{
			ID:       fmt.Sprintf("s%d", i),
			Content:  fmt.Sprintf("I worry about alpha%d bravo%d charlie%d delta%d", i, i, i, i),
			Platform: "reddit",
		}
	}
	return samples
}

func testConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.Synthesis.BatchCount = 4
	cfg.Synthesis.SampleLimit = 40
	cfg.Synthesis.MaxRetries = 1
	cfg.Synthesis.MaxTriggers = 100
	cfg.RateLimiting.RequestsPerSecond = 0
	return cfg
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleepFunc
	sleepFunc = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleepFunc = orig })
}

type callbackLog struct {
	mu     sync.Mutex
	counts map[int]int
	totals []int
}

func (c *callbackLog) record(triggers []model.ConsolidatedTrigger, batch, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[int]int{}
	}
	c.counts[batch] = len(triggers)
	c.totals = append(c.totals, total)
}

func TestSynthesize_PartialFailure(t *testing.T) {
	noSleep(t)

	provider := newEchoProvider()
	provider.failHint = "batch-3/"
	s := New(testConfig(), provider, nil)

	var cb callbackLog
	out, err := s.Synthesize(context.Background(), Input{
		Samples:          testSamples(60),
		ValueProposition: model.ValueProposition{KeyBenefit: "audit-ready payroll"},
		OnBatchComplete:  cb.record,
	})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}

	if out.SelectedSources != 40 {
		t.Errorf("Expected 40 selected sources, got %d", out.SelectedSources)
	}
	if len(out.Batches) != 4 {
		t.Fatalf("Expected 4 batch reports, got %d", len(out.Batches))
	}
	for i, b := range out.Batches {
		if b.Index != i {
			t.Errorf("Expected reports sorted by index, got %d at %d", b.Index, i)
		}
		wantStatus := BatchOK
		if i == 2 {
			wantStatus = BatchFailed
		}
		if b.Status != wantStatus {
			t.Errorf("Batch %d: expected status %s, got %s (%s)", i, wantStatus, b.Status, b.Error)
		}
	}
	if got := out.Batches[2].Attempts; got != 2 {
		t.Errorf("Expected failed batch to be attempted twice, got %d", got)
	}
	if got := provider.callCount("batch-3/4"); got != 2 {
		t.Errorf("Expected 2 provider calls for failed batch, got %d", got)
	}

	if out.RawTriggerCount != 30 {
		t.Errorf("Expected 30 raw triggers from successful batches, got %d", out.RawTriggerCount)
	}
	if len(out.Triggers) != 30 || out.FilteredCount != 0 {
		t.Errorf("Expected 30 ranked triggers, got %d (filtered %d)", len(out.Triggers), out.FilteredCount)
	}
	if out.Model != "echo-1" {
		t.Errorf("Expected model echo-1, got %s", out.Model)
	}
	if out.CategoryCounts[model.CategoryFear] != 30 {
		t.Errorf("Unexpected category counts %v", out.CategoryCounts)
	}

	// Evidence comes from the registry, never from the failed batch
	failed := map[string]bool{}
	provider.mu.Lock()
	for _, line := range provider.seen["batch-3/4"] {
		failed[line] = true
	}
	provider.mu.Unlock()
	if len(failed) != 10 {
		t.Fatalf("Expected failed batch to carry 10 samples, got %d", len(failed))
	}
	for _, tr := range out.Triggers {
		if len(tr.Evidence) != 1 {
			t.Fatalf("Expected one evidence item, got %+v", tr.Evidence)
		}
		ev := tr.Evidence[0]
		if failed[ev.Quote] {
			t.Errorf("Evidence from failed batch: %q", ev.Quote)
		}
		src, ok := s.Registry().Get(ev.SourceID)
		if !ok {
			t.Fatalf("Evidence source %s not registered", ev.SourceID)
		}
		if !strings.Contains(src.Sample.Content, ev.Quote) {
			t.Errorf("Quote %q is not a substring of its source", ev.Quote)
		}
		if tr.Stage != model.StageRanked {
			t.Errorf("Expected ranked stage, got %s", tr.Stage)
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(cb.counts) != 4 || len(cb.totals) != 4 {
		t.Fatalf("Expected 4 callbacks, got %v", cb.counts)
	}
	for i := 0; i < 4; i++ {
		want := 10
		if i == 2 {
			want = 0
		}
		if cb.counts[i] != want {
			t.Errorf("Callback for batch %d: expected %d triggers, got %d", i, want, cb.counts[i])
		}
	}
	for _, total := range cb.totals {
		if total != 4 {
			t.Errorf("Expected total 4 in callback, got %d", total)
		}
	}
}

func TestSynthesize_AllBatchesFail(t *testing.T) {
	noSleep(t)

	provider := newEchoProvider()
	provider.failHint = "batch-"
	s := New(testConfig(), provider, nil)

	out, err := s.Synthesize(context.Background(), Input{Samples: testSamples(8)})
	if err != nil {
		t.Fatalf("Expected degraded result, got error %v", err)
	}
	if out.Model != model.ModelUnavailable {
		t.Errorf("Expected model %q, got %q", model.ModelUnavailable, out.Model)
	}
	if out.Triggers == nil || len(out.Triggers) != 0 {
		t.Errorf("Expected empty non-nil triggers, got %v", out.Triggers)
	}
	if out.RawTriggerCount != 0 {
		t.Errorf("Expected 0 raw triggers, got %d", out.RawTriggerCount)
	}
	for _, b := range out.Batches {
		if b.Status != BatchFailed || !strings.Contains(b.Error, "generation call failed") {
			t.Errorf("Expected transport failure, got %+v", b)
		}
	}
}

func TestSynthesize_RetryRecovers(t *testing.T) {
	noSleep(t)

	provider := newEchoProvider()
	provider.failOnce = true
	s := New(testConfig(), provider, nil)

	out, err := s.Synthesize(context.Background(), Input{Samples: testSamples(8)})
	if err != nil {
		t.Fatal(err)
	}
	if out.RawTriggerCount != 8 {
		t.Errorf("Expected 8 triggers after retry, got %d", out.RawTriggerCount)
	}
	for _, b := range out.Batches {
		if b.Status != BatchOK || b.Attempts != 2 {
			t.Errorf("Expected ok after 2 attempts, got %+v", b)
		}
	}
}

func TestSynthesize_MalformedOutputNotRetried(t *testing.T) {
	noSleep(t)

	provider := newEchoProvider()
	provider.raw = "I could not find any triggers in these samples."
	cfg := testConfig()
	cfg.Synthesis.BatchCount = 1
	s := New(cfg, provider, nil)

	out, err := s.Synthesize(context.Background(), Input{Samples: testSamples(3)})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Batches) != 1 {
		t.Fatalf("Expected 1 batch, got %d", len(out.Batches))
	}
	b := out.Batches[0]
	if b.Status != BatchFailed || b.Attempts != 1 {
		t.Errorf("Expected single failed attempt, got %+v", b)
	}
	if provider.callCount("batch-1/1") != 1 {
		t.Errorf("Expected one provider call, got %d", provider.callCount("batch-1/1"))
	}
	if out.Model != model.ModelUnavailable {
		t.Errorf("Expected unavailable model, got %s", out.Model)
	}
}

func TestSynthesize_NoSamples(t *testing.T) {
	provider := newEchoProvider()
	s := New(testConfig(), provider, nil)

	out, err := s.Synthesize(context.Background(), Input{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Batches) != 0 || len(out.Triggers) != 0 || out.Model != model.ModelUnavailable {
		t.Errorf("Unexpected output %+v", out)
	}
	if out.RunID == "" {
		t.Error("Expected run id")
	}
}

func TestSynthesize_DuplicateSamplesRegisteredOnce(t *testing.T) {
	noSleep(t)

	provider := newEchoProvider()
	cfg := testConfig()
	cfg.Synthesis.BatchCount = 1
	s := New(cfg, provider, nil)

	samples := testSamples(3)
	dup := samples[0]
	dup.ID = "copy"
	dup.Content = "  " + strings.ToUpper(dup.Content) + "  "
	samples = append(samples, dup)

	out, err := s.Synthesize(context.Background(), Input{Samples: samples})
	if err != nil {
		t.Fatal(err)
	}
	if s.Registry().Len() != 3 {
		t.Errorf("Expected 3 registered sources, got %d", s.Registry().Len())
	}
	if out.SelectedSources != 3 {
		t.Errorf("Expected 3 selected sources, got %d", out.SelectedSources)
	}
}

func TestSynthesize_CancelledContext(t *testing.T) {
	provider := newEchoProvider()
	s := New(testConfig(), provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Synthesize(ctx, Input{Samples: testSamples(4)}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
