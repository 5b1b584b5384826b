package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/triggerscope/internal/cache"
	"github.com/ppiankov/triggerscope/internal/model"
)

// stubProvider records calls and returns a canned response
type stubProvider struct {
	name      string
	text      string
	truncated bool
	err       error

	mu    sync.Mutex
	calls []Request
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Text: s.text, Model: s.name + "-model", Truncated: s.truncated}, nil
}

func (s *stubProvider) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		config   Config
		expected string
		wantErr  bool
	}{
		{Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{Config{Provider: "", APIKey: "k"}, "openai", false},
		{Config{Provider: "Claude", APIKey: "k"}, "anthropic", false},
		{Config{Provider: "ollama", Model: "mistral"}, "ollama", false},
		{Config{Provider: "gemini"}, "", true},
		{Config{Provider: "anthropic"}, "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(tt.config)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewProvider(%q) error = %v, wantErr %v", tt.config.Provider, err, tt.wantErr)
			continue
		}
		if err == nil && p.Name() != tt.expected {
			t.Errorf("NewProvider(%q) = %s, expected %s", tt.config.Provider, p.Name(), tt.expected)
		}
	}
}

func TestConfigFromModel_OneConfigPerKey(t *testing.T) {
	configs := ConfigFromModel(model.LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		APIKeys:  []string{"k1, k2", " ", "k3"},
		Timeout:  time.Minute,
	}, 8000)

	if len(configs) != 3 {
		t.Fatalf("Expected 3 configs, got %d", len(configs))
	}
	for i, want := range []string{"k1", "k2", "k3"} {
		if configs[i].APIKey != want {
			t.Errorf("slot %d: expected key %s, got %s", i, want, configs[i].APIKey)
		}
		if configs[i].MaxTokens != 8000 || configs[i].Model != "gpt-4o-mini" {
			t.Errorf("slot %d: shared settings not copied: %+v", i, configs[i])
		}
	}

	if got := ConfigFromModel(model.LLMConfig{Provider: "ollama"}, 100); len(got) != 1 {
		t.Errorf("Expected a single keyless config, got %d", len(got))
	}
}

func TestPool_RoutesByHint(t *testing.T) {
	a := &stubProvider{name: "a"}
	b := &stubProvider{name: "b"}
	pool := NewPool(a, b)

	for batch := 0; batch < 4; batch++ {
		if _, err := pool.Generate(context.Background(), Request{RouteHint: RouteHint(batch, 4)}); err != nil {
			t.Fatal(err)
		}
	}

	if a.count() != 2 || b.count() != 2 {
		t.Errorf("Expected 2 calls per slot, got a=%d b=%d", a.count(), b.count())
	}
	if a.calls[0].RouteHint != "batch-1/4" || a.calls[1].RouteHint != "batch-3/4" {
		t.Errorf("Expected batches 1 and 3 on slot a, got %s and %s", a.calls[0].RouteHint, a.calls[1].RouteHint)
	}
}

func TestPool_RoundRobinWithoutHint(t *testing.T) {
	a := &stubProvider{name: "a"}
	b := &stubProvider{name: "b"}
	pool := NewPool(a, b)

	for i := 0; i < 3; i++ {
		_, _ = pool.Generate(context.Background(), Request{})
	}
	if a.count() != 2 || b.count() != 1 {
		t.Errorf("Expected round robin a=2 b=1, got a=%d b=%d", a.count(), b.count())
	}
}

func TestPool_Empty(t *testing.T) {
	if _, err := NewPool().Generate(context.Background(), Request{}); err == nil {
		t.Error("Expected error from empty pool")
	}
}

func TestSlotFromHint(t *testing.T) {
	tests := []struct {
		hint string
		slot int
		ok   bool
	}{
		{"batch-1/4", 0, true},
		{"batch-4/4", 3, true},
		{"batch-0/4", 0, false},
		{"batch-x/4", 0, false},
		{"other", 0, false},
	}

	for _, tt := range tests {
		slot, ok := SlotFromHint(tt.hint)
		if slot != tt.slot || ok != tt.ok {
			t.Errorf("SlotFromHint(%q) = (%d, %v), expected (%d, %v)", tt.hint, slot, ok, tt.slot, tt.ok)
		}
	}
}

func TestCachedProvider_HitsSkipBackend(t *testing.T) {
	stub := &stubProvider{name: "stub", text: "[]"}
	p := NewCachedProvider(stub, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	req := Request{System: "s", Prompt: "p", RouteHint: "batch-1/4"}
	first, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("First call must not be a cache hit")
	}

	// Same content on another slot still hits
	req.RouteHint = "batch-2/4"
	second, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.Text != "[]" {
		t.Errorf("Expected cached response, got %+v", second)
	}
	if stub.count() != 1 {
		t.Errorf("Expected 1 backend call, got %d", stub.count())
	}
}

func TestCachedProvider_SkipsTruncatedAndErrors(t *testing.T) {
	stub := &stubProvider{name: "stub", text: "[{", truncated: true}
	p := NewCachedProvider(stub, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	_, _ = p.Generate(context.Background(), Request{Prompt: "p"})
	_, _ = p.Generate(context.Background(), Request{Prompt: "p"})
	if stub.count() != 2 {
		t.Errorf("Expected truncated responses to bypass the cache, got %d backend calls", stub.count())
	}

	failing := &stubProvider{name: "fail", err: errors.New("boom")}
	fp := NewCachedProvider(failing, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)
	if _, err := fp.Generate(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Error("Expected backend error to propagate")
	}
}

func TestNewCachedProvider_NilCache(t *testing.T) {
	stub := &stubProvider{name: "stub"}
	if NewCachedProvider(stub, nil, time.Minute, nil) != Provider(stub) {
		t.Error("Expected nil cache to return the provider unwrapped")
	}
}

func TestSlotCount(t *testing.T) {
	pool := NewPool(&stubProvider{name: "a"}, &stubProvider{name: "b"}, &stubProvider{name: "c"})
	if got := SlotCount(pool); got != 3 {
		t.Errorf("Expected 3 slots, got %d", got)
	}

	cached := NewCachedProvider(pool, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)
	if got := SlotCount(cached); got != 3 {
		t.Errorf("Expected cached pool to report 3 slots, got %d", got)
	}

	if got := SlotCount(&stubProvider{name: "single"}); got != 1 {
		t.Errorf("Expected plain provider to count as 1 slot, got %d", got)
	}
	if got := SlotCount(NewPool()); got != 1 {
		t.Errorf("Expected empty pool to count as 1 slot, got %d", got)
	}
}
