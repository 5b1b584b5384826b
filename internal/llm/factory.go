package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ppiankov/triggerscope/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// NewFromModel builds one provider per configured API key and returns them
// as a Pool. A single key still yields a Pool of one.
func NewFromModel(c model.LLMConfig, maxTokens int) (*Pool, error) {
	configs := ConfigFromModel(c, maxTokens)

	providers := make([]Provider, 0, len(configs))
	for i, cfg := range configs {
		p, err := NewProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("key slot %d: %w", i, err)
		}
		providers = append(providers, p)
	}

	return NewPool(providers...), nil
}

// Pool spreads calls across providers that differ only in API key so that
// parallel batches are not serialized by a single key's rate limit.
type Pool struct {
	providers []Provider
	next      atomic.Uint64
}

// NewPool creates a pool over providers
func NewPool(providers ...Provider) *Pool {
	return &Pool{providers: providers}
}

// Name returns the underlying provider name
func (p *Pool) Name() string {
	if len(p.providers) == 0 {
		return "none"
	}
	return p.providers[0].Name()
}

// Slots returns the number of distinct key slots
func (p *Pool) Slots() int {
	return len(p.providers)
}

// SlotCount returns how many key slots p spreads calls over. Providers that
// do not expose slots count as one.
func SlotCount(p Provider) int {
	if s, ok := p.(interface{ Slots() int }); ok && s.Slots() > 0 {
		return s.Slots()
	}
	return 1
}

// Slot returns the provider for slot i, wrapping around
func (p *Pool) Slot(i int) Provider {
	if i < 0 {
		i = -i
	}
	return p.providers[i%len(p.providers)]
}

// Generate routes by the "batch-i/n" hint when present and round-robins otherwise
func (p *Pool) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(p.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if slot, ok := SlotFromHint(req.RouteHint); ok {
		return p.Slot(slot).Generate(ctx, req)
	}
	i := int(p.next.Add(1) - 1)
	return p.Slot(i).Generate(ctx, req)
}

// RouteHint formats the routing hint for a 0-based batch index
func RouteHint(batch, total int) string {
	return fmt.Sprintf("batch-%d/%d", batch+1, total)
}

// SlotFromHint parses a RouteHint back into a 0-based batch index
func SlotFromHint(hint string) (int, bool) {
	rest, ok := strings.CutPrefix(hint, "batch-")
	if !ok {
		return 0, false
	}
	num, _, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
