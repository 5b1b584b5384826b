package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ppiankov/triggerscope/internal/cache"
	"go.uber.org/zap"
)

// CachedProvider serves repeated identical requests from a cache. The route
// hint is not part of the key, so the same batch content on another slot hits.
type CachedProvider struct {
	next   Provider
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps next. A nil cache returns next unchanged.
func NewCachedProvider(next Provider, c cache.Cache, ttl time.Duration, logger *zap.Logger) Provider {
	if c == nil {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{next: next, cache: c, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider name
func (p *CachedProvider) Name() string {
	return p.next.Name()
}

// Slots reports the wrapped provider's key slots
func (p *CachedProvider) Slots() int {
	return SlotCount(p.next)
}

type cachedResponse struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Generate returns a cached response when available. Truncated responses are
// never cached.
func (p *CachedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	key := cache.Key(p.next.Name(), req.Model, req.System, req.Prompt,
		strconv.Itoa(req.MaxTokens), strconv.FormatBool(req.JSONOutput))

	if data, ok := p.cache.Get(key); ok {
		var cr cachedResponse
		if err := json.Unmarshal(data, &cr); err == nil {
			p.logger.Debug("generation cache hit", zap.String("route", req.RouteHint))
			return &Response{Text: cr.Text, Model: cr.Model, TokensUsed: cr.TokensUsed, Cached: true}, nil
		}
		_ = p.cache.Delete(key)
	}

	resp, err := p.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Truncated {
		data, err := json.Marshal(cachedResponse{Text: resp.Text, Model: resp.Model, TokensUsed: resp.TokensUsed})
		if err == nil {
			if err := p.cache.Set(key, data, p.ttl); err != nil {
				p.logger.Warn("generation cache write failed", zap.Error(err))
			}
		}
	}

	return resp, nil
}
