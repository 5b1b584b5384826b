package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/triggerscope/internal/cache"
	"github.com/ppiankov/triggerscope/internal/events"
	"github.com/ppiankov/triggerscope/internal/llm"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/registry"
	"github.com/ppiankov/triggerscope/internal/rules"
	"github.com/ppiankov/triggerscope/internal/verify"
	"github.com/ppiankov/triggerscope/internal/worker"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// buildProvider creates one provider per key slot, behind the response cache
// when caching is enabled
func buildProvider(cfg model.Config, logger *zap.Logger) (llm.Provider, error) {
	if cfg.LLM.Provider != "ollama" && len(cfg.LLM.APIKeys) == 0 {
		return nil, fmt.Errorf("no API key for provider %s (set OPENAI_API_KEY, ANTHROPIC_API_KEY or TRIGGERSCOPE_LLM_API_KEYS)", cfg.LLM.Provider)
	}

	pool, err := llm.NewFromModel(cfg.LLM, cfg.Synthesis.MaxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return llm.NewCachedProvider(pool, cache.New(cfg.Cache), cfg.Cache.TTL, logger), nil
}

// buildRules compiles the validation catalogs, with file overrides if set
func buildRules(path string) (*rules.Rules, error) {
	rc, err := rules.Load(path)
	if err != nil {
		return nil, err
	}
	return rules.Compile(rc)
}

// buildVerifier shares the rate limit settings with host-level HEAD checks
func buildVerifier(cfg model.Config, reg *registry.Registry, logger *zap.Logger) *verify.Verifier {
	return verify.New(cfg.Verify, reg, verify.Options{
		HTTPProxy:  cfg.LLM.HTTPProxy,
		HTTPSProxy: cfg.LLM.HTTPSProxy,
		NoProxy:    cfg.LLM.NoProxy,
		Limiter:    worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst),
	}, logger)
}

// connectEvents returns nil when no NATS URL is configured. A failed
// connection is reported and the run continues without events.
func connectEvents(ctx context.Context, cfg model.EventsConfig, logger *zap.Logger) *events.NATSClient {
	if cfg.NATSURL == "" {
		return nil
	}
	client, err := events.Connect(ctx, cfg.NATSURL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Events disabled: %v\n", err)
		return nil
	}
	return client
}

// readYAMLFile decodes a YAML (or JSON) document into v
func readYAMLFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
