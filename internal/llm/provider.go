package llm

import (
	"context"
	"strings"
	"time"

	"github.com/ppiankov/triggerscope/internal/model"
)

// Provider defines the interface for text-generation backends. Output is
// untrusted free text; callers validate it.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate runs one completion
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is one generation call
type Request struct {
	// System carries standing instructions
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens caps the response length
	MaxTokens int

	// JSONOutput asks the backend for structured output where supported
	JSONOutput bool

	// RouteHint identifies the caller's slot, e.g. "batch-2/4". Providers
	// may use it for request tagging; Pool uses it to pick a key.
	RouteHint string

	// Temperature overrides the configured temperature when > 0
	Temperature float64
}

// Response is the raw generation output
type Response struct {
	// Text is the generated text
	Text string

	// Model is the model that generated the response
	Model string

	// Truncated is set when the backend stopped at the length cap
	Truncated bool

	// TokensUsed tracks token consumption
	TokensUsed int

	// Cached is set when the response came from the response cache
	Cached bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for a single HTTP exchange
	Timeout time.Duration

	// Temperature default
	Temperature float64

	// MaxTokens default
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     90 * time.Second,
		Temperature: 0.3,
		MaxTokens:   8000,
	}
}

// ConfigFromModel converts model.LLMConfig to one Config per API key. Keyless
// providers (ollama) yield a single config.
func ConfigFromModel(c model.LLMConfig, maxTokens int) []Config {
	base := Config{
		Provider:    c.Provider,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		Timeout:     c.Timeout,
		Temperature: c.Temperature,
		MaxTokens:   maxTokens,
		HTTPProxy:   c.HTTPProxy,
		HTTPSProxy:  c.HTTPSProxy,
		NoProxy:     c.NoProxy,
	}

	keys := SplitKeys(c.APIKeys)
	if len(keys) == 0 {
		return []Config{base}
	}

	configs := make([]Config, 0, len(keys))
	for _, key := range keys {
		cfg := base
		cfg.APIKey = key
		configs = append(configs, cfg)
	}
	return configs
}

// SplitKeys flattens comma-separated key lists and drops blanks
func SplitKeys(raw []string) []string {
	var keys []string
	for _, entry := range raw {
		for _, k := range strings.Split(entry, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
