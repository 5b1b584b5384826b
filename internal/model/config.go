package model

import "time"

// Config holds all triggerscope configuration
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Synthesis    SynthesisConfig    `mapstructure:"synthesis" yaml:"synthesis"`
	Dedup        DedupConfig        `mapstructure:"dedup" yaml:"dedup"`
	Scoring      ScoringConfig      `mapstructure:"scoring" yaml:"scoring"`
	Tiers        TierConfig         `mapstructure:"tiers" yaml:"tiers"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	Verify       VerifyConfig       `mapstructure:"verify" yaml:"verify"`
	Events       EventsConfig       `mapstructure:"events" yaml:"events"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	RulesFile    string             `mapstructure:"rules_file" yaml:"rules_file,omitempty"`
}

// LLMConfig selects and tunes the generation provider
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"` // openai, anthropic, ollama
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKeys     []string      `mapstructure:"api_keys" yaml:"-"` // never written to disk
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	HTTPProxy   string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy  string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy     string        `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// SynthesisConfig controls batching and per-batch limits
type SynthesisConfig struct {
	BatchCount             int           `mapstructure:"batch_count" yaml:"batch_count"`
	SampleLimit            int           `mapstructure:"sample_limit" yaml:"sample_limit"`
	MaxOutputTokens        int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	CallTimeout            time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	MaxRetries             int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff           time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	MaxTriggers            int           `mapstructure:"max_triggers" yaml:"max_triggers"`
	MaxQuoteLength         int           `mapstructure:"max_quote_length" yaml:"max_quote_length"`
	MinPerCategory         int           `mapstructure:"min_per_category" yaml:"min_per_category"`
	MinReferenceSimilarity float64       `mapstructure:"min_reference_similarity" yaml:"min_reference_similarity"`
	ReanchorThreshold      float64       `mapstructure:"reanchor_threshold" yaml:"reanchor_threshold"`
}

// DedupConfig controls cross-batch duplicate detection
type DedupConfig struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
}

// ScoringConfig holds relevance weights and cut-offs
type ScoringConfig struct {
	AlignmentThreshold float64 `mapstructure:"alignment_threshold" yaml:"alignment_threshold"`
	MinRelevance       float64 `mapstructure:"min_relevance" yaml:"min_relevance"`
	VocabularyWeight   float64 `mapstructure:"vocabulary_weight" yaml:"vocabulary_weight"`
	ProfileWeight      float64 `mapstructure:"profile_weight" yaml:"profile_weight"`
	GeographicWeight   float64 `mapstructure:"geographic_weight" yaml:"geographic_weight"`
}

// TierConfig is the default source-quality table. Platforms and hosts
// are matched against evidence platform names and URL hosts.
type TierConfig struct {
	PrimaryDomains      []string          `mapstructure:"primary_domains" yaml:"primary_domains"`
	SecondaryDomains    []string          `mapstructure:"secondary_domains" yaml:"secondary_domains"`
	DomainMap           map[string]string `mapstructure:"domain_map" yaml:"domain_map,omitempty"`
	PathPatterns        []PathPattern     `mapstructure:"path_patterns" yaml:"path_patterns,omitempty"`
	PrimaryMultiplier   float64           `mapstructure:"primary_multiplier" yaml:"primary_multiplier"`
	SecondaryMultiplier float64           `mapstructure:"secondary_multiplier" yaml:"secondary_multiplier"`
	TertiaryMultiplier  float64           `mapstructure:"tertiary_multiplier" yaml:"tertiary_multiplier"`
}

// PathPattern assigns a tier to URLs whose path matches Pattern
type PathPattern struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Tier    string `mapstructure:"tier" yaml:"tier"`
}

// RateLimitingConfig bounds request rates per provider key slot and per verified host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// CacheConfig controls the generation response cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Dir     string        `mapstructure:"dir" yaml:"dir,omitempty"` // empty disables the disk layer
}

// VerifyConfig controls background source verification
type VerifyConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
}

// EventsConfig points the progress publisher at a NATS server
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url" yaml:"nats_url,omitempty"` // empty disables publishing
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// ServerConfig is the HTTP API listener
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LogConfig selects the zap level
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     90 * time.Second,
			Temperature: 0.3,
		},
		Synthesis: SynthesisConfig{
			BatchCount:             4,
			SampleLimit:            200,
			MaxOutputTokens:        8000,
			CallTimeout:            90 * time.Second,
			MaxRetries:             2,
			RetryBackoff:           500 * time.Millisecond,
			MaxTriggers:            50,
			MaxQuoteLength:         280,
			MinPerCategory:         2,
			MinReferenceSimilarity: 0.15,
			ReanchorThreshold:      0.5,
		},
		Dedup: DedupConfig{
			Threshold: 0.7,
		},
		Scoring: ScoringConfig{
			AlignmentThreshold: 0.1,
			MinRelevance:       0.1,
			VocabularyWeight:   0.5,
			ProfileWeight:      0.3,
			GeographicWeight:   0.2,
		},
		Tiers: TierConfig{
			PrimaryDomains: []string{
				"g2.com", "g2", "trustpilot.com", "trustpilot", "capterra.com", "capterra",
				"gartner.com", "forrester.com",
			},
			SecondaryDomains: []string{
				"reddit.com", "reddit", "linkedin.com", "linkedin", "news.ycombinator.com",
				"hackernews", "quora.com", "quora", "youtube.com", "youtube",
			},
			PathPatterns: []PathPattern{
				{Pattern: `/reviews?/`, Tier: "primary"},
				{Pattern: `/(forum|community|discussions?)/`, Tier: "secondary"},
			},
			PrimaryMultiplier:   1.2,
			SecondaryMultiplier: 1.0,
			TertiaryMultiplier:  0.85,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2.0,
			Burst:             2,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Verify: VerifyConfig{
			Enabled:       false,
			Concurrency:   8,
			Timeout:       10 * time.Second,
			MaxRetries:    2,
			UserAgent:     "triggerscope/0.1 (+https://github.com/ppiankov/triggerscope)",
			RespectRobots: true,
		},
		Events: EventsConfig{
			SubjectPrefix: "triggerscope.synthesis",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
