package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/triggerscope/internal/llm"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "triggerscope",
	Short: "Triggerscope - evidence-backed psychological trigger synthesis",
	Long: `Triggerscope turns scraped third-party text (reviews, forum threads,
social posts) into a ranked list of psychological triggers: fears, desires,
pain points, objections, motivations, trust signals and urgency signals.

Every trigger is backed by verbatim excerpts of registered sources. Text the
model produces is never used as evidence.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Triggerscope.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("triggerscope v0.3.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.triggerscope/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig seeds viper with the defaults, then merges the config file and
// TRIGGERSCOPE_* environment variables over them
func initConfig() {
	viper.SetConfigType("yaml")
	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err == nil {
		_ = viper.ReadConfig(bytes.NewReader(defaults))
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.triggerscope")
		viper.SetConfigName("config")
	}

	// TRIGGERSCOPE_SYNTHESIS_BATCH_COUNT overrides synthesis.batch_count
	viper.SetEnvPrefix("TRIGGERSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("llm.api_keys", "TRIGGERSCOPE_LLM_API_KEYS")

	if err := viper.MergeInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig returns the effective configuration: defaults, file, env,
// then provider credentials from the conventional variables
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyCredentials(&cfg.LLM)
	return cfg, nil
}

// applyCredentials fills keys and base URL from the provider's usual env vars
// when the config carries none. Comma-separated keys become separate slots.
func applyCredentials(c *model.LLMConfig) {
	c.APIKeys = llm.SplitKeys(c.APIKeys)
	switch c.Provider {
	case "openai":
		if len(c.APIKeys) == 0 {
			c.APIKeys = llm.SplitKeys([]string{os.Getenv("OPENAI_API_KEY")})
		}
	case "anthropic", "claude":
		if len(c.APIKeys) == 0 {
			c.APIKeys = llm.SplitKeys([]string{os.Getenv("ANTHROPIC_API_KEY")})
		}
	case "ollama":
		if c.BaseURL == "" {
			c.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// newLogger builds the process logger. Verbose switches to the development
// console encoder.
func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
		if level == "" {
			lvl = zapcore.DebugLevel
		}
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
