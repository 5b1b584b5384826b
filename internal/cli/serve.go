package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/triggerscope/internal/api"
	"github.com/ppiankov/triggerscope/internal/pipeline"
	"github.com/ppiankov/triggerscope/internal/registry"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the synthesis HTTP API",
	Long: `Serve exposes synthesis and source lookup over HTTP. All requests share
one source registry, so sources cited by one run can be looked up afterwards.

Endpoints:
  POST /api/v1/synthesize
  GET  /api/v1/sources/stats
  GET  /api/v1/sources/search?quote=...&threshold=0.6
  GET  /api/v1/sources/{id}
  GET  /health`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&natsURL, "nats-url", "", "publish progress events to this NATS server")
	serveCmd.Flags().BoolVar(&verifySources, "verify-sources", false, "HEAD-check cited source URLs in the background")
	serveCmd.Flags().StringVar(&rulesFile, "rules", "", "validation rules override file (YAML)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if flags.Changed("nats-url") {
		cfg.Events.NATSURL = natsURL
	}
	if flags.Changed("verify-sources") {
		cfg.Verify.Enabled = verifySources
	}
	if flags.Changed("rules") {
		cfg.RulesFile = rulesFile
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	r, err := buildRules(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	reg := registry.New(logger)
	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithRules(r)}
	if cfg.Verify.Enabled {
		opts = append(opts, pipeline.WithVerifier(buildVerifier(cfg, reg, logger)))
	}
	synth := pipeline.New(cfg, provider, reg, opts...)

	var serverOpts []api.Option
	if client := connectEvents(ctx, cfg.Events, logger); client != nil {
		defer client.Close()
		serverOpts = append(serverOpts, api.WithPublisher(client, cfg.Events.SubjectPrefix))
	}

	fmt.Fprintf(os.Stderr, "✓ Listening on %s (%s/%s)\n", cfg.Server.Addr, cfg.LLM.Provider, cfg.LLM.Model)
	return api.NewServer(cfg.Server, synth, logger, serverOpts...).Start(ctx)
}
