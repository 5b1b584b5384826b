package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/triggerscope/internal/events"
	"github.com/ppiankov/triggerscope/internal/ingest"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/pipeline"
	"github.com/ppiankov/triggerscope/internal/registry"
	"github.com/ppiankov/triggerscope/internal/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	vpFile        string
	profileFile   string
	rulesFile     string
	outJSON       string
	outMD         string
	natsURL       string
	verifySources bool
	noCache       bool
	breakdown     bool
	timeout       time.Duration
	llmProvider   string
	llmModel      string
	batchCount    int
	maxTriggers   int
)

// synthesizeCmd represents the synthesize command
var synthesizeCmd = &cobra.Command{
	Use:   "synthesize <samples.json|samples.jsonl|url>",
	Short: "Synthesize evidence-backed triggers from scraped samples",
	Long: `Synthesize registers every sample, selects the most informative ones,
runs parallel generation batches and consolidates the validated results into
a ranked, deduplicated trigger list.

Evidence quotes are always copied from registered samples. A batch that fails
does not fail the run; the report lists it and the remaining batches stand.

Example:
  triggerscope synthesize samples.jsonl --vp vp.yaml
  triggerscope synthesize samples.json --vp vp.yaml --profile profile.yaml --md triggers.md
  triggerscope synthesize https://example.com/export.jsonl --vp vp.yaml --verify-sources`,
	Args: cobra.ExactArgs(1),
	RunE: runSynthesize,
}

func init() {
	rootCmd.AddCommand(synthesizeCmd)

	// Input flags
	synthesizeCmd.Flags().StringVar(&vpFile, "vp", "", "value proposition file (YAML or JSON)")
	synthesizeCmd.Flags().StringVar(&profileFile, "profile", "", "business profile file (YAML or JSON, optional)")
	synthesizeCmd.Flags().StringVar(&rulesFile, "rules", "", "validation rules override file (YAML)")

	// Output flags
	synthesizeCmd.Flags().StringVar(&outJSON, "json", "triggers.json", "output JSON path")
	synthesizeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	synthesizeCmd.Flags().BoolVar(&breakdown, "breakdown", false, "include the relevance formula in Markdown")
	synthesizeCmd.Flags().StringVar(&natsURL, "nats-url", "", "publish progress events to this NATS server")

	// Run flags
	synthesizeCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall run timeout")
	synthesizeCmd.Flags().BoolVar(&verifySources, "verify-sources", false, "HEAD-check sample URLs before synthesis; dead links are excluded")
	synthesizeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the generation response cache")
	synthesizeCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	synthesizeCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	synthesizeCmd.Flags().IntVar(&batchCount, "batches", 0, "number of parallel batches")
	synthesizeCmd.Flags().IntVar(&maxTriggers, "max-triggers", 0, "maximum triggers after deduplication")
}

// applySynthesizeFlags lets explicitly set flags override the loaded config
func applySynthesizeFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("rules") {
		cfg.RulesFile = rulesFile
	}
	if flags.Changed("nats-url") {
		cfg.Events.NATSURL = natsURL
	}
	if flags.Changed("verify-sources") {
		cfg.Verify.Enabled = verifySources
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if flags.Changed("llm-provider") {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKeys = nil
		applyCredentials(&cfg.LLM)
	}
	if flags.Changed("llm-model") {
		cfg.LLM.Model = llmModel
	}
	if batchCount > 0 {
		cfg.Synthesis.BatchCount = batchCount
	}
	if maxTriggers > 0 {
		cfg.Synthesis.MaxTriggers = maxTriggers
	}
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	location := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySynthesizeFlags(cmd, &cfg)

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var vp model.ValueProposition
	if vpFile != "" {
		if err := readYAMLFile(vpFile, &vp); err != nil {
			return fmt.Errorf("value proposition: %w", err)
		}
	}
	if vp.IsEmpty() {
		fmt.Fprintf(os.Stderr, "⚠️  No value proposition given; alignment scores will be zero\n")
	}

	var profile *model.BusinessProfile
	if profileFile != "" {
		profile = &model.BusinessProfile{}
		if err := readYAMLFile(profileFile, profile); err != nil {
			return fmt.Errorf("business profile: %w", err)
		}
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	r, err := buildRules(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Samples: %s\n", location)
		fmt.Fprintf(os.Stderr, "Provider: %s/%s (%d key slots)\n", cfg.LLM.Provider, cfg.LLM.Model, len(cfg.LLM.APIKeys))
		fmt.Fprintf(os.Stderr, "Batches: %d, sample limit: %d\n", cfg.Synthesis.BatchCount, cfg.Synthesis.SampleLimit)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Loading samples...\n")
	fetcher := ingest.NewFetcherWithProxy(cfg.Verify.Timeout, cfg.Verify.UserAgent, ingest.DefaultMaxBytes,
		cfg.LLM.HTTPProxy, cfg.LLM.HTTPSProxy, cfg.LLM.NoProxy)
	samples, report, err := ingest.NewLoader(logger).Load(ctx, location, fetcher)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d samples (%d duplicates, %d empty, %d malformed skipped)\n",
		report.Loaded, report.Duplicates, report.Empty, report.Malformed)

	reg := registry.New(logger)
	if cfg.Verify.Enabled {
		sources := reg.RegisterAll(samples)
		fmt.Fprintf(os.Stderr, "⚙️  Verifying %d source URLs...\n", len(sources))
		summary, _ := buildVerifier(cfg, reg, logger).Run(ctx, sources)
		fmt.Fprintf(os.Stderr, "✓ Verified %d, invalid %d, skipped %d, unknown %d\n",
			summary.Verified, summary.Invalid, summary.Skipped, summary.Unknown)
	}

	runID := uuid.NewString()
	var notifier *events.Notifier
	if client := connectEvents(ctx, cfg.Events, logger); client != nil {
		defer client.Close()
		notifier = events.NewNotifier(client, cfg.Events.SubjectPrefix, runID, logger)
	}

	synth := pipeline.New(cfg, provider, reg,
		pipeline.WithLogger(logger),
		pipeline.WithRules(r),
	)

	fmt.Fprintf(os.Stderr, "⚙️  Synthesizing across %d batches...\n", cfg.Synthesis.BatchCount)
	out, err := synth.Synthesize(ctx, pipeline.Input{
		RunID:            runID,
		Samples:          samples,
		ValueProposition: vp,
		Profile:          profile,
		OnBatchComplete: func(triggers []model.ConsolidatedTrigger, batchIndex, totalBatches int) {
			fmt.Fprintf(os.Stderr, "  ✓ Batch %d/%d: %d triggers\n", batchIndex+1, totalBatches, len(triggers))
			if notifier != nil {
				notifier.BatchCompleted(triggers, batchIndex, totalBatches)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("synthesis aborted: %w", err)
	}
	if notifier != nil {
		notifier.Completed(out)
	}

	logger.Info("synthesis complete",
		zap.String("run_id", out.RunID),
		zap.Int("triggers", len(out.Triggers)),
		zap.Duration("elapsed", out.SynthesisTime),
	)

	renderer := render.NewRenderer(breakdown)
	if outJSON != "" {
		if err := renderer.RenderJSON(out, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(out, vp, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
	}

	fmt.Fprintln(os.Stderr)
	render.PrintSummary(os.Stderr, out)
	return nil
}
