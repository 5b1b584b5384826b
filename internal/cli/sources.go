package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ppiankov/triggerscope/internal/ingest"
	"github.com/ppiankov/triggerscope/internal/registry"
	"github.com/spf13/cobra"
)

var (
	findQuote     string
	findThreshold float64
	sourcesJSON   bool
	fetchTimeout  time.Duration
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources <samples.json|samples.jsonl|url>",
	Short: "Register samples and inspect the source registry",
	Long: `Sources loads samples into a fresh registry without calling any model and
prints what the registry would hold: distinct sources by platform and status,
and how many duplicates collapsed onto existing entries.

With --find, it also looks up the source a quote came from.

Example:
  triggerscope sources samples.jsonl
  triggerscope sources samples.jsonl --verify-sources
  triggerscope sources samples.jsonl --find "payroll was late again" --threshold 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().StringVar(&findQuote, "find", "", "find the source containing this quote")
	sourcesCmd.Flags().Float64Var(&findThreshold, "threshold", 0.6, "minimum similarity for --find")
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "print stats as JSON")
	sourcesCmd.Flags().BoolVar(&verifySources, "verify-sources", false, "HEAD-check sample URLs")
	sourcesCmd.Flags().DurationVar(&fetchTimeout, "timeout", 5*time.Minute, "overall timeout for loading and verification")
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	fetcher := ingest.NewFetcherWithProxy(cfg.Verify.Timeout, cfg.Verify.UserAgent, ingest.DefaultMaxBytes,
		cfg.LLM.HTTPProxy, cfg.LLM.HTTPSProxy, cfg.LLM.NoProxy)
	samples, report, err := ingest.NewLoader(logger).Load(ctx, args[0], fetcher)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}

	reg := registry.New(logger)
	sources := reg.RegisterAll(samples)
	if verifySources {
		summary, _ := buildVerifier(cfg, reg, logger).Run(ctx, sources)
		fmt.Fprintf(os.Stderr, "✓ Verified %d, invalid %d, skipped %d, unknown %d\n",
			summary.Verified, summary.Invalid, summary.Skipped, summary.Unknown)
	}

	stats := reg.Stats()
	if sourcesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"ingest": report, "registry": stats}); err != nil {
			return err
		}
	} else {
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Printf("  %d distinct sources (%d records read)\n", stats.Total, report.Records)
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Printf("  Duplicates:    %d\n", report.Duplicates)
		fmt.Printf("  Empty:         %d\n", report.Empty)
		fmt.Printf("  Malformed:     %d\n", report.Malformed)
		fmt.Printf("  HTML stripped: %d\n", report.HTMLStripped)
		fmt.Println()
		fmt.Println("  By platform:")
		for _, k := range sortedKeys(stats.ByPlatform) {
			fmt.Printf("    %-14s %d\n", k, stats.ByPlatform[k])
		}
		fmt.Println("  By status:")
		for status, n := range stats.ByStatus {
			fmt.Printf("    %-14s %d\n", status, n)
		}
	}

	if findQuote == "" {
		return nil
	}
	match, ok := reg.FindByQuote(findQuote, findThreshold)
	if !ok {
		return fmt.Errorf("no source matches %q at threshold %.2f", findQuote, findThreshold)
	}
	fmt.Println()
	fmt.Printf("✓ %s (similarity %.2f, %s)\n", match.Source.ID, match.Similarity, match.Source.Sample.Platform)
	if match.Source.Sample.URL != "" {
		fmt.Printf("  %s\n", match.Source.Sample.URL)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
