// Package render writes synthesis output as JSON and Markdown.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/pipeline"
)

// Renderer writes run output to files
type Renderer struct {
	includeBreakdown bool
}

// NewRenderer creates a new Renderer. includeBreakdown adds the relevance
// formula under each trigger in Markdown.
func NewRenderer(includeBreakdown bool) *Renderer {
	return &Renderer{includeBreakdown: includeBreakdown}
}

// RenderJSON writes out as indented JSON
func (r *Renderer) RenderJSON(out *pipeline.Output, path string) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the Markdown report
func (r *Renderer) RenderMarkdown(out *pipeline.Output, vp model.ValueProposition, path string) error {
	return writeFile(path, []byte(r.Markdown(out, vp)))
}

// Markdown formats a report grouped by category
func (r *Renderer) Markdown(out *pipeline.Output, vp model.ValueProposition) string {
	var b strings.Builder

	title := "Psychological Triggers"
	if vp.BusinessName != "" {
		title += ": " + vp.BusinessName
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Run: `%s`\n", out.RunID)
	fmt.Fprintf(&b, "- Model: %s\n", out.Model)
	fmt.Fprintf(&b, "- Triggers: %d (raw %d, filtered %d)\n", len(out.Triggers), out.RawTriggerCount, out.FilteredCount)
	fmt.Fprintf(&b, "- Sources selected: %d\n", out.SelectedSources)
	fmt.Fprintf(&b, "- Synthesis time: %s\n\n", out.SynthesisTime.Round(time.Millisecond))

	if failed := failedBatches(out); len(failed) > 0 {
		b.WriteString("> Some batches failed; results are partial.\n>\n")
		for _, br := range failed {
			fmt.Fprintf(&b, "> - batch %d: %s\n", br.Index+1, br.Error)
		}
		b.WriteString("\n")
	}

	if len(out.Triggers) == 0 {
		b.WriteString("_No evidence-backed triggers were produced._\n")
		return b.String()
	}

	for _, cat := range model.Categories {
		triggers := byCategory(out.Triggers, cat)
		if len(triggers) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", categoryHeading(cat), len(triggers))
		for _, t := range triggers {
			r.writeTrigger(&b, t)
		}
	}

	return b.String()
}

func (r *Renderer) writeTrigger(b *strings.Builder, t model.ConsolidatedTrigger) {
	fmt.Fprintf(b, "### %s\n\n", t.Title)
	if t.ExecutiveSummary != "" {
		fmt.Fprintf(b, "%s\n\n", t.ExecutiveSummary)
	}
	fmt.Fprintf(b, "Confidence %.2f · relevance %.2f · tier %s", t.Confidence, t.RelevanceScore, t.SourceTier)
	if t.BuyerJourneyStage != "" {
		fmt.Fprintf(b, " · stage %s", t.BuyerJourneyStage)
	}
	if t.IsTimeSensitive {
		b.WriteString(" · time-sensitive")
	}
	b.WriteString("\n\n")

	for _, ev := range t.Evidence {
		fmt.Fprintf(b, "> %s\n>\n> %s", ev.Quote, attribution(ev))
		b.WriteString("\n\n")
	}

	if len(t.ValuePropAlignments) > 0 {
		b.WriteString("Aligned with:")
		for _, a := range t.ValuePropAlignments {
			fmt.Fprintf(b, " %s (%.2f)", a.Component, a.MatchScore)
		}
		b.WriteString("\n\n")
	}

	if r.includeBreakdown && t.Breakdown != nil {
		fmt.Fprintf(b, "<sub>%s</sub>\n\n", t.Breakdown.Formula)
	}
}

// PrintSummary writes a short per-category count table
func PrintSummary(w io.Writer, out *pipeline.Output) {
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %d triggers from %d sources (%s)\n", len(out.Triggers), out.SelectedSources, out.Model)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	for _, cat := range model.Categories {
		if n := out.CategoryCounts[cat]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat, n)
		}
	}
	if failed := failedBatches(out); len(failed) > 0 {
		fmt.Fprintf(w, "  ✗ %d/%d batches failed\n", len(failed), len(out.Batches))
	}
}

func attribution(ev model.EvidenceItem) string {
	parts := []string{ev.Platform}
	if ev.Author != "" {
		parts = append(parts, ev.Author)
	}
	line := "via " + strings.Join(parts, ", ")
	if ev.URL != "" {
		line += " ([source](" + ev.URL + "))"
	}
	return line + " · " + ev.Sentiment
}

func byCategory(triggers []model.ConsolidatedTrigger, cat model.Category) []model.ConsolidatedTrigger {
	var out []model.ConsolidatedTrigger
	for _, t := range triggers {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	return out
}

func categoryHeading(c model.Category) string {
	words := strings.Split(string(c), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func failedBatches(out *pipeline.Output) []pipeline.BatchReport {
	var failed []pipeline.BatchReport
	for _, br := range out.Batches {
		if br.Status != pipeline.BatchOK {
			failed = append(failed, br)
		}
	}
	return failed
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
