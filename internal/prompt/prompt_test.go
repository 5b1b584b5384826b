package prompt

import (
	"regexp"
	"strings"
	"testing"

	"github.com/ppiankov/triggerscope/internal/model"
)

func testSources() []model.VerifiedSource {
	return []model.VerifiedSource{
		{ID: "s1", Sample: model.RawSample{Content: "I hate\n\nmonth-end   close", Platform: "reddit"}},
		{ID: "s2", Sample: model.RawSample{Content: "Worried about audit season"}},
	}
}

func TestBuild_NumbersSamplesFromOne(t *testing.T) {
	b := NewBuilder(model.ValueProposition{ProductCategory: "payroll software"}, Options{MaxOutputTokens: 8000})
	req := b.Build(testSources(), 1, 4)

	lines := regexp.MustCompile(`(?m)^\[(\d+)\] (.+)$`).FindAllStringSubmatch(req.Prompt, -1)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 numbered sample lines, got %d:\n%s", len(lines), req.Prompt)
	}
	if lines[0][1] != "1" || lines[0][2] != "I hate month-end close" {
		t.Errorf("Expected flattened first sample, got %q", lines[0][0])
	}
	if lines[1][1] != "2" {
		t.Errorf("Expected second sample numbered 2, got %s", lines[1][1])
	}
	if !strings.Contains(req.Prompt, "    platform: unknown") {
		t.Error("Expected unknown platform placeholder")
	}

	if req.RouteHint != "batch-2/4" {
		t.Errorf("Expected route hint batch-2/4, got %s", req.RouteHint)
	}
	if req.MaxTokens != 8000 || !req.JSONOutput {
		t.Errorf("Expected max tokens and JSON output set, got %+v", req)
	}
}

func TestBuild_SystemRules(t *testing.T) {
	b := NewBuilder(model.ValueProposition{ProductCategory: "payroll software"}, Options{
		MinPerCategory: 2,
		BannedTerms:    []string{"solution", "platform"},
	})
	req := b.Build(testSources(), 0, 4)

	for _, c := range model.Categories {
		if !strings.Contains(req.System, "- "+string(c)+":") {
			t.Errorf("Expected category %s to be defined", c)
		}
	}

	mustContain := []string{
		"VERBATIM",
		"sampleReferences",
		"solution, platform",
		`Say "payroll software" instead`,
		"at least 2 triggers",
		"Do not comment on the data",
	}
	for _, s := range mustContain {
		if !strings.Contains(req.System, s) {
			t.Errorf("Expected system prompt to contain %q", s)
		}
	}
}

func TestBuild_BusinessContext(t *testing.T) {
	vp := model.ValueProposition{
		BusinessName:    "Acme Payroll",
		TargetCustomer:  "small restaurant owners",
		KeyBenefit:      "payroll in five minutes",
		Transformation:  model.Transformation{Before: "weekend spreadsheets", After: "hands-off payroll"},
		Differentiators: []string{"tip pooling", "same-day deposit"},
	}
	req := NewBuilder(vp, Options{}).Build(testSources(), 0, 1)

	for _, s := range []string{"Acme Payroll", "small restaurant owners", "weekend spreadsheets", "tip pooling; same-day deposit"} {
		if !strings.Contains(req.Prompt, s) {
			t.Errorf("Expected prompt to contain %q", s)
		}
	}
	if strings.Contains(req.Prompt, "Products:") {
		t.Error("Expected empty fields to be omitted")
	}
}
