package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/triggerscope/internal/model"
)

func TestDefaultConfig_Compiles(t *testing.T) {
	if _, err := Compile(DefaultConfig()); err != nil {
		t.Fatalf("default catalogs must compile: %v", err)
	}
}

func TestCompile_InvalidPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Garbage = append(cfg.Garbage, `([unclosed`)

	if _, err := Compile(cfg); err == nil {
		t.Error("Expected error for invalid garbage pattern")
	}
}

func TestCompile_UnknownInversionTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inversions = []InversionRule{{Name: "bad", Pattern: "x", To: "anger"}}

	if _, err := Compile(cfg); err == nil {
		t.Error("Expected error for unknown inversion target")
	}
}

func TestGarbage(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		text    string
		garbage bool
		desc    string
	}{
		{"Based on the search results, users want speed", true, "search results commentary"},
		{"The provided samples show frustration", true, "provided samples"},
		{"I love how [Product Name] saves time", true, "placeholder bracket"},
		{"I was worried we would lose all of the", true, "cut off mid-clause"},
		{"We kept losing leads because...", true, "trailing ellipsis"},
		{"Customers want faster onboarding", true, "generic third-person observation"},
		{"I'm terrified of losing client data mid-migration", false, "real first-person quote"},
		{"Why does checkout take five minutes?", false, "question"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := r.Garbage(tt.text) != ""
			if got != tt.garbage {
				t.Errorf("Garbage(%q) = %v, expected %v", tt.text, got, tt.garbage)
			}
		})
	}
}

func TestHasQuoteIndicator(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		text     string
		expected bool
	}{
		{"I hate waiting on hold", true},
		{"Is it worth the price?", true},
		{"Too expensive for a small team", true},
		{"Fear of losing customer data during migration", true},
		{"Onboarding process overview", false},
		{"Quarterly product roadmap", false},
	}

	for _, tt := range tests {
		if got := r.HasQuoteIndicator(tt.text); got != tt.expected {
			t.Errorf("HasQuoteIndicator(%q) = %v, expected %v", tt.text, got, tt.expected)
		}
	}
}

func TestBannedTerm(t *testing.T) {
	r := MustDefault()

	if got := r.BannedTerm("Supports the key benefit of a seamless handoff"); got != "seamless" {
		t.Errorf("Expected seamless, got %q", got)
	}
	if got := r.BannedTerm("Supports the key benefit of faster payroll runs"); got != "" {
		t.Errorf("Expected no banned term, got %q", got)
	}
	// whole words only
	if got := r.BannedTerm("Replatforming took months"); got != "" {
		t.Errorf("Expected substring not to match, got %q", got)
	}
}

func TestInvert(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		category model.Category
		text     string
		expected model.Category
		changed  bool
		desc     string
	}{
		{model.CategoryDesire, "So frustrated with the slow export", model.CategoryPainPoint, true, "complaint tagged desire"},
		{model.CategoryPainPoint, "I'm worried we'll lose every invoice", model.CategoryFear, true, "fear phrasing tagged pain-point"},
		{model.CategoryPainPoint, "Honestly too expensive for what it does", model.CategoryObjection, true, "price hesitation tagged pain-point"},
		{model.CategoryDesire, "I wish reports built themselves", model.CategoryDesire, false, "genuine desire untouched"},
		{model.CategoryFear, "I'm scared of audits", model.CategoryFear, false, "already correct"},
		{model.CategoryTrust, "So frustrated with support", model.CategoryTrust, false, "category outside rule scope"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, _, changed := r.Invert(tt.category, tt.text)
			if got != tt.expected || changed != tt.changed {
				t.Errorf("Invert(%s, %q) = (%s, %v), expected (%s, %v)", tt.category, tt.text, got, changed, tt.expected, tt.changed)
			}
		})
	}
}

func TestStripLeakage(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		in       string
		expected string
	}{
		{"from sample [3]: I hate the login flow", "I hate the login flow"},
		{"Sample 12 - can't export anything", "can't export anything"},
		{"[7] Why is this so slow?", "Why is this so slow?"},
		{`"I'm tired of spreadsheets"`, "I'm tired of spreadsheets"},
		{"Quote: my team gave up (sample 4)", "my team gave up"},
		{"Nothing to strip here", "Nothing to strip here"},
	}

	for _, tt := range tests {
		if got := r.StripLeakage(tt.in); got != tt.expected {
			t.Errorf("StripLeakage(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestSelfPromotion(t *testing.T) {
	r := MustDefault()

	if r.SelfPromotion("XYZ is the industry-leading platform trusted by thousands") == "" {
		t.Error("Expected industry-leading marketing copy to be flagged")
	}
	if r.SelfPromotion("I can't trust any vendor with our payroll") != "" {
		t.Error("Expected customer voice not to be flagged")
	}
}

func TestIsEvidenceField(t *testing.T) {
	r := MustDefault()

	for _, key := range []string{"evidence", "Quote", "quotes", "excerpt",
		"supportingQuote", "supporting_quote", "supporting-quote", "evidenceText", "EVIDENCE_TEXT", "verbatimExcerpt", "keyQuotes"} {
		if !r.IsEvidenceField(key) {
			t.Errorf("Expected %q to be an evidence field", key)
		}
	}
	for _, key := range []string{"sampleReferences", "executiveSummary", "title", "buyerProductFitReasoning", ""} {
		if r.IsEvidenceField(key) {
			t.Errorf("%q must not be treated as embedded evidence", key)
		}
	}
}

func TestLoad_OverridesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `banned_terms:
  - widget
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.BannedTerms) != 1 || cfg.BannedTerms[0] != "widget" {
		t.Errorf("Expected banned terms overridden, got %v", cfg.BannedTerms)
	}
	if len(cfg.Garbage) != len(DefaultConfig().Garbage) {
		t.Error("Expected garbage patterns to keep defaults")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Inversions) == 0 {
		t.Error("Expected default inversions")
	}
}
