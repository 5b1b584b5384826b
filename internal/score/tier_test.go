package score

import (
	"testing"

	"github.com/ppiankov/triggerscope/internal/model"
)

func TestDomainTierer_Classify(t *testing.T) {
	cfg := model.DefaultConfig().Tiers
	cfg.DomainMap = map[string]string{"acme-reviews.io": "1", "spam.example": "tertiary"}
	d := NewDomainTierer(&cfg)

	tests := []struct {
		platform string
		url      string
		expected Tier
	}{
		{"g2", "", TierPrimary},
		{"", "https://www.g2.com/products/acme/reviews", TierPrimary},
		{"", "https://uk.trustpilot.com/review/acme.com", TierPrimary},
		{"reddit", "", TierSecondary},
		{"", "https://old.reddit.com/r/smallbusiness/comments/1", TierSecondary},
		{"", "https://acme-reviews.io/x", TierPrimary},
		{"blog", "https://someblog.example/reviews/payroll", TierPrimary},
		{"blog", "https://someblog.example/community/thread", TierSecondary},
		{"", "https://irs.gov/payroll", TierPrimary},
		{"blog", "https://someblog.example/post", TierTertiary},
		{"", "not a url", TierTertiary},
		{"unknown", "", TierTertiary},
	}

	for _, tt := range tests {
		if got := d.Classify(tt.platform, tt.url); got != tt.expected {
			t.Errorf("Classify(%q, %q) = %s, expected %s", tt.platform, tt.url, got, tt.expected)
		}
	}
}

func TestDomainTierer_BestEvidenceWins(t *testing.T) {
	d := NewDomainTierer(nil)

	trig := model.ConsolidatedTrigger{Evidence: []model.EvidenceItem{
		{Platform: "myblog"},
		{Platform: "reddit"},
	}}
	tier, mult := d.Tier(trig)
	if tier != TierSecondary || mult != 1.0 {
		t.Errorf("Expected secondary 1.0, got %s %f", tier, mult)
	}

	trig.Evidence = append(trig.Evidence, model.EvidenceItem{Platform: "capterra"})
	if tier, mult = d.Tier(trig); tier != TierPrimary || mult != 1.2 {
		t.Errorf("Expected primary 1.2, got %s %f", tier, mult)
	}

	if tier, mult = d.Tier(model.ConsolidatedTrigger{}); tier != TierTertiary || mult != 0.85 {
		t.Errorf("Expected tertiary 0.85 without evidence, got %s %f", tier, mult)
	}
}

func TestParseTier(t *testing.T) {
	tests := map[string]Tier{
		"primary":   TierPrimary,
		"1":         TierPrimary,
		"Secondary": TierSecondary,
		"2":         TierSecondary,
		"3":         TierTertiary,
		"bogus":     TierTertiary,
	}
	for in, expected := range tests {
		if got := ParseTier(in); got != expected {
			t.Errorf("ParseTier(%q) = %s, expected %s", in, got, expected)
		}
	}
}
