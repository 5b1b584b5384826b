package score

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/triggerscope/internal/model"
)

// Tier is a source-quality class
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierTertiary  Tier = "tertiary"
)

func (t Tier) rank() int {
	switch t {
	case TierPrimary:
		return 3
	case TierSecondary:
		return 2
	}
	return 1
}

// Tierer assigns a source-quality tier and relevance multiplier to a trigger
type Tierer interface {
	Tier(t model.ConsolidatedTrigger) (Tier, float64)
}

// DomainTierer classifies evidence by platform name and URL host
type DomainTierer struct {
	config       model.TierConfig
	primaryMap   map[string]bool
	secondaryMap map[string]bool
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    Tier
}

// NewDomainTierer creates a new DomainTierer. A nil config uses the defaults.
func NewDomainTierer(config *model.TierConfig) *DomainTierer {
	if config == nil {
		def := model.DefaultConfig().Tiers
		config = &def
	}

	d := &DomainTierer{
		config:       *config,
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
	}
	for _, domain := range config.PrimaryDomains {
		d.primaryMap[strings.ToLower(domain)] = true
	}
	for _, domain := range config.SecondaryDomains {
		d.secondaryMap[strings.ToLower(domain)] = true
	}

	// Invalid patterns are skipped
	for _, pp := range config.PathPatterns {
		if re, err := regexp.Compile(pp.Pattern); err == nil {
			d.pathPatterns = append(d.pathPatterns, compiledPattern{pattern: re, tier: ParseTier(pp.Tier)})
		}
	}

	return d
}

// Classify tiers one piece of evidence
func (d *DomainTierer) Classify(platform, rawURL string) Tier {
	if rawURL != "" {
		if tier, ok := d.classifyURL(rawURL); ok {
			return tier
		}
	}
	if tier, ok := d.lookup(strings.ToLower(strings.TrimSpace(platform))); ok {
		return tier
	}
	return TierTertiary
}

func (d *DomainTierer) classifyURL(rawURL string) (Tier, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	if tier, ok := d.lookup(host); ok {
		return tier, true
	}

	for _, cp := range d.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier, true
		}
	}

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") {
		return TierPrimary, true
	}
	return "", false
}

func (d *DomainTierer) lookup(name string) (Tier, bool) {
	if name == "" {
		return "", false
	}
	if tierStr, ok := d.config.DomainMap[name]; ok {
		return ParseTier(tierStr), true
	}
	if matchDomain(d.primaryMap, name) {
		return TierPrimary, true
	}
	if matchDomain(d.secondaryMap, name) {
		return TierSecondary, true
	}
	return "", false
}

// matchDomain accepts exact names and subdomains (uk.trustpilot.com)
func matchDomain(domains map[string]bool, host string) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Tier returns the best tier across a trigger's evidence and its multiplier
func (d *DomainTierer) Tier(t model.ConsolidatedTrigger) (Tier, float64) {
	best := TierTertiary
	for _, ev := range t.Evidence {
		if tier := d.Classify(ev.Platform, ev.URL); tier.rank() > best.rank() {
			best = tier
		}
	}
	return best, d.Multiplier(best)
}

// Multiplier returns the configured relevance multiplier for tier
func (d *DomainTierer) Multiplier(tier Tier) float64 {
	switch tier {
	case TierPrimary:
		return d.config.PrimaryMultiplier
	case TierSecondary:
		return d.config.SecondaryMultiplier
	}
	return d.config.TertiaryMultiplier
}

// ParseTier converts a tier name or number to a Tier
func ParseTier(tier string) Tier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return TierPrimary
	case "secondary", "2":
		return TierSecondary
	}
	return TierTertiary
}
