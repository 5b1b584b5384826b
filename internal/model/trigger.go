package model

import "strings"

// Category is one of the seven psychological trigger classes
type Category string

const (
	CategoryFear       Category = "fear"
	CategoryDesire     Category = "desire"
	CategoryPainPoint  Category = "pain-point"
	CategoryObjection  Category = "objection"
	CategoryMotivation Category = "motivation"
	CategoryTrust      Category = "trust"
	CategoryUrgency    Category = "urgency"
)

// Categories lists every valid category in canonical order
var Categories = []Category{
	CategoryFear,
	CategoryDesire,
	CategoryPainPoint,
	CategoryObjection,
	CategoryMotivation,
	CategoryTrust,
	CategoryUrgency,
}

// Valid reports whether c is a member of the closed category set
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory normalizes loose spellings ("Pain Point", "pain_point", "painpoint").
func ParseCategory(s string) (Category, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	switch norm {
	case "painpoint", "pain-points", "pain":
		norm = string(CategoryPainPoint)
	case "fears":
		norm = string(CategoryFear)
	case "desires":
		norm = string(CategoryDesire)
	case "objections":
		norm = string(CategoryObjection)
	case "motivations":
		norm = string(CategoryMotivation)
	case "trust-signal", "trust-signals":
		norm = string(CategoryTrust)
	case "urgency-signal", "urgency-signals":
		norm = string(CategoryUrgency)
	}
	c := Category(norm)
	return c, c.Valid()
}

// Candidate is a validated, typed trigger proposal from one batch.
// It only exists after every validation gate has passed.
type Candidate struct {
	Category                 Category `json:"category"`
	Title                    string   `json:"title"`
	ExecutiveSummary         string   `json:"executive_summary"`
	SampleReferences         []int    `json:"sample_references"` // 1-based indices into the batch's sample list
	Confidence               float64  `json:"confidence"`
	IsTimeSensitive          bool     `json:"is_time_sensitive"`
	BuyerJourneyStage        string   `json:"buyer_journey_stage,omitempty"`
	BuyerProductFit          float64  `json:"buyer_product_fit"`
	BuyerProductFitReasoning string   `json:"buyer_product_fit_reasoning,omitempty"`
	Recategorized            bool     `json:"recategorized,omitempty"` // set by inversion correction
}

// EvidenceItem is a verbatim excerpt copied out of a VerifiedSource
type EvidenceItem struct {
	SourceID   string  `json:"source_id"`
	Quote      string  `json:"quote"`
	Platform   string  `json:"platform"`
	URL        string  `json:"url,omitempty"`
	Author     string  `json:"author,omitempty"`
	Sentiment  string  `json:"sentiment"` // positive, negative, neutral
	Confidence float64 `json:"confidence"`
}

// AlignmentComponent names a value-proposition element
type AlignmentComponent string

const (
	ComponentTargetCustomer AlignmentComponent = "target_customer"
	ComponentKeyBenefit     AlignmentComponent = "key_benefit"
	ComponentTransformation AlignmentComponent = "transformation"
	ComponentUniqueSolution AlignmentComponent = "unique_solution"
)

// ValuePropAlignment links a trigger to one value-proposition component
type ValuePropAlignment struct {
	Component   AlignmentComponent `json:"component"`
	MatchScore  float64            `json:"match_score"`
	MatchReason string             `json:"match_reason"`
}

// Stage is the trigger's position in the consolidation state machine
type Stage string

const (
	StageExtracted   Stage = "extracted"
	StageCategorized Stage = "categorized"
	StageGrouped     Stage = "grouped"
	StageAligned     Stage = "aligned"
	StageWeighted    Stage = "weighted"
	StageScored      Stage = "scored"
	StageRanked      Stage = "ranked"
	StageFiltered    Stage = "filtered"
)

// RelevanceBreakdown exposes the inputs of the relevance formula
type RelevanceBreakdown struct {
	Vocabulary     float64 `json:"vocabulary"`
	ProfileFit     float64 `json:"profile_fit"`
	GeographicFit  float64 `json:"geographic_fit"`
	TierMultiplier float64 `json:"tier_multiplier"`
	SelfPromotion  bool    `json:"self_promotion,omitempty"`
	Formula        string  `json:"formula"`
}

// ConsolidatedTrigger is the final, evidence-backed unit of output
type ConsolidatedTrigger struct {
	ID                       string               `json:"id"`
	Category                 Category             `json:"category"`
	Title                    string               `json:"title"`
	ExecutiveSummary         string               `json:"executive_summary"`
	Confidence               float64              `json:"confidence"`
	Evidence                 []EvidenceItem       `json:"evidence"`
	ValuePropAlignments      []ValuePropAlignment `json:"value_prop_alignments"`
	ProfileRelevance         float64              `json:"profile_relevance"`
	RelevanceScore           float64              `json:"relevance_score"`
	SourceTier               string               `json:"source_tier"`
	BuyerJourneyStage        string               `json:"buyer_journey_stage,omitempty"`
	BuyerProductFit          float64              `json:"buyer_product_fit"`
	BuyerProductFitReasoning string               `json:"buyer_product_fit_reasoning,omitempty"`
	IsTimeSensitive          bool                 `json:"is_time_sensitive"`
	BatchIndex               int                  `json:"batch_index"`
	RankScore                float64              `json:"rank_score"`
	Stage                    Stage                `json:"stage"`
	Breakdown                *RelevanceBreakdown  `json:"breakdown,omitempty"`
}

// Platforms returns the distinct evidence platforms in first-seen order
func (t ConsolidatedTrigger) Platforms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ev := range t.Evidence {
		p := strings.ToLower(strings.TrimSpace(ev.Platform))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
