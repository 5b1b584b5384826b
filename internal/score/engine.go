// Package score aligns, weights, scores and ranks consolidated triggers
// against a business's value proposition and profile.
package score

import (
	"sort"

	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/rules"
	"go.uber.org/zap"
)

// Result is the outcome of one consolidation pass
type Result struct {
	Ranked         []model.ConsolidatedTrigger
	Filtered       []model.ConsolidatedTrigger
	CategoryCounts map[model.Category]int // ranked triggers only
}

// Engine runs triggers through Grouped → Aligned → Weighted → Scored → Ranked | Filtered
type Engine struct {
	cfg     model.ScoringConfig
	vp      model.ValueProposition
	vocab   map[string]bool
	profile *model.BusinessProfile
	tierer  Tierer
	rules   *rules.Rules
	logger  *zap.Logger
}

// NewEngine creates a new Engine. A nil tierer uses the default domain
// table; nil rules use the built-in catalogs.
func NewEngine(cfg model.ScoringConfig, vp model.ValueProposition, profile *model.BusinessProfile, tierer Tierer, r *rules.Rules, logger *zap.Logger) *Engine {
	if tierer == nil {
		tierer = NewDomainTierer(nil)
	}
	if r == nil {
		r = rules.MustDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		vp:      vp,
		vocab:   vocabulary(vp),
		profile: profile,
		tierer:  tierer,
		rules:   r,
		logger:  logger,
	}
}

// Consolidate scores every trigger and splits ranked from filtered ones. The
// input is not modified.
func (e *Engine) Consolidate(triggers []model.ConsolidatedTrigger) Result {
	var res Result

	for _, t := range triggers {
		t.Stage = model.StageGrouped
		t = e.align(t)
		t = e.weight(t)
		t = e.score(t)

		if t.Stage == model.StageFiltered {
			e.logger.Debug("trigger filtered",
				zap.String("title", t.Title),
				zap.Float64("relevance", t.RelevanceScore),
				zap.Bool("self_promotion", t.Breakdown != nil && t.Breakdown.SelfPromotion),
			)
			res.Filtered = append(res.Filtered, t)
			continue
		}
		res.Ranked = append(res.Ranked, t)
	}

	Rank(res.Ranked)
	for i := range res.Ranked {
		res.Ranked[i].Stage = model.StageRanked
	}
	res.CategoryCounts = GroupByCategory(res.Ranked)

	return res
}

func (e *Engine) align(t model.ConsolidatedTrigger) model.ConsolidatedTrigger {
	t.ValuePropAlignments = Align(t, e.vp, e.cfg.AlignmentThreshold)
	t.Stage = model.StageAligned
	return t
}

func (e *Engine) weight(t model.ConsolidatedTrigger) model.ConsolidatedTrigger {
	t.ProfileRelevance = ProfileRelevance(t, e.profile)
	t.Stage = model.StageWeighted
	return t
}

func (e *Engine) score(t model.ConsolidatedTrigger) model.ConsolidatedTrigger {
	tier, mult := e.tierer.Tier(t)
	t.SourceTier = string(tier)

	b := model.RelevanceBreakdown{
		Vocabulary:     vocabularyFit(t, e.vocab),
		ProfileFit:     profileFit(t, e.profile),
		GeographicFit:  geographicFit(t, e.vp.Locations),
		TierMultiplier: mult,
	}

	if e.selfPromotional(t) {
		b.SelfPromotion = true
		b.Formula = formula(e.cfg, b, 0)
		t.RelevanceScore = 0
		t.RankScore = 0
		t.Breakdown = &b
		t.Stage = model.StageFiltered
		return t
	}

	base := e.cfg.VocabularyWeight*b.Vocabulary + e.cfg.ProfileWeight*b.ProfileFit + e.cfg.GeographicWeight*b.GeographicFit
	relevance := clamp(base*mult, 0, 1)
	b.Formula = formula(e.cfg, b, relevance)

	t.RelevanceScore = relevance
	t.RankScore = relevance * t.Confidence * t.ProfileRelevance
	t.Breakdown = &b
	t.Stage = model.StageScored

	if relevance < e.cfg.MinRelevance {
		t.Stage = model.StageFiltered
	}
	return t
}

func (e *Engine) selfPromotional(t model.ConsolidatedTrigger) bool {
	if e.rules.SelfPromotion(t.Title) != "" || e.rules.SelfPromotion(t.ExecutiveSummary) != "" {
		return true
	}
	for _, ev := range t.Evidence {
		if e.rules.SelfPromotion(ev.Quote) != "" {
			return true
		}
	}
	return false
}

// Rank orders triggers in place by relevance × confidence × profile
// relevance, then category, then confidence.
func Rank(triggers []model.ConsolidatedTrigger) {
	sort.SliceStable(triggers, func(i, j int) bool {
		a, b := triggers[i], triggers[j]
		ka := a.RelevanceScore * a.Confidence * a.ProfileRelevance
		kb := b.RelevanceScore * b.Confidence * b.ProfileRelevance
		if ka != kb {
			return ka > kb
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Confidence > b.Confidence
	})
}

// GroupByCategory counts triggers per category
func GroupByCategory(triggers []model.ConsolidatedTrigger) map[model.Category]int {
	counts := make(map[model.Category]int)
	for _, t := range triggers {
		counts[t.Category]++
	}
	return counts
}
