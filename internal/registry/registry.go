// Package registry is the canonical, content-deduplicated store of raw samples.
// Entries are never rewritten after registration; only their verification
// status may change.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/util"
	"go.uber.org/zap"
)

// Registry holds verified sources keyed by id and by content hash
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*model.VerifiedSource
	byHash  map[string]string
	order   []string // registration order, for stable search ties
	tokens  map[string]map[string]bool
	dupes   int
	logger  *zap.Logger
	nowFunc func() time.Time
}

// Match is one FindByContent hit
type Match struct {
	Source     model.VerifiedSource `json:"source"`
	Similarity float64              `json:"similarity"`
}

// Stats summarizes registry contents
type Stats struct {
	Total      int                              `json:"total"`
	ByStatus   map[model.VerificationStatus]int `json:"by_status"`
	ByPlatform map[string]int                   `json:"by_platform"`
	Duplicates int                              `json:"duplicates"` // registrations resolved to an existing entry
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byID:    make(map[string]*model.VerifiedSource),
		byHash:  make(map[string]string),
		tokens:  make(map[string]map[string]bool),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// ContentHash is the dedup key: sha256 over normalized content
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(util.NormalizeText(content)))
	return hex.EncodeToString(sum[:])
}

// Register stores sample and returns its entry. When content with the same
// hash is already registered the existing entry is returned unchanged, so
// callers must use the returned id rather than sample.ID.
func (r *Registry) Register(sample model.RawSample) model.VerifiedSource {
	hash := ContentHash(sample.Content)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byHash[hash]; ok {
		r.dupes++
		r.logger.Debug("duplicate sample resolved to existing source",
			zap.String("source_id", id),
			zap.String("sample_id", sample.ID),
			zap.String("platform", sample.Platform))
		return *r.byID[id]
	}

	id := uuid.NewString()
	entry := &model.VerifiedSource{
		ID:           id,
		Sample:       sample,
		Status:       model.StatusUnverified,
		ContentHash:  hash,
		RegisteredAt: r.nowFunc(),
	}
	r.byID[id] = entry
	r.byHash[hash] = id
	r.order = append(r.order, id)
	r.tokens[id] = util.TokenSet(sample.Content)

	return *entry
}

// RegisterAll registers samples in order and returns the resulting entries.
// Duplicate input resolves to the same entry more than once.
func (r *Registry) RegisterAll(samples []model.RawSample) []model.VerifiedSource {
	out := make([]model.VerifiedSource, 0, len(samples))
	for _, s := range samples {
		out = append(out, r.Register(s))
	}
	return out
}

// Get returns the entry for id
func (r *Registry) Get(id string) (model.VerifiedSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	if !ok {
		return model.VerifiedSource{}, false
	}
	return *entry, true
}

// GetMany returns the entries for ids in input order, skipping unknown ids
func (r *Registry) GetMany(ids []string) []model.VerifiedSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.VerifiedSource, 0, len(ids))
	for _, id := range ids {
		if entry, ok := r.byID[id]; ok {
			out = append(out, *entry)
		}
	}
	return out
}

// FindByContent ranks sources by the share of text's tokens they contain.
// Only sources at or above threshold are returned, best first.
func (r *Registry) FindByContent(text string, threshold float64) []Match {
	query := util.TokenSet(text)
	if len(query) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []Match
	for _, id := range r.order {
		sim := util.Coverage(query, r.tokens[id])
		if sim <= 0 || sim < threshold {
			continue
		}
		matches = append(matches, Match{Source: *r.byID[id], Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	return matches
}

// FindByQuote returns the best source whose normalized content contains the
// normalized quote, falling back to token search at threshold.
func (r *Registry) FindByQuote(quote string, threshold float64) (Match, bool) {
	needle := util.NormalizeText(quote)
	if needle == "" {
		return Match{}, false
	}

	if m, ok := r.findExact(needle); ok {
		return m, true
	}

	matches := r.FindByContent(quote, threshold)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

func (r *Registry) findExact(needle string) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		entry := r.byID[id]
		if strings.Contains(util.NormalizeText(entry.Sample.Content), needle) {
			return Match{Source: *entry, Similarity: 1}, true
		}
	}
	return Match{}, false
}

// SetStatus records a verification outcome. Last writer wins; content is
// never touched. Unknown ids are ignored.
func (r *Registry) SetStatus(id string, status model.VerificationStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return false
	}
	entry.Status = status
	return true
}

// Len returns the number of distinct sources
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Stats returns counts by status and platform
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:      len(r.byID),
		ByStatus:   make(map[model.VerificationStatus]int),
		ByPlatform: make(map[string]int),
		Duplicates: r.dupes,
	}
	for _, entry := range r.byID {
		stats.ByStatus[entry.Status]++
		platform := strings.ToLower(entry.Sample.Platform)
		if platform == "" {
			platform = "unknown"
		}
		stats.ByPlatform[platform]++
	}
	return stats
}
