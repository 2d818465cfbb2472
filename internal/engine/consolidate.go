package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/mnemo/internal/store"
)

// protectedEmotions marks records exempt from pruning for the cycle.
var protectedEmotions = map[string]bool{
	store.EmotionEmpathy:  true,
	store.EmotionSurprise: true,
}

// ConsolidateOptions overrides engine defaults for one run.
// Zero values fall back to the configured defaults.
type ConsolidateOptions struct {
	SimilarityThreshold float64
	MaxMerges           int
}

// ConsolidateResult reports what one run changed.
type ConsolidateResult struct {
	Merges      int `json:"merges"`
	Pruned      int `json:"pruned"`
	Synthesized int `json:"synthesized"`
	FinalCount  int `json:"finalCount"`
}

// working wraps a record during the decide phase. Prune protection is an
// explicit flag here; no sentinel weight ever reaches the store.
type working struct {
	store.Memory
	protected bool
}

// Consolidate runs the full pipeline over the live set: decay, prune,
// merge, promote, synthesize, then one atomic replacement of the set.
// A failed run commits nothing; a run that changes nothing still
// recomputes metrics and reports success.
//
// Decay is measured from the later of the record's timestamp and the last
// consolidation commit, so an immediate re-run at the fixed point is a
// no-op with an identical final count.
func (e *Engine) Consolidate(ctx context.Context, opts ConsolidateOptions) (*ConsolidateResult, error) {
	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = e.cfg.SimilarityThreshold
	}
	maxMerges := opts.MaxMerges
	if maxMerges <= 0 {
		maxMerges = e.cfg.MaxMerges
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.db.ListMemories()
	if err != nil {
		return nil, storageErr("consolidate read", err)
	}
	metrics, err := e.db.GetMetrics()
	if err != nil {
		return nil, storageErr("consolidate metrics read", err)
	}

	now := time.Now().UnixMilli()
	result := &ConsolidateResult{}

	// Decay + promote marking. Protection is decided up front so the prune
	// stage can consult it.
	set := make([]working, 0, len(records))
	for _, m := range records {
		since := m.Timestamp
		if metrics.LastConsolidation > since {
			since = metrics.LastConsolidation
		}
		m.Weight = e.decayedWeight(m.Weight, since, now)
		set = append(set, working{Memory: m, protected: protectedEmotions[m.Emotion]})
	}

	// Prune trivial records. Pruned records are discarded, not archived.
	kept := set[:0]
	for _, w := range set {
		if !w.protected && w.Weight < e.cfg.PruneThreshold {
			result.Pruned++
			continue
		}
		kept = append(kept, w)
	}
	set = kept

	// Merge near-duplicate records of matching type. Greedy single pass:
	// a record consumed into a group is never reconsidered this run.
	set, result.Merges = e.mergeSimilar(set, threshold, maxMerges)

	// Synthesize one reflection from the 3 most recent records — but only
	// when this run actually changed the set, or re-invocation would grow
	// it forever instead of reaching a fixed point.
	if len(set) >= 3 && (result.Merges > 0 || result.Pruned > 0) {
		set = append(set, e.synthesize(set))
		result.Synthesized = 1
	}

	// Commit: normalize protection to weight 1.0, clamp everything into
	// [0, 1], and swap the live set in one transaction.
	final := make([]store.Memory, len(set))
	for i, w := range set {
		if w.protected {
			w.Weight = 1.0
		}
		w.Weight = clamp01(w.Weight)
		final[i] = w.Memory
	}

	if err := e.db.ReplaceMemories(final); err != nil {
		return nil, storageErr("consolidate commit", err)
	}

	result.FinalCount = len(final)
	if err := e.refreshMetrics(&now); err != nil {
		return nil, storageErr("consolidate metrics", err)
	}
	return result, nil
}

// mergeSimilar groups surviving records by content similarity and type.
// Passive-path policy: weights sum (reinforcement), timestamps average.
// Returns the new set and the number of merge operations performed.
func (e *Engine) mergeSimilar(set []working, threshold float64, maxMerges int) ([]working, int) {
	merges := 0
	consumed := make(map[string]bool)
	var out []working

	for i := 0; i < len(set); i++ {
		if consumed[set[i].ID] {
			continue
		}

		group := []working{set[i]}
		for j := i + 1; j < len(set) && merges < maxMerges; j++ {
			if consumed[set[j].ID] {
				continue
			}
			if set[j].Type != set[i].Type {
				continue
			}
			if Similarity(set[i].Content, set[j].Content) < threshold {
				continue
			}
			group = append(group, set[j])
			consumed[set[j].ID] = true
			merges++
		}

		if len(group) == 1 {
			out = append(out, set[i])
			continue
		}
		out = append(out, mergeGroup(group))
	}

	return out, merges
}

// mergeGroup folds a similarity group into one synthetic record.
func mergeGroup(group []working) working {
	contents := make([]string, len(group))
	var tsSum, weightSum float64
	sharedEmotion := group[0].Emotion
	protected := false
	var tags []string
	seenTags := make(map[string]bool)

	for i, w := range group {
		contents[i] = w.Content
		tsSum += float64(w.Timestamp)
		weightSum += w.Weight
		if w.Emotion != sharedEmotion {
			sharedEmotion = store.EmotionAnalytical
		}
		if w.protected {
			protected = true
		}
		for _, tag := range w.Tags {
			if !seenTags[tag] {
				seenTags[tag] = true
				tags = append(tags, tag)
			}
		}
	}

	return working{
		Memory: store.Memory{
			ID:      uuid.NewString(),
			Content: strings.Join(contents, " / "),
			Emotion: sharedEmotion,
			Type:    group[0].Type,
			// Uncapped accumulation here signals reinforcement; the commit
			// stage clamps before anything is persisted.
			Weight:    weightSum,
			Timestamp: int64(tsSum / float64(len(group))),
			Context:   fmt.Sprintf("merged from %d memories", len(group)),
			Tags:      tags,
		},
		protected: protected,
	}
}

// synthesize builds one reflective record from the 3 most recent records.
func (e *Engine) synthesize(set []working) working {
	cluster := make([]working, len(set))
	copy(cluster, set)
	sort.Slice(cluster, func(i, j int) bool {
		return cluster[i].Timestamp > cluster[j].Timestamp
	})
	cluster = cluster[:3]

	contents := make([]string, len(cluster))
	meanWeight := 0.0
	for i, w := range cluster {
		contents[i] = w.Content
		meanWeight += w.Weight
	}
	meanWeight /= float64(len(cluster))

	return working{
		Memory: store.Memory{
			ID:      uuid.NewString(),
			Content: "[synthesis] learned from past: " + strings.Join(contents, "; "),
			Emotion: store.EmotionAnalytical,
			Type:    store.TypeReflection,
			// Mean plus reinforcement bonus; clamped at commit.
			Weight:    meanWeight + 1,
			Timestamp: e.nextTimestamp(),
			Context:   "synthesized memory",
		},
	}
}

// Merge is the on-demand selective merge of two records (triggered path):
// weight is the average plus a similarity bonus, timestamp the later of
// the two. Unlike the passive path it requires the caller to name the pair.
func (e *Engine) Merge(ctx context.Context, idA, idB string, threshold float64) (*store.Memory, error) {
	if idA == "" || idB == "" || idA == idB {
		return nil, &ValidationError{Field: "ids", Reason: "two distinct record ids required"}
	}
	if threshold <= 0 {
		threshold = e.cfg.SimilarityThreshold
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.db.GetMemory(idA)
	if err != nil {
		return nil, storageErr("merge read", err)
	}
	b, err := e.db.GetMemory(idB)
	if err != nil {
		return nil, storageErr("merge read", err)
	}
	if a == nil || b == nil {
		return nil, &ValidationError{Field: "ids", Reason: "record not found"}
	}
	if a.Type != b.Type {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("cannot merge %s with %s", a.Type, b.Type)}
	}

	sim := Similarity(a.Content, b.Content)
	if sim < threshold {
		return nil, &ValidationError{
			Field:  "similarity",
			Reason: fmt.Sprintf("%.3f below threshold %.3f", sim, threshold),
		}
	}

	emotion := a.Emotion
	if b.Emotion != a.Emotion {
		emotion = store.EmotionAnalytical
	}
	timestamp := a.Timestamp
	if b.Timestamp > timestamp {
		timestamp = b.Timestamp
	}

	merged := &store.Memory{
		ID:        uuid.NewString(),
		Content:   a.Content + " / " + b.Content,
		Emotion:   emotion,
		Type:      a.Type,
		Weight:    clamp01((a.Weight+b.Weight)/2 + 0.1*sim),
		Timestamp: timestamp,
		Context:   "merged from 2 memories",
	}

	if err := e.db.MergeMemories(merged, idA, idB); err != nil {
		return nil, storageErr("merge commit", err)
	}
	if err := e.refreshMetrics(nil); err != nil {
		return nil, storageErr("merge metrics", err)
	}
	return merged, nil
}

// Archive moves live records older than maxAgeDays with weight at or
// below weightThreshold into the archive store. Archived records are
// never merged or scored by recall again. Returns the number moved.
func (e *Engine) Archive(ctx context.Context, maxAgeDays int, weightThreshold float64) (int, error) {
	if maxAgeDays < 0 {
		return 0, &ValidationError{Field: "maxAgeDays", Reason: "must not be negative"}
	}
	if weightThreshold < 0 || weightThreshold > 1 {
		return 0, &ValidationError{Field: "weightThreshold", Reason: "must be in [0, 1]"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.db.ListMemories()
	if err != nil {
		return 0, storageErr("archive read", err)
	}

	cutoff := time.Now().UnixMilli() - int64(maxAgeDays)*millisPerDay
	var candidates []store.Memory
	for _, m := range records {
		if m.Timestamp < cutoff && m.Weight <= weightThreshold {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	if err := e.db.ArchiveMemories(candidates); err != nil {
		return 0, storageErr("archive move", err)
	}
	if err := e.refreshMetrics(nil); err != nil {
		return 0, storageErr("archive metrics", err)
	}
	return len(candidates), nil
}

// All returns the full live set, most recent first.
func (e *Engine) All() ([]store.Memory, error) {
	records, err := e.db.ListMemories()
	if err != nil {
		return nil, storageErr("list", err)
	}
	return records, nil
}
