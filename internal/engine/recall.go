package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/lazypower/mnemo/internal/store"
)

// Composite score weights and recall caps.
const (
	similarityWeight = 0.6
	weightWeight     = 0.3
	recencyWeight    = 0.1

	recencyWindowMs = 30 * millisPerDay // recency term fades to 0 over 30 days

	maxRecallLimit   = 50
	defaultPageSize  = 50
	defaultRecallCap = maxRecallLimit
)

// RecallRequest selects and ranks live records for a query.
// Query may be the empty string: scoring then degrades to weight + recency.
type RecallRequest struct {
	Query     string
	Type      string
	Emotion   string
	MinWeight float64
	Page      int // 1-based
	PageSize  int
	Limit     int
}

// RecallResult is one ranked record with its composite score.
type RecallResult struct {
	Memory store.Memory `json:"memory"`
	Score  float64      `json:"score"`
}

// RecallPage is a ranked page of results.
type RecallPage struct {
	Results []RecallResult `json:"results"`
	Count   int            `json:"count"`
	Page    int            `json:"page"`
}

// Recall ranks live records in the requested page window by
// similarity*0.6 + weight*0.3 + recency*0.1, drops scores at or below the
// configured noise threshold, and truncates to min(limit, 50). Ties break
// toward the more recent record. Recall never mutates a record.
func (e *Engine) Recall(req RecallRequest) (*RecallPage, error) {
	if req.Type != "" && !store.ValidTypes[req.Type] {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", req.Type)}
	}
	if req.Emotion != "" && !store.ValidEmotions[req.Emotion] {
		return nil, &ValidationError{Field: "emotion", Reason: fmt.Sprintf("unknown emotion %q", req.Emotion)}
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	limit := req.Limit
	if limit < 1 || limit > maxRecallLimit {
		limit = defaultRecallCap
	}

	candidates, err := e.db.QueryMemories(store.MemoryQuery{
		Type:      req.Type,
		Emotion:   req.Emotion,
		MinWeight: req.MinWeight,
		Offset:    (page - 1) * pageSize,
		Limit:     pageSize,
	})
	if err != nil {
		return nil, storageErr("recall query", err)
	}

	now := time.Now().UnixMilli()
	results := make([]RecallResult, 0, len(candidates))
	for _, m := range candidates {
		score := Similarity(m.Content, req.Query)*similarityWeight +
			m.Weight*weightWeight +
			recency(m.Timestamp, now)*recencyWeight
		if score <= e.cfg.NoiseThreshold {
			continue
		}
		results = append(results, RecallResult{Memory: m, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.Timestamp > results[j].Memory.Timestamp
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return &RecallPage{Results: results, Count: len(results), Page: page}, nil
}

// recency maps record age onto [0, 1]: 1 for brand new, 0 beyond 30 days.
func recency(timestamp, now int64) float64 {
	age := now - timestamp
	if age <= 0 {
		return 1
	}
	r := 1 - float64(age)/recencyWindowMs
	if r < 0 {
		return 0
	}
	return r
}
