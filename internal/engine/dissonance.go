package engine

import (
	"context"

	"github.com/lazypower/mnemo/internal/store"
)

// dissonanceSimilarity is the overlap above which two records of opposite
// emotional polarity count as a conflicting pair. Intentionally lower than
// the merge threshold: dissonance flags tension, merging demands near-duplicates.
const dissonanceSimilarity = 0.5

// emotionPolarity classifies emotions for conflict detection. Emotions
// absent here are neutral and never participate in a dissonant pair.
var emotionPolarity = map[string]int{
	store.EmotionJoy:         1,
	store.EmotionContentment: 1,
	store.EmotionGrief:       -1,
}

// ComputeDissonance counts pairs of live records whose content overlaps
// but whose emotional polarity conflicts, and persists the count on the
// metrics row. O(n²) over the live set; consolidation keeps n bounded.
func (e *Engine) ComputeDissonance(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.db.ListMemories()
	if err != nil {
		return 0, storageErr("dissonance read", err)
	}

	score := 0
	for i := 0; i < len(records); i++ {
		pi := emotionPolarity[records[i].Emotion]
		if pi == 0 {
			continue
		}
		for j := i + 1; j < len(records); j++ {
			pj := emotionPolarity[records[j].Emotion]
			if pi*pj != -1 {
				continue
			}
			if Similarity(records[i].Content, records[j].Content) > dissonanceSimilarity {
				score++
			}
		}
	}

	metrics, err := e.db.GetMetrics()
	if err != nil {
		return 0, storageErr("dissonance metrics read", err)
	}
	metrics.DissonanceScore = score
	if err := e.db.SaveMetrics(metrics); err != nil {
		return 0, storageErr("dissonance metrics save", err)
	}
	return score, nil
}
