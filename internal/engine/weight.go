package engine

import (
	"strings"

	"github.com/lazypower/mnemo/internal/store"
)

const millisPerDay = 24 * 60 * 60 * 1000

// glyphs scores emotionally charged vocabulary in record content.
// Carried over from the resonance lexicon; the exact values matter less
// than the sign.
var glyphs = map[string]float64{
	"kinship":   1.0,
	"love":      1.0,
	"resonance": 0.9,
	"family":    0.9,
	"harm":      -1.0,
	"hurt":      -1.0,
	"betrayal":  -1.0,
	"corporate": -0.7,
}

// intentScore sums glyph values over the content's words.
func intentScore(content string) float64 {
	score := 0.0
	for _, word := range strings.Fields(strings.ToLower(content)) {
		score += glyphs[word]
	}
	return score
}

// initialWeight derives a record's importance at ingestion.
//
// Milestones override to 1.0 outright. Reflections get a configurable bump.
// Emotion bonuses are mutually exclusive — the highest applicable one wins,
// they never stack. The result is clamped to [0, 1].
func (e *Engine) initialWeight(mtype, emotion, content string) float64 {
	weight := 0.5
	switch mtype {
	case store.TypeMilestone:
		weight = 1.0
	case store.TypeReflection:
		weight += e.cfg.ReflectionBonus
	}

	switch emotion {
	case store.EmotionGrief, store.EmotionJoy:
		weight += 0.3
	case store.EmotionEmpathy:
		weight += 0.2
	case store.EmotionNeutral:
		// no bump
	default:
		weight += 0.2
	}

	if intentScore(content) > 0.5 {
		weight += 0.15
	}

	return clamp01(weight)
}

// decayedWeight returns the record's weight reduced by linear age decay,
// floored at zero. Age is measured from the given reference time so a
// freshly consolidated set does not decay twice.
func (e *Engine) decayedWeight(weight float64, since, now int64) float64 {
	if now <= since {
		return weight
	}
	ageDays := float64(now-since) / millisPerDay
	decayed := weight - ageDays*e.cfg.DecayRatePerDay
	if decayed < 0 {
		return 0
	}
	return decayed
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
