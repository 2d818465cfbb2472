package store

import (
	"fmt"
)

// Metrics is the single current snapshot of derived counters.
// It is recomputed by the engine after every mutation, never hand-edited.
type Metrics struct {
	TotalMemories     int     `json:"totalMemories"`
	Density           float64 `json:"density"`
	DissonanceScore   int     `json:"dissonanceScore"`
	LastConsolidation int64   `json:"lastConsolidation"` // unix millis, 0 = never
}

// GetMetrics returns the current metrics snapshot.
func (db *DB) GetMetrics() (Metrics, error) {
	var m Metrics
	err := db.QueryRow(`
		SELECT total_memories, density, dissonance_score, last_consolidation
		FROM metrics WHERE id = 1
	`).Scan(&m.TotalMemories, &m.Density, &m.DissonanceScore, &m.LastConsolidation)
	if err != nil {
		return Metrics{}, fmt.Errorf("get metrics: %w", err)
	}
	return m, nil
}

// SaveMetrics overwrites the metrics snapshot in full.
func (db *DB) SaveMetrics(m Metrics) error {
	_, err := db.Exec(`
		UPDATE metrics SET total_memories = ?, density = ?, dissonance_score = ?, last_consolidation = ?
		WHERE id = 1
	`, m.TotalMemories, m.Density, m.DissonanceScore, m.LastConsolidation)
	if err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}
