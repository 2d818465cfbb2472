package store

import (
	"fmt"
)

// Snapshot is a full copy of the live set, the archive, and the metrics row.
type Snapshot struct {
	Memories  []Memory `json:"memories"`
	Archive   []Memory `json:"archive"`
	Metrics   Metrics  `json:"metrics"`
	CreatedAt int64    `json:"createdAt"`
}

// Snapshot captures the full database state.
func (db *DB) Snapshot() (*Snapshot, error) {
	memories, err := db.ListMemories()
	if err != nil {
		return nil, fmt.Errorf("snapshot memories: %w", err)
	}
	archived, err := db.ListArchive()
	if err != nil {
		return nil, fmt.Errorf("snapshot archive: %w", err)
	}
	metrics, err := db.GetMetrics()
	if err != nil {
		return nil, fmt.Errorf("snapshot metrics: %w", err)
	}
	return &Snapshot{
		Memories:  memories,
		Archive:   archived,
		Metrics:   metrics,
		CreatedAt: nowMillis(),
	}, nil
}

// Restore overwrites the full database state with the snapshot.
// Idempotent given the same snapshot; all-or-nothing.
func (db *DB) Restore(s *Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}

	for _, table := range []string{"memories", "archive"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i := range s.Memories {
		m := &s.Memories[i]
		if _, err := tx.Exec(`
			INSERT INTO memories (`+memoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.Content, m.Emotion, m.Type, m.Weight, m.Timestamp,
			m.Context, encodeTags(m.Tags), m.SourceAgent); err != nil {
			tx.Rollback()
			return fmt.Errorf("restore memory %s: %w", m.ID, err)
		}
	}

	now := nowMillis()
	for i := range s.Archive {
		m := &s.Archive[i]
		if _, err := tx.Exec(`
			INSERT INTO archive (id, content, emotion, type, weight, timestamp, context, tags, source_agent, archived_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.Content, m.Emotion, m.Type, m.Weight, m.Timestamp,
			m.Context, encodeTags(m.Tags), m.SourceAgent, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("restore archived %s: %w", m.ID, err)
		}
	}

	if _, err := tx.Exec(`
		UPDATE metrics SET total_memories = ?, density = ?, dissonance_score = ?, last_consolidation = ?
		WHERE id = 1
	`, s.Metrics.TotalMemories, s.Metrics.Density, s.Metrics.DissonanceScore,
		s.Metrics.LastConsolidation); err != nil {
		tx.Rollback()
		return fmt.Errorf("restore metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	return nil
}
