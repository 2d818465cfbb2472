package store

import (
	"fmt"
)

// ArchiveMemories moves the given records from the live set to the archive.
// The move is transactional: a record is never present in both tables,
// and a partial failure leaves the live set untouched.
func (db *DB) ArchiveMemories(ms []Memory) error {
	if len(ms) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}

	now := nowMillis()
	for i := range ms {
		m := &ms[i]
		if _, err := tx.Exec(`
			INSERT INTO archive (id, content, emotion, type, weight, timestamp, context, tags, source_agent, archived_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.Content, m.Emotion, m.Type, m.Weight, m.Timestamp,
			m.Context, encodeTags(m.Tags), m.SourceAgent, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive insert %s: %w", m.ID, err)
		}
		if _, err := tx.Exec("DELETE FROM memories WHERE id = ?", m.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive delete %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// ListArchive returns all archived records, most recent first.
func (db *DB) ListArchive() ([]Memory, error) {
	rows, err := db.Query(`SELECT ` + memoryColumns + ` FROM archive ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// CountArchive returns the number of archived records.
func (db *DB) CountArchive() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM archive").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count archive: %w", err)
	}
	return count, nil
}
