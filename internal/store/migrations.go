package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: live memory records",
		SQL: `
CREATE TABLE memories (
    id           TEXT PRIMARY KEY,
    content      TEXT NOT NULL,
    emotion      TEXT NOT NULL,
    type         TEXT NOT NULL,
    weight       REAL NOT NULL,
    timestamp    INTEGER NOT NULL,
    context      TEXT,
    tags         TEXT,
    source_agent TEXT
);

CREATE INDEX idx_memories_timestamp ON memories(timestamp DESC);
CREATE INDEX idx_memories_weight    ON memories(weight);
CREATE INDEX idx_memories_type      ON memories(type);
`,
	},
	{
		Version:     2,
		Description: "archive: cold storage for aged-out records",
		SQL: `
CREATE TABLE archive (
    id           TEXT PRIMARY KEY,
    content      TEXT NOT NULL,
    emotion      TEXT NOT NULL,
    type         TEXT NOT NULL,
    weight       REAL NOT NULL,
    timestamp    INTEGER NOT NULL,
    context      TEXT,
    tags         TEXT,
    source_agent TEXT,
    archived_at  INTEGER NOT NULL
);

CREATE INDEX idx_archive_timestamp ON archive(timestamp DESC);
`,
	},
	{
		Version:     3,
		Description: "metrics: single current snapshot row",
		SQL: `
CREATE TABLE metrics (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    total_memories     INTEGER NOT NULL DEFAULT 0,
    density            REAL NOT NULL DEFAULT 0,
    dissonance_score   INTEGER NOT NULL DEFAULT 0,
    last_consolidation INTEGER NOT NULL DEFAULT 0
);

INSERT INTO metrics (id) VALUES (1);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
