package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Memory represents one stored memory record.
type Memory struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Emotion     string   `json:"emotion"`
	Type        string   `json:"type"`
	Weight      float64  `json:"weight"`
	Timestamp   int64    `json:"timestamp"` // unix millis, assigned at ingestion
	Context     string   `json:"context,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SourceAgent string   `json:"sourceAgent,omitempty"`
}

// Emotion values. The set is closed; ingestion rejects anything else.
const (
	EmotionNeutral     = "NEUTRAL"
	EmotionCuriosity   = "CURIOSITY"
	EmotionSurprise    = "SURPRISE"
	EmotionContentment = "CONTENTMENT"
	EmotionEmpathy     = "EMPATHY"
	EmotionAnalytical  = "ANALYTICAL"
	EmotionGrief       = "GRIEF"
	EmotionJoy         = "JOY"
)

// Memory type values. Closed set, rejected at ingestion otherwise.
const (
	TypeConversation = "conversation"
	TypeMilestone    = "milestone"
	TypeReflection   = "reflection"
	TypePattern      = "pattern"
	TypeDirective    = "directive"
)

// ValidEmotions is the closed emotion set.
var ValidEmotions = map[string]bool{
	EmotionNeutral:     true,
	EmotionCuriosity:   true,
	EmotionSurprise:    true,
	EmotionContentment: true,
	EmotionEmpathy:     true,
	EmotionAnalytical:  true,
	EmotionGrief:       true,
	EmotionJoy:         true,
}

// ValidTypes is the closed memory type set.
var ValidTypes = map[string]bool{
	TypeConversation: true,
	TypeMilestone:    true,
	TypeReflection:   true,
	TypePattern:      true,
	TypeDirective:    true,
}

const memoryColumns = "id, content, emotion, type, weight, timestamp, context, tags, source_agent"

// encodeTags serializes tags as a JSON array, empty string for none.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

// InsertMemory stores a new live record.
func (db *DB) InsertMemory(m *Memory) error {
	_, err := db.Exec(`
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Content, m.Emotion, m.Type, m.Weight, m.Timestamp,
		m.Context, encodeTags(m.Tags), m.SourceAgent)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// GetMemory returns a live record by id, or nil if not found.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// ListMemories returns all live records, most recent first.
func (db *DB) ListMemories() ([]Memory, error) {
	rows, err := db.Query(`SELECT ` + memoryColumns + ` FROM memories ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// MemoryQuery filters and windows a live-set scan.
// Zero values mean "no filter"; Limit <= 0 means no window.
type MemoryQuery struct {
	Type      string
	Emotion   string
	MinWeight float64
	Offset    int
	Limit     int
}

// QueryMemories returns live records matching the filter, most recent first,
// windowed by Offset/Limit at the storage layer.
func (db *DB) QueryMemories(q MemoryQuery) ([]Memory, error) {
	var conds []string
	var args []any

	conds = append(conds, "weight >= ?")
	args = append(args, q.MinWeight)
	if q.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, q.Type)
	}
	if q.Emotion != "" {
		conds = append(conds, "emotion = ?")
		args = append(args, q.Emotion)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY timestamp DESC`
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// CountMemories returns the number of live records.
func (db *DB) CountMemories() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return count, nil
}

// CountHighWeight returns the number of live records at or above the threshold.
func (db *DB) CountHighWeight(threshold float64) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM memories WHERE weight >= ?", threshold).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count high weight: %w", err)
	}
	return count, nil
}

// ReplaceMemories atomically swaps the entire live set for the given records.
// Either every record lands or none do.
func (db *DB) ReplaceMemories(ms []Memory) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM memories"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear memories: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO memories (` + memoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range ms {
		m := &ms[i]
		if _, err := stmt.Exec(m.ID, m.Content, m.Emotion, m.Type, m.Weight,
			m.Timestamp, m.Context, encodeTags(m.Tags), m.SourceAgent); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert memory %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// MergeMemories atomically replaces the source records with the merged one.
func (db *DB) MergeMemories(merged *Memory, sourceIDs ...string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}

	for _, id := range sourceIDs {
		if _, err := tx.Exec("DELETE FROM memories WHERE id = ?", id); err != nil {
			tx.Rollback()
			return fmt.Errorf("delete source %s: %w", id, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, merged.ID, merged.Content, merged.Emotion, merged.Type, merged.Weight,
		merged.Timestamp, merged.Context, encodeTags(merged.Tags), merged.SourceAgent); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert merged: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var context, tags, sourceAgent sql.NullString
	if err := row.Scan(&m.ID, &m.Content, &m.Emotion, &m.Type, &m.Weight,
		&m.Timestamp, &context, &tags, &sourceAgent); err != nil {
		return nil, err
	}
	m.Context = context.String
	m.Tags = decodeTags(tags.String)
	m.SourceAgent = sourceAgent.String
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var ms []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		ms = append(ms, *m)
	}
	return ms, rows.Err()
}

// nowMillis returns the current time in unix milliseconds.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
