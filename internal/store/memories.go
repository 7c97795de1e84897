package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/keepsakehq/keepsake/internal/engine"
)

// StatusPending marks memories that have not been through a batch yet.
const StatusPending = "pending"

// SaveMemory inserts a memory record. A missing id is minted as a ULID so
// imports from systems without ids still round-trip.
func (db *DB) SaveMemory(mem *engine.Memory) error {
	if mem.ID == "" {
		mem.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.New(rand.NewSource(time.Now().UnixNano()))).String()
	}

	tags, err := json.Marshal(mem.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	participants, err := json.Marshal(mem.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	var emotional, dynamics []byte
	if mem.EmotionalContext != nil {
		if emotional, err = json.Marshal(mem.EmotionalContext); err != nil {
			return fmt.Errorf("marshal emotional context: %w", err)
		}
	}
	if mem.RelationshipDynamics != nil {
		if dynamics, err = json.Marshal(mem.RelationshipDynamics); err != nil {
			return fmt.Errorf("marshal relationship dynamics: %w", err)
		}
	}

	var processedAt int64
	if !mem.Metadata.ProcessedAt.IsZero() {
		processedAt = mem.Metadata.ProcessedAt.UnixMilli()
	}

	_, err = db.Exec(`
		INSERT INTO memories (id, content, timestamp, tags, participants, emotional_context,
			relationship_dynamics, extraction_confidence, processed_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, mem.ID, mem.Content, mem.Timestamp.UnixMilli(), string(tags), string(participants),
		nullableText(emotional), nullableText(dynamics),
		mem.Metadata.ExtractionConfidence, processedAt, StatusPending, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save memory %s: %w", mem.ID, err)
	}
	return nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// GetMemory returns one memory by id, or nil if not found.
func (db *DB) GetMemory(id string) (*engine.Memory, error) {
	row := db.QueryRow(memorySelect+" WHERE id = ?", id)
	mem, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", id, err)
	}
	return mem, nil
}

// ListMemoriesByStatus returns memories in the given status, oldest first.
func (db *DB) ListMemoriesByStatus(status string) ([]engine.Memory, error) {
	rows, err := db.Query(memorySelect+" WHERE status = ? ORDER BY created_at", status)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// ListMemories returns all memories, oldest first.
func (db *DB) ListMemories() ([]engine.Memory, error) {
	rows, err := db.Query(memorySelect + " ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// SetMemoryStatus moves a memory to a new lifecycle status.
func (db *DB) SetMemoryStatus(id, status string) error {
	res, err := db.Exec("UPDATE memories SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("set status %s on %s: %w", status, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s not found", id)
	}
	return nil
}

// CountMemoriesByStatus tallies memories per status.
func (db *DB) CountMemoriesByStatus() (map[string]int, error) {
	rows, err := db.Query("SELECT status, COUNT(*) FROM memories GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

const memorySelect = `
	SELECT id, content, timestamp, tags, participants, emotional_context,
		relationship_dynamics, extraction_confidence, processed_at
	FROM memories`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*engine.Memory, error) {
	var mem engine.Memory
	var ts, processedAt int64
	var tags, participants string
	var emotional, dynamics sql.NullString

	err := row.Scan(&mem.ID, &mem.Content, &ts, &tags, &participants,
		&emotional, &dynamics, &mem.Metadata.ExtractionConfidence, &processedAt)
	if err != nil {
		return nil, err
	}

	mem.Timestamp = time.UnixMilli(ts)
	if processedAt > 0 {
		mem.Metadata.ProcessedAt = time.UnixMilli(processedAt)
	}
	if err := json.Unmarshal([]byte(tags), &mem.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(participants), &mem.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if emotional.Valid {
		mem.EmotionalContext = &engine.EmotionalContext{}
		if err := json.Unmarshal([]byte(emotional.String), mem.EmotionalContext); err != nil {
			return nil, fmt.Errorf("unmarshal emotional context: %w", err)
		}
	}
	if dynamics.Valid {
		mem.RelationshipDynamics = &engine.RelationshipDynamics{}
		if err := json.Unmarshal([]byte(dynamics.String), mem.RelationshipDynamics); err != nil {
			return nil, fmt.Errorf("unmarshal relationship dynamics: %w", err)
		}
	}
	return &mem, nil
}

func collectMemories(rows *sql.Rows) ([]engine.Memory, error) {
	var out []engine.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *mem)
	}
	return out, rows.Err()
}
