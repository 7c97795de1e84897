package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keepsakehq/keepsake/internal/engine"
)

// Decision is one stored engine decision.
type Decision struct {
	ID               int64                    `json:"id"`
	BatchID          string                   `json:"batch_id"`
	MemoryID         string                   `json:"memory_id"`
	Decision         string                   `json:"decision"`
	Confidence       float64                  `json:"confidence"`
	Factors          engine.ConfidenceFactors `json:"factors"`
	Reasons          []string                 `json:"reasons"`
	SuggestedActions []string                 `json:"suggested_actions,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
}

// SaveDecision records one engine result under a batch id and moves the
// memory's status to the decision label.
func (db *DB) SaveDecision(batchID string, res engine.ConfirmationResult) error {
	factors, err := json.Marshal(res.Confidence.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	reasons, err := json.Marshal(res.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	actions, err := json.Marshal(res.SuggestedActions)
	if err != nil {
		return fmt.Errorf("marshal suggested actions: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO decisions (batch_id, memory_id, decision, confidence, factors, reasons, suggested_actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, batchID, res.MemoryID, res.Decision, res.Confidence.Overall,
		string(factors), string(reasons), string(actions), time.Now().UnixMilli()); err != nil {
		tx.Rollback()
		return fmt.Errorf("save decision for %s: %w", res.MemoryID, err)
	}

	if _, err := tx.Exec("UPDATE memories SET status = ? WHERE id = ?", res.Decision, res.MemoryID); err != nil {
		tx.Rollback()
		return fmt.Errorf("update status for %s: %w", res.MemoryID, err)
	}

	return tx.Commit()
}

// ListDecisions returns all decisions for a batch, insertion order.
func (db *DB) ListDecisions(batchID string) ([]Decision, error) {
	rows, err := db.Query(`
		SELECT id, batch_id, memory_id, decision, confidence, factors, reasons, suggested_actions, created_at
		FROM decisions WHERE batch_id = ? ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// LatestDecision returns the most recent decision for a memory, or nil.
func (db *DB) LatestDecision(memoryID string) (*Decision, error) {
	rows, err := db.Query(`
		SELECT id, batch_id, memory_id, decision, confidence, factors, reasons, suggested_actions, created_at
		FROM decisions WHERE memory_id = ? ORDER BY id DESC LIMIT 1
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("latest decision: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanDecision(rows)
}

func scanDecision(rows *sql.Rows) (*Decision, error) {
	var d Decision
	var factors, reasons, actions string
	var createdAt int64
	if err := rows.Scan(&d.ID, &d.BatchID, &d.MemoryID, &d.Decision, &d.Confidence,
		&factors, &reasons, &actions, &createdAt); err != nil {
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	if err := json.Unmarshal([]byte(factors), &d.Factors); err != nil {
		return nil, fmt.Errorf("unmarshal factors: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &d.Reasons); err != nil {
		return nil, fmt.Errorf("unmarshal reasons: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &d.SuggestedActions); err != nil {
		return nil, fmt.Errorf("unmarshal suggested actions: %w", err)
	}
	d.CreatedAt = time.UnixMilli(createdAt)
	return &d, nil
}
