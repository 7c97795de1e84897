package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keepsakehq/keepsake/internal/engine"
)

// AddFeedback records a human review outcome.
func (db *DB) AddFeedback(f engine.Feedback) error {
	factors, err := json.Marshal(f.Confidence.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = db.Exec(`
		INSERT INTO feedback (memory_id, decision, confidence, factors, human_decision, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.MemoryID, f.Decision, f.Confidence.Overall, string(factors), f.HumanDecision, ts.UnixMilli())
	if err != nil {
		return fmt.Errorf("add feedback for %s: %w", f.MemoryID, err)
	}
	return nil
}

// ListFeedback returns up to limit of the most recent feedback entries,
// oldest first so replaying into a tracker preserves order.
func (db *DB) ListFeedback(limit int) ([]engine.Feedback, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(`
		SELECT memory_id, decision, confidence, factors, human_decision, created_at
		FROM (
			SELECT * FROM feedback ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []engine.Feedback
	for rows.Next() {
		var f engine.Feedback
		var factors string
		var createdAt int64
		if err := rows.Scan(&f.MemoryID, &f.Decision, &f.Confidence.Overall,
			&factors, &f.HumanDecision, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		if err := json.Unmarshal([]byte(factors), &f.Confidence.Factors); err != nil {
			return nil, fmt.Errorf("unmarshal factors: %w", err)
		}
		f.Timestamp = time.UnixMilli(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}
