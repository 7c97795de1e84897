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
		Description: "memories: imported memory records awaiting validation",
		SQL: `
CREATE TABLE memories (
    id                    TEXT PRIMARY KEY,
    content               TEXT NOT NULL,
    timestamp             INTEGER NOT NULL,
    tags                  TEXT,
    participants          TEXT,
    emotional_context     TEXT,
    relationship_dynamics TEXT,
    extraction_confidence REAL NOT NULL DEFAULT 0,
    processed_at          INTEGER,

    status                TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'auto-approve', 'needs-review', 'auto-reject', 'validated', 'rejected')),
    created_at            INTEGER NOT NULL
);

CREATE INDEX idx_memories_status  ON memories(status);
CREATE INDEX idx_memories_created ON memories(created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "decisions: engine output per memory per batch",
		SQL: `
CREATE TABLE decisions (
    id                INTEGER PRIMARY KEY,
    batch_id          TEXT NOT NULL,
    memory_id         TEXT NOT NULL,
    decision          TEXT NOT NULL,
    confidence        REAL NOT NULL,
    factors           TEXT,
    reasons           TEXT,
    suggested_actions TEXT,
    created_at        INTEGER NOT NULL,

    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_decisions_batch  ON decisions(batch_id);
CREATE INDEX idx_decisions_memory ON decisions(memory_id);
`,
	},
	{
		Version:     3,
		Description: "feedback: human review outcomes",
		SQL: `
CREATE TABLE feedback (
    id             INTEGER PRIMARY KEY,
    memory_id      TEXT NOT NULL,
    decision       TEXT NOT NULL,
    confidence     REAL NOT NULL,
    factors        TEXT,
    human_decision TEXT NOT NULL CHECK (human_decision IN ('validated', 'rejected')),
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_feedback_created ON feedback(created_at DESC);
`,
	},
	{
		Version:     4,
		Description: "threshold_versions: committed threshold configs, append-only",
		SQL: `
CREATE TABLE threshold_versions (
    id         INTEGER PRIMARY KEY,
    version    INTEGER NOT NULL,
    config     TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
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
