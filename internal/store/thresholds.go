package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keepsakehq/keepsake/internal/engine"
)

// SaveThresholds appends a committed threshold config to the version log.
func (db *DB) SaveThresholds(cfg engine.ThresholdConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal thresholds: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO threshold_versions (version, config, created_at)
		VALUES (?, ?, ?)
	`, cfg.Version, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save thresholds v%d: %w", cfg.Version, err)
	}
	return nil
}

// LatestThresholds returns the most recently committed config, or nil when
// none has been saved yet.
func (db *DB) LatestThresholds() (*engine.ThresholdConfig, error) {
	var payload string
	err := db.QueryRow(`
		SELECT config FROM threshold_versions ORDER BY id DESC LIMIT 1
	`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest thresholds: %w", err)
	}

	var cfg engine.ThresholdConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal thresholds: %w", err)
	}
	return &cfg, nil
}
