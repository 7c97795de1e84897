package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/keepsakehq/keepsake/internal/engine"
)

// Config holds all keepsake configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Validation ValidationConfig `toml:"validation"`
	Sampling   SamplingConfig   `toml:"sampling"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ValidationConfig is the on-disk form of the engine's threshold surface.
type ValidationConfig struct {
	AutoApprove float64                  `toml:"auto_approve"`
	AutoReject  float64                  `toml:"auto_reject"`
	Weights     engine.ConfidenceWeights `toml:"weights"`
}

type SamplingConfig struct {
	Seed int64 `toml:"seed"` // 0 = non-reproducible sampling
}

// Default returns a Config with sensible defaults.
func Default() Config {
	thresholds := engine.DefaultThresholds()
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37888,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Validation: ValidationConfig{
			AutoApprove: thresholds.AutoApprove,
			AutoReject:  thresholds.AutoReject,
			Weights:     thresholds.Weights,
		},
	}
}

// DefaultPath returns the default config location: ~/.keepsake/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".keepsake", "config.toml"), nil
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Thresholds converts the validation section to an engine config.
func (c *Config) Thresholds() engine.ThresholdConfig {
	base := engine.DefaultThresholds()
	base.AutoApprove = c.Validation.AutoApprove
	base.AutoReject = c.Validation.AutoReject
	base.Weights = c.Validation.Weights
	return base
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
