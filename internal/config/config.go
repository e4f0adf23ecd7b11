// Package config provides process configuration for the insight engine.
// Per-group tunables (trust and intelligence configs) live in the
// database; this package only covers process-level settings.
package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Config holds the process configuration.
type Config struct {
	// DSN selects the store backend: a postgres:// URL or a SQLite path.
	DSN      string `json:"dsn"`
	MaxConns int    `json:"max_conns"`

	// StalenessMinutes is the intelligence profile cache window.
	StalenessMinutes int `json:"staleness_minutes"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// DataDir returns the data directory path (~/.insight).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".insight")
}

// DBPath returns the default embedded database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "insight.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DSN:              DBPath(),
		MaxConns:         10,
		StalenessMinutes: 60,
	}
}

// Staleness returns the profile cache window as a duration.
func (c *Config) Staleness() time.Duration {
	if c.StalenessMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.StalenessMinutes) * time.Minute
}

// Load loads configuration from the settings file, merging with
// defaults. The INSIGHT_DSN environment variable overrides both.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		var settings map[string]interface{}
		if json.Unmarshal(data, &settings) == nil {
			if v, ok := settings["INSIGHT_DSN"].(string); ok && v != "" {
				cfg.DSN = v
			}
			if v, ok := settings["INSIGHT_MAX_CONNS"].(float64); ok && v > 0 {
				cfg.MaxConns = int(v)
			}
			if v, ok := settings["INSIGHT_STALENESS_MINUTES"].(float64); ok && v > 0 {
				cfg.StalenessMinutes = int(v)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if dsn := os.Getenv("INSIGHT_DSN"); dsn != "" {
		cfg.DSN = dsn
	}

	return cfg, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})
	return globalConfig
}
