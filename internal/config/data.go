// Package config provides configuration management for the evidence server.
// This file contains the data-directory layout for the clinician review
// store, which can run standalone without the full server configuration.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DataConfig describes the on-disk layout used by the review store. It
// requires no external databases and uses sensible defaults.
type DataConfig struct {
	DataDir string // Base directory for data files

	// Local cache settings for standalone operation
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// API settings
	PubMedAPIKey string // Optional: NCBI API key for higher rate limits

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultDataConfig returns a configuration with sensible defaults.
func DefaultDataConfig() *DataConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".protocol-evidence")

	return &DataConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadDataConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadDataConfig() *DataConfig {
	cfg := DefaultDataConfig()

	if v := os.Getenv("PROTOCOL_EVIDENCE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("PROTOCOL_EVIDENCE_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("PROTOCOL_EVIDENCE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.PubMedAPIKey = os.Getenv("PUBMED_API_KEY")

	if v := os.Getenv("PROTOCOL_EVIDENCE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROTOCOL_EVIDENCE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ReviewDBPath returns the path to the clinician review SQLite database.
func (c *DataConfig) ReviewDBPath() string {
	return filepath.Join(c.DataDir, "review.db")
}

// ReviewStorePath resolves where the SQLite review database lives. An
// explicit path from the server configuration wins; otherwise the database
// is placed in the per-user data directory, which is created on demand.
func (c *DataConfig) ReviewStorePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if err := c.EnsureDataDir(); err != nil {
		return "", err
	}
	return c.ReviewDBPath(), nil
}

// ExportDir returns the directory for JSON exports.
func (c *DataConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *DataConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
