package config

import (
	"os"
	"strings"
	"testing"
)

func TestNewManager_Defaults(t *testing.T) {
	os.Unsetenv("PROTOCOL_EVIDENCE_SERVER_PORT")

	manager, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	cfg := manager.GetConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("default server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Search.MaxResults != 20 {
		t.Errorf("default search max_results = %d, want 20", cfg.Search.MaxResults)
	}
	if cfg.Search.PubMed.RateLimit != 3 {
		t.Errorf("default PubMed rate limit = %d, want 3", cfg.Search.PubMed.RateLimit)
	}
	if cfg.Review.Backend != "sqlite" {
		t.Errorf("default review backend = %q, want sqlite", cfg.Review.Backend)
	}

	if err := manager.Validate(); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}

	conn := manager.GetDatabaseConnectionString()
	if !strings.HasPrefix(conn, "postgres://") {
		t.Errorf("connection string %q should be URL form", conn)
	}
	if !strings.Contains(conn, "sslmode=disable") {
		t.Errorf("connection string %q should carry the ssl mode", conn)
	}
}

func TestNewManager_EnvOverride(t *testing.T) {
	os.Setenv("PROTOCOL_EVIDENCE_SERVER_PORT", "9090")
	os.Setenv("PROTOCOL_EVIDENCE_REVIEW_BACKEND", "postgres")
	defer func() {
		os.Unsetenv("PROTOCOL_EVIDENCE_SERVER_PORT")
		os.Unsetenv("PROTOCOL_EVIDENCE_REVIEW_BACKEND")
	}()

	manager, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	cfg := manager.GetConfig()
	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Review.Backend != "postgres" {
		t.Errorf("review backend = %q, want env override postgres", cfg.Review.Backend)
	}

	if err := manager.Validate(); err != nil {
		t.Errorf("overridden configuration should validate: %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	manager, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	manager.config.Server.Port = 0
	if err := manager.Validate(); err == nil {
		t.Error("expected error for port 0")
	}
	manager.config.Server.Port = 8080

	manager.config.Review.Backend = "mongodb"
	if err := manager.Validate(); err == nil {
		t.Error("expected error for unknown review backend")
	}
	manager.config.Review.Backend = "sqlite"

	manager.config.Search.MaxResults = 0
	if err := manager.Validate(); err == nil {
		t.Error("expected error for zero search max_results")
	}
}
