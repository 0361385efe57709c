package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reelforge/reelforge/internal/bytesize"
	"github.com/reelforge/reelforge/pkg/store/session"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Database.Type != session.DatabaseTypeSQLite {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Upload.MaxUploadBytes != 5*bytesize.GiB {
		t.Errorf("Upload.MaxUploadBytes = %d, want 5Gi", cfg.Upload.MaxUploadBytes)
	}
	if cfg.Upload.SessionTTL != 24*time.Hour {
		t.Errorf("Upload.SessionTTL = %v, want 24h", cfg.Upload.SessionTTL)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Reaper.Interval != 5*time.Minute {
		t.Errorf("Reaper.Interval = %v, want 5m", cfg.Reaper.Interval)
	}
	if len(cfg.Upload.AllowedMimeTypes) == 0 {
		t.Error("expected default MIME allow-list")
	}
}

func TestValidateDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "LOUD"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
logging:
  level: debug
  format: json
api:
  port: 9999
  jwt_secret: "0123456789abcdef0123456789abcdef"
upload:
  max_upload_bytes: "2Gi"
  session_ttl: "12h"
storage:
  bucket: media
  endpoint: "http://localhost:9000"
database:
  type: sqlite
  sqlite:
    path: /tmp/test-sessions.db
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG (normalized)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", cfg.API.Port)
	}
	if cfg.Upload.MaxUploadBytes != 2*bytesize.GiB {
		t.Errorf("Upload.MaxUploadBytes = %d, want 2Gi", cfg.Upload.MaxUploadBytes)
	}
	if cfg.Upload.SessionTTL != 12*time.Hour {
		t.Errorf("Upload.SessionTTL = %v, want 12h", cfg.Upload.SessionTTL)
	}
	if cfg.Storage.Endpoint != "http://localhost:9000" {
		t.Errorf("Storage.Endpoint = %q", cfg.Storage.Endpoint)
	}
	// Unset fields fall back to defaults.
	if cfg.Reaper.StaleThreshold != time.Hour {
		t.Errorf("Reaper.StaleThreshold = %v, want 1h default", cfg.Reaper.StaleThreshold)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.API.Port = 7777

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.API.Port != 7777 {
		t.Errorf("API.Port = %d, want 7777", loaded.API.Port)
	}
}
