package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reelforge/reelforge/internal/bytesize"
	"github.com/reelforge/reelforge/pkg/api"
	"github.com/reelforge/reelforge/pkg/store/session"
	"github.com/reelforge/reelforge/pkg/upload"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyAPIDefaults(&cfg.API)
	applyDatabaseDefaults(&cfg.Database)
	applyUploadDefaults(&cfg.Upload)
	applyJobsDefaults(&cfg.Jobs)
	applyReaperDefaults(&cfg.Reaper)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyAPIDefaults(cfg *api.Config) {
	cfg.ApplyDefaults()
}

func applyDatabaseDefaults(cfg *session.Config) {
	cfg.ApplyDefaults()
}

func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 5 * bytesize.GiB
	}
	if len(cfg.AllowedMimeTypes) == 0 {
		cfg.AllowedMimeTypes = []string{
			"video/mp4",
			"video/webm",
			"video/quicktime",
			"video/x-matroska",
		}
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
}

func applyJobsDefaults(cfg *JobsConfig) {
	if cfg.Path == "" {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			homeDir, _ := os.UserHomeDir()
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
		cfg.Path = filepath.Join(dataDir, "reelforge", "jobs")
	}
}

func applyReaperDefaults(cfg *upload.ReaperConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = time.Hour
	}
	if cfg.ReenqueueBatch == 0 {
		cfg.ReenqueueBatch = 100
	}
}

// GetDefaultConfig returns a Config struct with all default values
// applied. Useful for generating sample configuration files and for
// tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: session.Config{
			Type: session.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
		Storage: StorageConfig{
			Bucket: "reelforge-media",
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
