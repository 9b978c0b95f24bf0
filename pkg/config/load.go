package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention PARCHMENT_SECTION_FIELD (e.g.,
// PARCHMENT_SERVER_LISTEN_ADDRESS) and always take precedence over
// file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString("PARCHMENT_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("PARCHMENT_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("PARCHMENT_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("PARCHMENT_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("PARCHMENT_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database overrides
	setString("PARCHMENT_ARCHIVE_DATABASE_PATH", &cfg.Archive.Database.Path)
	setString("PARCHMENT_AUDIT_DATABASE_PATH", &cfg.Audit.Database.Path)

	// Blob overrides
	setString("PARCHMENT_BLOB_BACKEND", &cfg.Blob.Backend)
	setString("PARCHMENT_BLOB_FS_ROOT", &cfg.Blob.FS.Root)
	setString("PARCHMENT_BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	setString("PARCHMENT_BLOB_S3_REGION", &cfg.Blob.S3.Region)
	setString("PARCHMENT_BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	setString("PARCHMENT_BLOB_S3_ACCESS_KEY", &cfg.Blob.S3.AccessKey)
	setString("PARCHMENT_BLOB_S3_SECRET_KEY", &cfg.Blob.S3.SecretKey)
	setBool("PARCHMENT_BLOB_S3_USE_PATH_STYLE", &cfg.Blob.S3.UsePathStyle)

	// Ingest overrides
	setString("PARCHMENT_INGEST_SOURCE_ID", &cfg.Ingest.SourceID)
	setString("PARCHMENT_INGEST_DROP_DIR", &cfg.Ingest.DropDir)
	setDuration("PARCHMENT_INGEST_SETTLE_DELAY", &cfg.Ingest.SettleDelay)
	setInt("PARCHMENT_INGEST_MAX_BACKLOG", &cfg.Ingest.MaxBacklog)
	setInt("PARCHMENT_INGEST_QUEUE_WORKERS", &cfg.Ingest.Queue.Workers)

	// Hold reminder overrides
	setString("PARCHMENT_HOLDS_REMINDER_SCHEDULE", &cfg.Holds.ReminderSchedule)
	setDuration("PARCHMENT_HOLDS_REMINDER_INTERVAL", &cfg.Holds.ReminderInterval)

	// Retention overrides
	setString("PARCHMENT_RETENTION_SCHEDULE", &cfg.Retention.Schedule)
	setBool("PARCHMENT_RETENTION_DRY_RUN", &cfg.Retention.DryRun)

	// Audit overrides
	setString("PARCHMENT_AUDIT_VERIFY_SCHEDULE", &cfg.Audit.VerifySchedule)

	// Export overrides
	setInt("PARCHMENT_EXPORT_BATCH_SIZE", &cfg.Export.BatchSize)
	setString("PARCHMENT_EXPORT_OUTPUT_PREFIX", &cfg.Export.OutputPrefix)

	// Telemetry overrides
	setString("PARCHMENT_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("PARCHMENT_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv("PARCHMENT_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = boolPtr(b)
		}
	}
}

func setString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
