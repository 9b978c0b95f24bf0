package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ScheduleDisabled is the schedule value that turns a scheduled job
// off. An empty schedule cannot be used for this because ApplyDefaults
// treats it as absent.
const ScheduleDisabled = "off"

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g.,
	// "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access
// to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any validation rules fail. All validation errors
// are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase("archive.database", &cfg.Archive.Database)...)
	errs = append(errs, validateDatabase("audit.database", &cfg.Audit.Database)...)
	errs = append(errs, validateSchedule("audit.verify_schedule", cfg.Audit.VerifySchedule)...)
	errs = append(errs, validateBlob(&cfg.Blob)...)
	errs = append(errs, validateIngest(&cfg.Ingest)...)
	errs = append(errs, validateHolds(&cfg.Holds)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateExport(&cfg.Export)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{"server.idle_timeout", "must not be negative"})
	}
	return errs
}

func validateDatabase(prefix string, cfg *DatabaseConfig) []FieldError {
	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{prefix + ".path", "database path is required"})
	}
	if cfg.MaxOpenConns <= 0 {
		errs = append(errs, FieldError{prefix + ".max_open_conns", "must be positive"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{prefix + ".max_idle_conns", "must not be negative"})
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, FieldError{prefix + ".max_idle_conns", "must not exceed max_open_conns"})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{prefix + ".busy_timeout", "must not be negative"})
	}
	return errs
}

func validateBlob(cfg *BlobConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "fs":
		if cfg.FS.Root == "" {
			errs = append(errs, FieldError{"blob.fs.root", "root directory is required for the fs backend"})
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			errs = append(errs, FieldError{"blob.s3.bucket", "bucket is required for the s3 backend"})
		}
		if cfg.S3.Region == "" && cfg.S3.Endpoint == "" {
			errs = append(errs, FieldError{"blob.s3.region", "region or endpoint is required for the s3 backend"})
		}
	default:
		errs = append(errs, FieldError{"blob.backend", fmt.Sprintf("unknown backend %q (valid: fs, s3)", cfg.Backend)})
	}
	return errs
}

func validateIngest(cfg *IngestConfig) []FieldError {
	var errs []FieldError
	if cfg.SourceID == "" {
		errs = append(errs, FieldError{"ingest.source_id", "source id is required"})
	}
	if cfg.SettleDelay < 0 {
		errs = append(errs, FieldError{"ingest.settle_delay", "must not be negative"})
	}
	if cfg.MaxBacklog <= 0 {
		errs = append(errs, FieldError{"ingest.max_backlog", "must be positive"})
	}
	if cfg.Queue.Workers <= 0 {
		errs = append(errs, FieldError{"ingest.queue.workers", "must be positive"})
	}
	if cfg.Queue.Buffer <= 0 {
		errs = append(errs, FieldError{"ingest.queue.buffer", "must be positive"})
	}
	if cfg.Queue.MaxAttempts <= 0 {
		errs = append(errs, FieldError{"ingest.queue.max_attempts", "must be positive"})
	}
	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	return validateSchedule("retention.schedule", cfg.Schedule)
}

func validateHolds(cfg *HoldsConfig) []FieldError {
	errs := validateSchedule("holds.reminder_schedule", cfg.ReminderSchedule)
	if cfg.ReminderInterval <= 0 {
		errs = append(errs, FieldError{"holds.reminder_interval", "must be positive"})
	}
	return errs
}

// validateSchedule checks a cron field. Empty and "off" are both valid:
// they disable the job.
func validateSchedule(field, spec string) []FieldError {
	if spec == "" || spec == ScheduleDisabled {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return []FieldError{{field, fmt.Sprintf("invalid cron expression %q: %v", spec, err)}}
	}
	return nil
}

func validateExport(cfg *ExportConfig) []FieldError {
	var errs []FieldError
	if cfg.BatchSize <= 0 {
		errs = append(errs, FieldError{"export.batch_size", "must be positive"})
	}
	if cfg.OutputPrefix == "" {
		errs = append(errs, FieldError{"export.output_prefix", "output prefix is required"})
	} else if strings.HasPrefix(cfg.OutputPrefix, "/") || strings.HasSuffix(cfg.OutputPrefix, "/") {
		errs = append(errs, FieldError{"export.output_prefix", "must not start or end with a slash"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q (valid: debug, info, warn, error)", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q (valid: json, text)", cfg.Logging.Format)})
	}
	if cfg.Metrics.MetricsEnabled() && cfg.Metrics.Namespace == "" {
		errs = append(errs, FieldError{"telemetry.metrics.namespace", "namespace is required when metrics are enabled"})
	}
	if cfg.Health.ProbeTimeout < 0 {
		errs = append(errs, FieldError{"telemetry.health.probe_timeout", "must not be negative"})
	}
	return errs
}
