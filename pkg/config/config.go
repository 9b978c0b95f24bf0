package config

import "time"

// Config is the root configuration structure for the Parchment archival
// engine. It contains all configuration sections for the HTTP server, the
// archive and audit databases, blob storage, mailbox ingestion, retention
// enforcement, the export pipeline, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Archive contains configuration for the archive database holding
	// record metadata, holds, cases, and policies.
	Archive ArchiveConfig `yaml:"archive"`

	// Audit contains configuration for the audit ledger database. The
	// ledger lives in its own database so that archive maintenance can
	// never touch the hash chain.
	Audit AuditConfig `yaml:"audit"`

	// Blob contains configuration for message and attachment content
	// storage, either on the local filesystem or in an S3-compatible
	// object store.
	Blob BlobConfig `yaml:"blob"`

	// Ingest contains configuration for the drop-directory watcher and
	// the ingestion queue.
	Ingest IngestConfig `yaml:"ingest"`

	// Holds contains configuration for legal hold notice reminders.
	Holds HoldsConfig `yaml:"holds"`

	// Retention contains configuration for scheduled retention
	// enforcement.
	Retention RetentionConfig `yaml:"retention"`

	// Export contains configuration for the export pipeline.
	Export ExportConfig `yaml:"export"`

	// Telemetry contains configuration for logging, metrics, and health
	// probes.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server that exposes
// metrics and health endpoints.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8025"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// kept-alive connection.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is how long to wait for in-flight requests during
	// graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ArchiveConfig contains configuration for the archive metadata store.
type ArchiveConfig struct {
	// Database is the SQLite database holding archived record metadata.
	Database DatabaseConfig `yaml:"database"`
}

// AuditConfig contains configuration for the audit ledger store.
type AuditConfig struct {
	// Database is the SQLite database holding the hash-chained ledger.
	Database DatabaseConfig `yaml:"database"`

	// VerifySchedule is a cron expression for periodic chain
	// self-verification. "off" disables it.
	// Default: "0 4 * * *"
	VerifySchedule string `yaml:"verify_schedule"`
}

// DatabaseConfig contains connection settings for a SQLite database.
type DatabaseConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// WAL reports whether WAL mode is enabled, treating unset as the default.
func (c *DatabaseConfig) WAL() bool {
	return c.WALMode == nil || *c.WALMode
}

// BlobConfig contains configuration for blob content storage.
type BlobConfig struct {
	// Backend selects the storage backend: "fs" or "s3".
	// Default: "fs"
	Backend string `yaml:"backend"`

	// FS contains filesystem backend settings, used when Backend is "fs".
	FS FSBlobConfig `yaml:"fs"`

	// S3 contains object store settings, used when Backend is "s3".
	S3 S3BlobConfig `yaml:"s3"`
}

// FSBlobConfig contains configuration for the filesystem blob backend.
type FSBlobConfig struct {
	// Root is the directory under which blobs are stored.
	// Default: "data/blobs"
	Root string `yaml:"root"`
}

// S3BlobConfig contains configuration for the S3-compatible blob backend.
type S3BlobConfig struct {
	// Bucket is the bucket name. Required when the backend is "s3".
	Bucket string `yaml:"bucket"`

	// Region is the bucket region.
	Region string `yaml:"region"`

	// Endpoint overrides the service endpoint, for MinIO and other
	// non-AWS deployments. Leave empty for AWS.
	Endpoint string `yaml:"endpoint"`

	// AccessKey and SecretKey are static credentials.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// UsePathStyle forces path-style addressing, required by MinIO.
	UsePathStyle bool `yaml:"use_path_style"`
}

// IngestConfig contains configuration for mailbox ingestion.
type IngestConfig struct {
	// SourceID identifies the mail source attributed to ingested
	// messages.
	// Default: "dropbox"
	SourceID string `yaml:"source_id"`

	// DropDir is the directory watched for dropped .eml files. Empty
	// disables the drop watcher.
	DropDir string `yaml:"drop_dir"`

	// SettleDelay is how long a dropped file must be quiet before it is
	// picked up, so half-written files are not ingested.
	// Default: 500ms
	SettleDelay time.Duration `yaml:"settle_delay"`

	// MaxBacklog is the queue depth above which the watcher stops
	// enqueueing new files until workers catch up.
	// Default: 1000
	MaxBacklog int `yaml:"max_backlog"`

	// BacklogPoll is how often the watcher re-checks the backlog while
	// waiting for it to drain.
	// Default: 1s
	BacklogPoll time.Duration `yaml:"backlog_poll"`

	// Queue configures the ingestion worker pool.
	Queue QueueConfig `yaml:"queue"`
}

// QueueConfig contains worker pool settings for a queue topic.
type QueueConfig struct {
	// Workers is the number of concurrent workers.
	// Default: 4
	Workers int `yaml:"workers"`

	// Buffer is the channel buffer size.
	// Default: 256
	Buffer int `yaml:"buffer"`

	// MaxAttempts is how many times a job is tried before it is dropped.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the pause between attempts.
	// Default: 5s
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// HoldsConfig contains configuration for legal hold notice reminders.
type HoldsConfig struct {
	// ReminderSchedule is a cron expression for the reminder sweep over
	// unacknowledged preservation notices. "off" disables it.
	// Default: "0 9 * * *"
	ReminderSchedule string `yaml:"reminder_schedule"`

	// ReminderInterval is how long a notice may sit unacknowledged
	// before a reminder is sent.
	// Default: 168h (7 days)
	ReminderInterval time.Duration `yaml:"reminder_interval"`
}

// RetentionConfig contains configuration for retention enforcement.
type RetentionConfig struct {
	// Schedule is a cron expression for automatic enforcement runs.
	// Empty disables the scheduler.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// DryRun evaluates policies and writes audit entries without
	// deleting anything.
	// Default: false
	DryRun bool `yaml:"dry_run"`
}

// ExportConfig contains configuration for the export pipeline.
type ExportConfig struct {
	// BatchSize is the number of records fetched per page while
	// streaming a container.
	// Default: 200
	BatchSize int `yaml:"batch_size"`

	// OutputPrefix is the blob key prefix under which finished
	// containers are stored.
	// Default: "exports"
	OutputPrefix string `yaml:"output_prefix"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health configures readiness probes.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: json or text.
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactEmails masks the local part of email addresses in log
	// attribute values. Custodian addresses are personal data; leave
	// this on unless logs stay inside the compliance boundary.
	// Default: true
	RedactEmails *bool `yaml:"redact_emails"`
}

// Redact reports whether email redaction is enabled, treating unset as
// the default.
func (c *LoggingConfig) Redact() bool {
	return c.RedactEmails == nil || *c.RedactEmails
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled toggles metric collection and the /metrics endpoint.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "parchment"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric name subsystem.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`
}

// MetricsEnabled reports whether metrics are enabled, treating unset as
// the default.
func (c *MetricsConfig) MetricsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HealthConfig contains configuration for readiness probes.
type HealthConfig struct {
	// ProbeTimeout is the per-dependency probe timeout.
	// Default: 5s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}
