package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8025"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Database defaults, shared by the archive and audit databases
	DefaultArchiveDatabasePath = "data/archive.db"
	DefaultAuditDatabasePath   = "data/audit.db"
	DefaultDatabaseMaxOpen     = 10
	DefaultDatabaseMaxIdle     = 5
	DefaultDatabaseBusyTimeout = 5 * time.Second

	// Blob defaults
	DefaultBlobBackend = "fs"
	DefaultBlobFSRoot  = "data/blobs"

	// Ingest defaults
	DefaultIngestSourceID    = "dropbox"
	DefaultIngestSettleDelay = 500 * time.Millisecond
	DefaultIngestMaxBacklog  = 1000
	DefaultIngestBacklogPoll = time.Second
	DefaultQueueWorkers      = 4
	DefaultQueueBuffer       = 256
	DefaultQueueMaxAttempts  = 3
	DefaultQueueRetryDelay   = 5 * time.Second

	// Hold notice reminder defaults
	DefaultHoldReminderSchedule = "0 9 * * *"
	DefaultHoldReminderInterval = 7 * 24 * time.Hour

	// Retention defaults
	DefaultRetentionSchedule = "0 3 * * *"

	// Audit defaults
	DefaultAuditVerifySchedule = "0 4 * * *"

	// Export defaults
	DefaultExportBatchSize    = 200
	DefaultExportOutputPrefix = "exports"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsNamespace   = "parchment"
	DefaultMetricsSubsystem   = "engine"
	DefaultHealthProbeTimeout = 5 * time.Second
)

// ApplyDefaults fills unset fields of cfg with their default values.
// Fields that are explicitly set, including true-by-default booleans set
// to false, are left alone.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Database defaults
	applyDatabaseDefaults(&cfg.Archive.Database, DefaultArchiveDatabasePath)
	applyDatabaseDefaults(&cfg.Audit.Database, DefaultAuditDatabasePath)

	// Blob defaults
	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = DefaultBlobBackend
	}
	if cfg.Blob.FS.Root == "" {
		cfg.Blob.FS.Root = DefaultBlobFSRoot
	}

	// Ingest defaults
	if cfg.Ingest.SourceID == "" {
		cfg.Ingest.SourceID = DefaultIngestSourceID
	}
	if cfg.Ingest.SettleDelay == 0 {
		cfg.Ingest.SettleDelay = DefaultIngestSettleDelay
	}
	if cfg.Ingest.MaxBacklog == 0 {
		cfg.Ingest.MaxBacklog = DefaultIngestMaxBacklog
	}
	if cfg.Ingest.BacklogPoll == 0 {
		cfg.Ingest.BacklogPoll = DefaultIngestBacklogPoll
	}
	if cfg.Ingest.Queue.Workers == 0 {
		cfg.Ingest.Queue.Workers = DefaultQueueWorkers
	}
	if cfg.Ingest.Queue.Buffer == 0 {
		cfg.Ingest.Queue.Buffer = DefaultQueueBuffer
	}
	if cfg.Ingest.Queue.MaxAttempts == 0 {
		cfg.Ingest.Queue.MaxAttempts = DefaultQueueMaxAttempts
	}
	if cfg.Ingest.Queue.RetryDelay == 0 {
		cfg.Ingest.Queue.RetryDelay = DefaultQueueRetryDelay
	}

	// Scheduling defaults. An explicit empty schedule in the file cannot
	// be told apart from an absent one; disabling a scheduled job is
	// done with "off".
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Audit.VerifySchedule == "" {
		cfg.Audit.VerifySchedule = DefaultAuditVerifySchedule
	}
	if cfg.Holds.ReminderSchedule == "" {
		cfg.Holds.ReminderSchedule = DefaultHoldReminderSchedule
	}
	if cfg.Holds.ReminderInterval == 0 {
		cfg.Holds.ReminderInterval = DefaultHoldReminderInterval
	}

	// Export defaults
	if cfg.Export.BatchSize == 0 {
		cfg.Export.BatchSize = DefaultExportBatchSize
	}
	if cfg.Export.OutputPrefix == "" {
		cfg.Export.OutputPrefix = DefaultExportOutputPrefix
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.RedactEmails == nil {
		cfg.Telemetry.Logging.RedactEmails = boolPtr(true)
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Health.ProbeTimeout == 0 {
		cfg.Telemetry.Health.ProbeTimeout = DefaultHealthProbeTimeout
	}
}

func applyDatabaseDefaults(db *DatabaseConfig, defaultPath string) {
	if db.Path == "" {
		db.Path = defaultPath
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = DefaultDatabaseMaxOpen
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = DefaultDatabaseMaxIdle
	}
	if db.WALMode == nil {
		db.WALMode = boolPtr(true)
	}
	if db.BusyTimeout == 0 {
		db.BusyTimeout = DefaultDatabaseBusyTimeout
	}
}

func boolPtr(b bool) *bool { return &b }
