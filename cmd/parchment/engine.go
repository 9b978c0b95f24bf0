package main

import (
	"context"
	"fmt"

	"parchment-hq/parchment/pkg/archive"
	archivestorage "parchment-hq/parchment/pkg/archive/storage"
	"parchment-hq/parchment/pkg/audit"
	auditstorage "parchment-hq/parchment/pkg/audit/storage"
	"parchment-hq/parchment/pkg/blob"
	"parchment-hq/parchment/pkg/cli"
	"parchment-hq/parchment/pkg/config"
	"parchment-hq/parchment/pkg/export"
	"parchment-hq/parchment/pkg/hold"
	"parchment-hq/parchment/pkg/retention"
	"parchment-hq/parchment/pkg/search"
	"parchment-hq/parchment/pkg/telemetry/logging"
)

// setup loads configuration and installs the default logger. Every
// subcommand that touches the archive calls this first. A non-empty
// levelOverride wins over both the config file and --verbose.
func setup(levelOverride string) (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	logCfg := &logging.Config{
		Level:        cfg.Telemetry.Logging.Level,
		Format:       cfg.Telemetry.Logging.Format,
		AddSource:    cfg.Telemetry.Logging.AddSource,
		RedactEmails: cfg.Telemetry.Logging.Redact(),
	}
	if verbose {
		logCfg.Level = "debug"
	}
	if levelOverride != "" {
		logCfg.Level = levelOverride
	}
	if _, err := logging.Setup(logCfg); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, nil
}

// engine holds the wired core of the archival system, shared by the run,
// retention, and export commands.
type engine struct {
	archiveStore *archivestorage.SQLiteStore
	auditStore   *auditstorage.SQLiteStore
	ledger       *audit.Ledger
	blobs        blob.Gateway
	manager      *archive.Manager
	holds        *hold.Engine
	enforcer     *retention.Enforcer
	pipeline     *export.Pipeline
}

// buildEngine opens the stores and wires the archive manager, hold
// engine, retention enforcer, and export pipeline together.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	archiveStore, err := archivestorage.NewSQLiteStore(archiveDBConfig(&cfg.Archive.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	auditStore, err := auditstorage.NewSQLiteStore(auditDBConfig(&cfg.Audit.Database))
	if err != nil {
		archiveStore.Close()
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	ledger := audit.NewLedger(auditStore)

	blobs, err := buildBlobGateway(ctx, &cfg.Blob)
	if err != nil {
		archiveStore.Close()
		auditStore.Close()
		return nil, err
	}

	index := search.NoopIndex{}
	manager := archive.NewManager(archiveStore, blobs, index, ledger)
	holds := hold.NewEngine(archiveStore, ledger, index)
	manager.SetHoldApplier(holds)

	schedule := cfg.Retention.Schedule
	if schedule == config.ScheduleDisabled {
		schedule = ""
	}
	enforcer := retention.NewEnforcer(archiveStore, manager, ledger, &retention.Config{
		Schedule: schedule,
		DryRun:   cfg.Retention.DryRun,
	})

	pipeline := export.NewPipeline(archiveStore, manager, blobs, ledger, &export.Config{
		BatchSize:    cfg.Export.BatchSize,
		OutputPrefix: cfg.Export.OutputPrefix,
	})

	return &engine{
		archiveStore: archiveStore,
		auditStore:   auditStore,
		ledger:       ledger,
		blobs:        blobs,
		manager:      manager,
		holds:        holds,
		enforcer:     enforcer,
		pipeline:     pipeline,
	}, nil
}

// Close releases the database connections.
func (e *engine) Close() {
	e.archiveStore.Close()
	e.auditStore.Close()
}

func buildBlobGateway(ctx context.Context, cfg *config.BlobConfig) (blob.Gateway, error) {
	switch cfg.Backend {
	case "fs":
		return blob.NewFSGateway(cfg.FS.Root)
	case "s3":
		return blob.NewS3Gateway(ctx, &blob.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.Backend)
	}
}

func archiveDBConfig(db *config.DatabaseConfig) *archivestorage.SQLiteConfig {
	return &archivestorage.SQLiteConfig{
		Path:         db.Path,
		MaxOpenConns: db.MaxOpenConns,
		MaxIdleConns: db.MaxIdleConns,
		WALMode:      db.WAL(),
		BusyTimeout:  db.BusyTimeout,
	}
}

func auditDBConfig(db *config.DatabaseConfig) *auditstorage.SQLiteConfig {
	return &auditstorage.SQLiteConfig{
		Path:         db.Path,
		MaxOpenConns: db.MaxOpenConns,
		MaxIdleConns: db.MaxIdleConns,
		WALMode:      db.WAL(),
		BusyTimeout:  db.BusyTimeout,
	}
}
