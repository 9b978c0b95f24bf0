package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"parchment-hq/parchment/pkg/archive"
	"parchment-hq/parchment/pkg/cli"
	"parchment-hq/parchment/pkg/config"
	"parchment-hq/parchment/pkg/ingest"
	"parchment-hq/parchment/pkg/queue"
	"parchment-hq/parchment/pkg/retention"
	"parchment-hq/parchment/pkg/schedule"
	"parchment-hq/parchment/pkg/server"
	"parchment-hq/parchment/pkg/telemetry/health"
	"parchment-hq/parchment/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the archival engine",
	Long: `Start the archival engine with the specified configuration.

The engine watches the ingest drop directory, runs retention enforcement
on its schedule, and exposes health and metrics endpoints on the
configured listen address.

Examples:
  # Start with default config
  parchment run

  # Start with custom config
  parchment run --config /etc/parchment/config.yaml

  # Override listen address
  parchment run --listen 0.0.0.0:8025

  # Validate config without starting
  parchment run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the engine")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := setup(runFlags.logLevel)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Parchment v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer eng.Close()
	fmt.Println("✓ Archive and audit stores opened")

	collector := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Telemetry.Metrics.MetricsEnabled(),
		Namespace: cfg.Telemetry.Metrics.Namespace,
		Subsystem: cfg.Telemetry.Metrics.Subsystem,
	}, nil)
	eng.manager.SetCollector(collector)
	eng.ledger.SetCollector(collector)
	eng.holds.SetCollector(collector)
	eng.enforcer.SetCollector(collector)
	eng.pipeline.SetCollector(collector)

	// Ingestion queue and drop watcher
	q := queue.New()
	ingester, err := ingest.NewIngester(eng.manager, q, cfg.Ingest.SourceID, queue.TopicConfig{
		Workers:     cfg.Ingest.Queue.Workers,
		Buffer:      cfg.Ingest.Queue.Buffer,
		MaxAttempts: cfg.Ingest.Queue.MaxAttempts,
		RetryDelay:  cfg.Ingest.Queue.RetryDelay,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := q.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer q.Stop()

	var watcher *ingest.DropWatcher
	if cfg.Ingest.DropDir != "" {
		watcher, err = ingest.NewDropWatcher(ingester, &ingest.DropWatcherConfig{
			Dir:         cfg.Ingest.DropDir,
			SourceID:    cfg.Ingest.SourceID,
			SettleDelay: cfg.Ingest.SettleDelay,
			MaxBacklog:  int64(cfg.Ingest.MaxBacklog),
			BacklogPoll: cfg.Ingest.BacklogPoll,
		})
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("drop watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
		fmt.Printf("✓ Watching drop directory: %s\n", cfg.Ingest.DropDir)
	}

	// Retention scheduler; does nothing when the schedule is disabled
	scheduler := retention.NewScheduler(eng.enforcer)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		fmt.Printf("✓ Retention scheduled, next run %s\n", next.Format(time.RFC3339))
	}

	// Recurring compliance jobs: audit chain self-verification and hold
	// notice reminder sweeps
	jobs := schedule.New()
	verifySpec := cfg.Audit.VerifySchedule
	if verifySpec == config.ScheduleDisabled {
		verifySpec = ""
	}
	if err := jobs.Add("audit-verify", verifySpec, func(ctx context.Context) {
		result, err := eng.ledger.Verify(ctx)
		if err != nil {
			slog.Error("scheduled audit verification failed", "error", err)
			return
		}
		if _, err := eng.ledger.RecordVerification(ctx, archive.SystemActor.ID, result); err != nil {
			slog.Error("recording audit verification failed", "error", err)
		}
	}); err != nil {
		return cli.NewCommandError("run", err)
	}
	reminderSpec := cfg.Holds.ReminderSchedule
	if reminderSpec == config.ScheduleDisabled {
		reminderSpec = ""
	}
	if err := jobs.Add("notice-reminders", reminderSpec, func(ctx context.Context) {
		if _, err := eng.holds.RunReminderSweep(ctx, cfg.Holds.ReminderInterval); err != nil {
			slog.Error("notice reminder sweep failed", "error", err)
		}
	}); err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := jobs.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer jobs.Stop()

	// Gauge poller for queue depth and active holds
	go pollGauges(ctx, eng, ingester, collector)

	// Operational HTTP server
	checker := health.New(cfg.Telemetry.Health.ProbeTimeout)
	checker.Register("archive-db", health.DatabaseCheck(eng.archiveStore.DB()))
	checker.Register("audit-db", health.DatabaseCheck(eng.auditStore.DB()))
	checker.Register("blobs", health.BlobCheck(eng.blobs))

	mux := http.NewServeMux()
	health.Mount(mux, checker, Version, GitCommit, BuildDate)
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		mux.Handle("/metrics", collector.Handler())
	}

	srv := server.New(&cfg.Server, mux)
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Engine listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()
	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Engine stopped")
		return nil
	}
}

// pollGauges keeps the slow-moving gauges current: ingestion queue depth
// and the number of active holds.
func pollGauges(ctx context.Context, eng *engine, ingester *ingest.Ingester, collector *metrics.Collector) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collector.SetQueueDepth(ingest.Topic, ingester.Backlog())
			if holds, err := eng.archiveStore.ListActiveHolds(ctx); err == nil {
				collector.SetActiveHolds(int64(len(holds)))
			}
		}
	}
}
