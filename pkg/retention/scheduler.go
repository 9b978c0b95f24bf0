package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs retention enforcement on a cron schedule.
type Scheduler struct {
	enforcer *Enforcer
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a retention scheduler.
func NewScheduler(enforcer *Enforcer) *Scheduler {
	return &Scheduler{
		enforcer: enforcer,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "retention.scheduler"),
	}
}

// Start begins scheduled enforcement based on the configured cron
// expression.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "0 0 * * 0"    - Weekly on Sunday at midnight
//
// If the schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.enforcer.config.Schedule
	if schedule == "" {
		s.logger.Info("retention schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		s.runEnforcement(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule retention enforcement: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", schedule,
		"dry_run", s.enforcer.config.DryRun,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runEnforcement executes one enforcement cycle.
func (s *Scheduler) runEnforcement(ctx context.Context) {
	s.logger.Info("starting scheduled retention enforcement")

	result, err := s.enforcer.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled retention enforcement failed", "error", err)
		return
	}

	if result.Deleted > 0 || result.Notified > 0 {
		s.logger.Info("scheduled retention enforcement completed",
			"deleted", result.Deleted,
			"notified", result.Notified,
			"skipped_on_hold", result.SkippedOnHold,
		)
	} else {
		s.logger.Debug("scheduled retention enforcement completed, nothing eligible")
	}
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled enforcement time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
