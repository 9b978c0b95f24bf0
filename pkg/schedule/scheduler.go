// Package schedule runs the engine's recurring compliance jobs, such as
// audit chain self-verification and hold notice reminder sweeps, on cron
// expressions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type job struct {
	name string
	spec string
	run  func(context.Context)
}

// Scheduler runs named jobs on cron schedules. Jobs are registered with
// Add before Start.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []job
	running bool
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: slog.Default().With("component", "schedule"),
	}
}

// Add registers a recurring job. An empty spec disables the job, so a
// config value can be passed through directly.
func (s *Scheduler) Add(name, spec string, run func(context.Context)) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q for job %s: %w", spec, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already started, cannot add job %s", name)
	}
	s.jobs = append(s.jobs, job{name: name, spec: spec, run: run})
	return nil
}

// Start launches the registered jobs. A scheduler with no jobs does
// nothing; ctx cancellation stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already started")
	}
	if len(s.jobs) == 0 {
		s.logger.Debug("no scheduled jobs configured")
		return nil
	}

	for _, j := range s.jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			s.logger.Debug("scheduled job starting", "job", j.name)
			j.run(ctx)
		}); err != nil {
			return fmt.Errorf("schedule job %s: %w", j.name, err)
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// NextRun returns the next activation time across all jobs, or nil when
// nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	for _, e := range entries[1:] {
		if e.Next.Before(next) {
			next = e.Next
		}
	}
	return &next
}
