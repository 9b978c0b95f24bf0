package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsJobs(t *testing.T) {
	s := New()

	var runs atomic.Int64
	if err := s.Add("counter", "@every 10ms", func(ctx context.Context) {
		runs.Add(1)
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Error("job never ran")
	}
	if s.NextRun() == nil {
		t.Error("expected a next activation time")
	}
}

func TestScheduler_EmptySpecSkipsJob(t *testing.T) {
	s := New()
	if err := s.Add("disabled", "", func(ctx context.Context) {}); err != nil {
		t.Fatalf("Add with empty spec should be a no-op: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if s.NextRun() != nil {
		t.Error("nothing should be scheduled")
	}
}

func TestScheduler_RejectsInvalidSpec(t *testing.T) {
	s := New()
	if err := s.Add("broken", "not a cron spec", func(ctx context.Context) {}); err == nil {
		t.Error("expected an error for an invalid cron spec")
	}
}

func TestScheduler_AddAfterStart(t *testing.T) {
	s := New()
	if err := s.Add("a", "0 3 * * *", func(ctx context.Context) {}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Add("b", "0 4 * * *", func(ctx context.Context) {}); err == nil {
		t.Error("adding after start should fail")
	}
}
