package hold

import (
	"context"
	"testing"
	"time"

	"parchment-hq/parchment/pkg/archive"
)

func createHoldForNotices(t *testing.T, f *fixture) *archive.LegalHold {
	t.Helper()

	hold, err := f.engine.CreateHold(context.Background(), &CreateHoldInput{
		CaseID:      "case-1",
		CustodianID: "cust-alice",
		Reason:      "litigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}
	return hold
}

func TestEngine_SendAndAcknowledgeNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold := createHoldForNotices(t, f)

	notice, err := f.engine.SendNotice(ctx, hold.ID, "cust-alice", "", "preserve all mail", testActor)
	if err != nil {
		t.Fatalf("SendNotice failed: %v", err)
	}
	if notice.Channel != "manual" {
		t.Errorf("empty channel should default to manual, got %q", notice.Channel)
	}

	acked, err := f.engine.AcknowledgeNotice(ctx, hold.ID, notice.ID, "alice@example.com", testActor)
	if err != nil {
		t.Fatalf("AcknowledgeNotice failed: %v", err)
	}
	if acked.AcknowledgedAt == nil || acked.AcknowledgedBy != "alice@example.com" {
		t.Errorf("acknowledgement not recorded: %+v", acked)
	}

	// Acknowledging twice is a conflict.
	_, err = f.engine.AcknowledgeNotice(ctx, hold.ID, notice.ID, "alice@example.com", testActor)
	if _, ok := err.(*archive.ConflictError); !ok {
		t.Errorf("expected ConflictError, got %T: %v", err, err)
	}
}

func TestEngine_SendNotice_ReleasedHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold := createHoldForNotices(t, f)

	if _, err := f.engine.ReleaseHold(ctx, hold.ID, testActor); err != nil {
		t.Fatalf("ReleaseHold failed: %v", err)
	}

	_, err := f.engine.SendNotice(ctx, hold.ID, "cust-alice", "manual", "", testActor)
	if _, ok := err.(*archive.ConflictError); !ok {
		t.Errorf("expected ConflictError, got %T: %v", err, err)
	}
}

func TestEngine_RunReminderSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold := createHoldForNotices(t, f)

	// An old unacknowledged notice triggers a reminder.
	stale := &archive.HoldNotice{
		ID:          "n-stale",
		HoldID:      hold.ID,
		CustodianID: "cust-alice",
		Channel:     "manual",
		SentAt:      time.Now().UTC().Add(-10 * 24 * time.Hour),
		SentBy:      testActor.ID,
	}
	if err := f.store.InsertNotice(ctx, stale); err != nil {
		t.Fatalf("seed notice: %v", err)
	}

	sent, err := f.engine.RunReminderSweep(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("RunReminderSweep failed: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}

	notices, err := f.engine.Notices(ctx, hold.ID)
	if err != nil {
		t.Fatalf("Notices failed: %v", err)
	}
	if len(notices) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(notices))
	}
	if notices[0].Channel != "reminder" || notices[0].SentBy != "system" {
		t.Errorf("reminder not recorded as system notice: %+v", notices[0])
	}

	// The reminder is now the latest notice and is recent, so a second
	// sweep sends nothing.
	sent, err = f.engine.RunReminderSweep(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if sent != 0 {
		t.Errorf("expected no reminders on second sweep, got %d", sent)
	}
}

func TestEngine_RunReminderSweep_SkipsAcknowledged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold := createHoldForNotices(t, f)

	ackAt := time.Now().UTC().Add(-9 * 24 * time.Hour)
	acked := &archive.HoldNotice{
		ID:             "n-acked",
		HoldID:         hold.ID,
		CustodianID:    "cust-alice",
		Channel:        "manual",
		SentAt:         time.Now().UTC().Add(-10 * 24 * time.Hour),
		SentBy:         testActor.ID,
		AcknowledgedAt: &ackAt,
		AcknowledgedBy: "alice@example.com",
	}
	if err := f.store.InsertNotice(ctx, acked); err != nil {
		t.Fatalf("seed notice: %v", err)
	}

	sent, err := f.engine.RunReminderSweep(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("RunReminderSweep failed: %v", err)
	}
	if sent != 0 {
		t.Errorf("acknowledged notices should not trigger reminders, got %d", sent)
	}
}
