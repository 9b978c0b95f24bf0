package hold

import (
	"context"
	"testing"
	"time"

	"parchment-hq/parchment/pkg/archive"
	archivestorage "parchment-hq/parchment/pkg/archive/storage"
	"parchment-hq/parchment/pkg/audit"
	auditstorage "parchment-hq/parchment/pkg/audit/storage"
)

var testActor = archive.Actor{ID: "counsel@example.com", IP: "10.0.0.7"}

// captureIndex records every reindex batch the engine pushes.
type captureIndex struct {
	batches [][]string
}

func (c *captureIndex) IndexRecords(ctx context.Context, ids []string) error {
	c.batches = append(c.batches, ids)
	return nil
}

func (c *captureIndex) DeleteRecords(ctx context.Context, ids []string) error { return nil }

type fixture struct {
	store  *archivestorage.MemoryStore
	ledger *audit.Ledger
	index  *captureIndex
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := archivestorage.NewMemoryStore()
	ledger := audit.NewLedger(auditstorage.NewMemoryStore())
	index := &captureIndex{}
	f := &fixture{
		store:  store,
		ledger: ledger,
		index:  index,
		engine: NewEngine(store, ledger, index),
	}

	ctx := context.Background()
	now := time.Now().UTC()
	if err := store.InsertCase(ctx, &archive.Case{
		ID: "case-1", Name: "Acme v. Example", Status: "open",
		CreatedBy: testActor.ID, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	if err := store.InsertCustodian(ctx, &archive.Custodian{
		ID: "cust-alice", Email: "alice@example.com", DisplayName: "Alice",
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed custodian: %v", err)
	}
	return f
}

func (f *fixture) seedRecord(t *testing.T, id, owner, subject string) {
	t.Helper()

	err := f.store.InsertRecord(context.Background(), &archive.ArchivedRecord{
		ID:          id,
		SourceID:    "src-imap",
		OwnerEmail:  owner,
		SenderEmail: "sender@example.com",
		Subject:     subject,
		SentAt:      time.Now().UTC().Add(-time.Hour),
		ArchivedAt:  time.Now().UTC(),
		StoragePath: "records/" + id + ".eml",
		ContentHash: "hash-" + id,
	})
	if err != nil {
		t.Fatalf("seed record %s: %v", id, err)
	}
}

func (f *fixture) recordFlag(t *testing.T, id string) bool {
	t.Helper()

	rec, err := f.store.GetRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("get record %s: %v", id, err)
	}
	return rec.IsOnHold
}

func TestEngine_CreateHold_MatchesExistingRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRecord(t, "rec-1", "alice@example.com", "Q3 budget")
	f.seedRecord(t, "rec-2", "bob@example.com", "budget forecast")
	f.seedRecord(t, "rec-3", "carol@example.com", "lunch plans")

	hold, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	total, active, err := f.store.HoldCounts(ctx, hold.ID)
	if err != nil {
		t.Fatalf("HoldCounts failed: %v", err)
	}
	if total != 2 || active != 2 {
		t.Errorf("expected 2 active memberships, got %d/%d", total, active)
	}
	if !f.recordFlag(t, "rec-1") || !f.recordFlag(t, "rec-2") {
		t.Error("matched records should be flagged")
	}
	if f.recordFlag(t, "rec-3") {
		t.Error("unmatched record should not be flagged")
	}

	// A create entry followed by the membership entry.
	entries, err := f.ledger.List(ctx, &audit.Filter{TargetID: hold.ID})
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[1].ActionType != audit.ActionCreate || entries[0].ActionType != audit.ActionUpdate {
		t.Errorf("unexpected ledger actions: %s, %s", entries[1].ActionType, entries[0].ActionType)
	}
	if got := entries[0].Details["matchedCount"]; got != 2 {
		t.Errorf("expected matchedCount 2, got %v", got)
	}
}

func TestEngine_CreateHold_CustodianBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRecord(t, "rec-1", "Alice@Example.COM", "anything")
	f.seedRecord(t, "rec-2", "bob@example.com", "anything")

	hold, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:      "case-1",
		CustodianID: "cust-alice",
		Reason:      "investigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	ids, err := f.store.ListActiveMemberRecordIDs(ctx, hold.ID)
	if err != nil {
		t.Fatalf("ListActiveMemberRecordIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "rec-1" {
		t.Errorf("custodian hold should match only the custodian's records, got %v", ids)
	}
}

func TestEngine_CreateHold_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input *CreateHoldInput
	}{
		{"missing reason", &CreateHoldInput{CaseID: "case-1", CustodianID: "cust-alice"}},
		{"no target", &CreateHoldInput{CaseID: "case-1", Reason: "r"}},
		{"whitespace criteria only", &CreateHoldInput{CaseID: "case-1", Reason: "r",
			Criteria: &archive.Criteria{SubjectContains: "   "}}},
		{"bad date", &CreateHoldInput{CaseID: "case-1", Reason: "r",
			Criteria: &archive.Criteria{StartDate: "not-a-date"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CreateHold(ctx, tc.input, testActor)
			if _, ok := err.(*archive.ValidationError); !ok {
				t.Errorf("expected ValidationError, got %T: %v", err, err)
			}
		})
	}

	// Unknown case.
	_, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID: "case-missing", CustodianID: "cust-alice", Reason: "r",
	}, testActor)
	if _, ok := err.(*archive.NotFoundError); !ok {
		t.Errorf("expected NotFoundError for unknown case, got %T: %v", err, err)
	}
}

func TestEngine_UpdateHold_NarrowsCriteria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRecord(t, "rec-1", "alice@example.com", "budget report")
	f.seedRecord(t, "rec-2", "bob@example.com", "budget notes")

	hold, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	_, err = f.engine.UpdateHold(ctx, hold.ID, &UpdateHoldInput{
		Criteria:    &archive.Criteria{SubjectContains: "budget report"},
		SetCriteria: true,
	}, testActor)
	if err != nil {
		t.Fatalf("UpdateHold failed: %v", err)
	}

	total, active, _ := f.store.HoldCounts(ctx, hold.ID)
	if total != 2 || active != 1 {
		t.Errorf("expected 2 total / 1 active, got %d/%d", total, active)
	}
	if !f.recordFlag(t, "rec-1") {
		t.Error("still-matching record should stay flagged")
	}
	if f.recordFlag(t, "rec-2") {
		t.Error("no-longer-matching record should lose the flag")
	}
}

func TestEngine_UpdateHold_RematchReactivatesMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRecord(t, "rec-1", "alice@example.com", "budget report")
	f.seedRecord(t, "rec-2", "bob@example.com", "budget notes")

	hold, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	// Narrow, then widen back.
	if _, err := f.engine.UpdateHold(ctx, hold.ID, &UpdateHoldInput{
		Criteria:    &archive.Criteria{SubjectContains: "budget report"},
		SetCriteria: true,
	}, testActor); err != nil {
		t.Fatalf("narrow failed: %v", err)
	}
	if _, err := f.engine.UpdateHold(ctx, hold.ID, &UpdateHoldInput{
		Criteria:    &archive.Criteria{SubjectContains: "budget"},
		SetCriteria: true,
	}, testActor); err != nil {
		t.Fatalf("widen failed: %v", err)
	}

	// The pair is unique: rec-2's row was reactivated, not duplicated.
	total, active, _ := f.store.HoldCounts(ctx, hold.ID)
	if total != 2 || active != 2 {
		t.Errorf("expected 2/2 after re-match, got %d/%d", total, active)
	}
	if !f.recordFlag(t, "rec-2") {
		t.Error("re-matched record should be flagged again")
	}
}

func TestEngine_UpdateHold_ReleasedIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hold, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID: "case-1", CustodianID: "cust-alice", Reason: "r",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}
	if _, err := f.engine.ReleaseHold(ctx, hold.ID, testActor); err != nil {
		t.Fatalf("ReleaseHold failed: %v", err)
	}

	reason := "new reason"
	_, err = f.engine.UpdateHold(ctx, hold.ID, &UpdateHoldInput{Reason: &reason}, testActor)
	if _, ok := err.(*archive.ConflictError); !ok {
		t.Errorf("expected ConflictError, got %T: %v", err, err)
	}
}

func TestEngine_ReleaseHold_UnionFlagRecalc(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRecord(t, "rec-shared", "alice@example.com", "budget report")
	f.seedRecord(t, "rec-only", "bob@example.com", "budget notes")

	first, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}
	if _, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:      "case-1",
		CustodianID: "cust-alice",
		Reason:      "investigation",
	}, testActor); err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	if _, err := f.engine.ReleaseHold(ctx, first.ID, testActor); err != nil {
		t.Fatalf("ReleaseHold failed: %v", err)
	}

	// rec-shared is still held by the custodian hold; rec-only is free.
	if !f.recordFlag(t, "rec-shared") {
		t.Error("record held by another active hold must keep its flag")
	}
	if f.recordFlag(t, "rec-only") {
		t.Error("record with no remaining holds must lose its flag")
	}
}

func TestEngine_ReleaseHold_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRecord(t, "rec-1", "alice@example.com", "budget report")
	hold, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	released, err := f.engine.ReleaseHold(ctx, hold.ID, testActor)
	if err != nil {
		t.Fatalf("ReleaseHold failed: %v", err)
	}
	entriesBefore, err := f.ledger.Count(ctx)
	if err != nil {
		t.Fatalf("ledger count: %v", err)
	}

	// A second release is a no-op: same hold back, no ledger entries, no
	// membership writes.
	again, err := f.engine.ReleaseHold(ctx, hold.ID, testActor)
	if err != nil {
		t.Fatalf("second ReleaseHold failed: %v", err)
	}
	if again.RemovedAt == nil || !again.RemovedAt.Equal(*released.RemovedAt) {
		t.Errorf("release timestamp changed on re-release: %v vs %v", again.RemovedAt, released.RemovedAt)
	}
	entriesAfter, err := f.ledger.Count(ctx)
	if err != nil {
		t.Fatalf("ledger count: %v", err)
	}
	if entriesAfter != entriesBefore {
		t.Errorf("re-release appended %d ledger entries", entriesAfter-entriesBefore)
	}
}

func TestEngine_MembershipChangesReindex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRecord(t, "rec-1", "alice@example.com", "budget report")
	f.seedRecord(t, "rec-2", "bob@example.com", "budget notes")

	hold, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor)
	if err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}
	if len(f.index.batches) != 1 || len(f.index.batches[0]) != 2 {
		t.Fatalf("create should reindex the matched records, got %v", f.index.batches)
	}

	if _, err := f.engine.UpdateHold(ctx, hold.ID, &UpdateHoldInput{
		Criteria:    &archive.Criteria{SubjectContains: "budget report"},
		SetCriteria: true,
	}, testActor); err != nil {
		t.Fatalf("UpdateHold failed: %v", err)
	}
	if len(f.index.batches) != 2 || len(f.index.batches[1]) != 1 || f.index.batches[1][0] != "rec-2" {
		t.Fatalf("narrowing should reindex the removed record, got %v", f.index.batches)
	}

	if _, err := f.engine.ReleaseHold(ctx, hold.ID, testActor); err != nil {
		t.Fatalf("ReleaseHold failed: %v", err)
	}
	if len(f.index.batches) != 3 || len(f.index.batches[2]) != 1 || f.index.batches[2][0] != "rec-1" {
		t.Fatalf("release should reindex the released records, got %v", f.index.batches)
	}
}

func TestEngine_ApplyToNewRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor); err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	f.seedRecord(t, "rec-new", "dave@example.com", "budget addendum")
	rec, _ := f.store.GetRecord(ctx, "rec-new")

	if err := f.engine.ApplyToNewRecord(ctx, rec); err != nil {
		t.Fatalf("ApplyToNewRecord failed: %v", err)
	}
	if !rec.IsOnHold {
		t.Error("record struct should be flagged in place")
	}
	if !f.recordFlag(t, "rec-new") {
		t.Error("stored record should be flagged")
	}

	entries, err := f.ledger.List(ctx, &audit.Filter{TargetID: "rec-new"})
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorIdentifier != "system" {
		t.Fatalf("expected one system entry, got %+v", entries)
	}

	// Already-flagged records short-circuit: no duplicate ledger entry.
	if err := f.engine.ApplyToNewRecord(ctx, rec); err != nil {
		t.Fatalf("second ApplyToNewRecord failed: %v", err)
	}
	entries, _ = f.ledger.List(ctx, &audit.Filter{TargetID: "rec-new"})
	if len(entries) != 1 {
		t.Errorf("short-circuit should not append entries, got %d", len(entries))
	}
}

func TestEngine_ApplyToNewRecord_NoMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CreateHold(ctx, &CreateHoldInput{
		CaseID:   "case-1",
		Criteria: &archive.Criteria{SubjectContains: "budget"},
		Reason:   "litigation",
	}, testActor); err != nil {
		t.Fatalf("CreateHold failed: %v", err)
	}

	f.seedRecord(t, "rec-new", "dave@example.com", "lunch plans")
	rec, _ := f.store.GetRecord(ctx, "rec-new")

	if err := f.engine.ApplyToNewRecord(ctx, rec); err != nil {
		t.Fatalf("ApplyToNewRecord failed: %v", err)
	}
	if rec.IsOnHold {
		t.Error("non-matching record should not be flagged")
	}
}

func TestDiffMemberships(t *testing.T) {
	toAdd, toRemove := diffMemberships(
		[]string{"a", "b", "c"},
		[]string{"b", "c", "d"},
	)
	if len(toAdd) != 1 || toAdd[0] != "a" {
		t.Errorf("toAdd = %v, want [a]", toAdd)
	}
	if len(toRemove) != 1 || toRemove[0] != "d" {
		t.Errorf("toRemove = %v, want [d]", toRemove)
	}

	toAdd, toRemove = diffMemberships(nil, nil)
	if len(toAdd) != 0 || len(toRemove) != 0 {
		t.Errorf("empty diff should be empty, got %v / %v", toAdd, toRemove)
	}
}
