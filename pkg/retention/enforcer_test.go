package retention

import (
	"context"
	"strings"
	"testing"
	"time"

	"parchment-hq/parchment/pkg/archive"
	archivestorage "parchment-hq/parchment/pkg/archive/storage"
	"parchment-hq/parchment/pkg/audit"
	auditstorage "parchment-hq/parchment/pkg/audit/storage"
	"parchment-hq/parchment/pkg/blob"
	"parchment-hq/parchment/pkg/search"
	"parchment-hq/parchment/pkg/telemetry/metrics"
)

type fixture struct {
	store    *archivestorage.MemoryStore
	blobs    *blob.MemoryGateway
	ledger   *audit.Ledger
	manager  *archive.Manager
	enforcer *Enforcer
}

func newFixture(t *testing.T, config *Config) *fixture {
	t.Helper()

	store := archivestorage.NewMemoryStore()
	blobs := blob.NewMemoryGateway()
	ledger := audit.NewLedger(auditstorage.NewMemoryStore())
	manager := archive.NewManager(store, blobs, search.NoopIndex{}, ledger)
	return &fixture{
		store:    store,
		blobs:    blobs,
		ledger:   ledger,
		manager:  manager,
		enforcer: NewEnforcer(store, manager, ledger, config),
	}
}

func (f *fixture) seedRecord(t *testing.T, id string, ageDays int, subject string) {
	t.Helper()
	ctx := context.Background()

	archivedAt := time.Now().UTC().AddDate(0, 0, -ageDays)
	storagePath := "records/" + id + ".eml"
	rec := &archive.ArchivedRecord{
		ID:          id,
		SourceID:    "src-imap",
		OwnerEmail:  "alice@example.com",
		SenderEmail: "bob@example.com",
		Subject:     subject,
		SentAt:      archivedAt.Add(-time.Hour),
		ArchivedAt:  archivedAt,
		StoragePath: storagePath,
		ContentHash: "hash-" + id,
	}
	if err := f.store.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("seed record %s: %v", id, err)
	}
	if err := f.blobs.Put(ctx, storagePath, strings.NewReader("mail "+id), 0); err != nil {
		t.Fatalf("seed blob %s: %v", id, err)
	}
}

func (f *fixture) seedPolicy(t *testing.T, id string, priority, days int, action archive.RetentionAction, conditions *archive.Criteria) {
	t.Helper()

	now := time.Now().UTC()
	err := f.store.InsertPolicy(context.Background(), &archive.RetentionPolicy{
		ID:                  id,
		Name:                id,
		Priority:            priority,
		RetentionPeriodDays: days,
		Action:              action,
		IsEnabled:           true,
		Conditions:          conditions,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		t.Fatalf("seed policy %s: %v", id, err)
	}
}

func (f *fixture) recordExists(id string) bool {
	_, err := f.store.GetRecord(context.Background(), id)
	return err == nil
}

func TestEnforcer_DeletesExpiredRecords(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.seedRecord(t, "rec-old", 100, "old mail")
	f.seedRecord(t, "rec-new", 5, "new mail")
	f.seedPolicy(t, "policy-90d", 10, 90, archive.ActionDeletePermanently, nil)

	result, err := f.enforcer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", result.Deleted)
	}
	if f.recordExists("rec-old") {
		t.Error("expired record should be gone")
	}
	if !f.recordExists("rec-new") {
		t.Error("unexpired record should remain")
	}
	if ok, _ := f.blobs.Exists(ctx, "records/rec-old.eml"); ok {
		t.Error("expired record's blob should be gone")
	}

	// Per-policy summary entry plus the per-record deletion entry.
	policyEntries, err := f.ledger.List(ctx, &audit.Filter{TargetType: "RetentionPolicy"})
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if len(policyEntries) != 1 {
		t.Fatalf("expected 1 policy entry, got %d", len(policyEntries))
	}
	if got := policyEntries[0].Details["deletedCount"]; got != int64(1) {
		t.Errorf("expected deletedCount 1, got %v", got)
	}

	recordEntries, err := f.ledger.List(ctx, &audit.Filter{TargetType: "ArchivedRecord"})
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if len(recordEntries) != 1 {
		t.Fatalf("expected 1 record entry, got %d", len(recordEntries))
	}
	if recordEntries[0].Details["policyId"] != "policy-90d" {
		t.Errorf("deletion entry should carry the policy id: %+v", recordEntries[0].Details)
	}
	if recordEntries[0].ActorIdentifier != "system" {
		t.Errorf("retention deletions are system actions, got %q", recordEntries[0].ActorIdentifier)
	}
}

func TestEnforcer_AgesBySentDate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	// Sent long ago, ingested just now: expired regardless of when it
	// reached the archive. The converse record was archived long ago but
	// sent last week, so it is not.
	for _, rec := range []*archive.ArchivedRecord{
		{
			ID: "rec-late-ingest", SourceID: "src-imap",
			OwnerEmail: "alice@example.com", SenderEmail: "bob@example.com",
			Subject: "quarterly digest",
			SentAt:  now.AddDate(0, 0, -100), ArchivedAt: now,
			StoragePath: "records/rec-late-ingest.eml", ContentHash: "hash-li",
		},
		{
			ID: "rec-early-archive", SourceID: "src-imap",
			OwnerEmail: "alice@example.com", SenderEmail: "bob@example.com",
			Subject: "fresh mail",
			SentAt:  now.AddDate(0, 0, -5), ArchivedAt: now.AddDate(0, 0, -100),
			StoragePath: "records/rec-early-archive.eml", ContentHash: "hash-ea",
		},
	} {
		if err := f.store.InsertRecord(ctx, rec); err != nil {
			t.Fatalf("seed record %s: %v", rec.ID, err)
		}
	}
	f.seedPolicy(t, "policy-30d", 10, 30, archive.ActionNotifyAdmin, nil)

	result, err := f.enforcer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Notified != 1 {
		t.Fatalf("expected only the long-sent record to be claimed, got notified=%d", result.Notified)
	}
}

func TestEnforcer_NeverTouchesHeldRecords(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.seedRecord(t, "rec-held", 100, "held mail")
	if err := f.store.UpsertMemberships(ctx, "hold-1", []string{"rec-held"}, "u"); err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	if err := f.store.SetHoldFlag(ctx, []string{"rec-held"}, true); err != nil {
		t.Fatalf("seed flag: %v", err)
	}
	f.seedPolicy(t, "policy-90d", 10, 90, archive.ActionDeletePermanently, nil)

	result, err := f.enforcer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("expected no deletions, got %d", result.Deleted)
	}
	if result.SkippedOnHold != 1 {
		t.Errorf("expected 1 skip, got %d", result.SkippedOnHold)
	}
	if !f.recordExists("rec-held") {
		t.Error("held record must survive retention")
	}
}

func TestEnforcer_PriorityClaimExcludesLaterPolicies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.seedRecord(t, "rec-1", 100, "quarterly budget")

	// The higher-priority notify policy claims the record; the broader
	// delete policy must not see it.
	f.seedPolicy(t, "policy-notify", 1, 90, archive.ActionNotifyAdmin,
		&archive.Criteria{SubjectContains: "budget"})
	f.seedPolicy(t, "policy-delete", 2, 90, archive.ActionDeletePermanently, nil)

	result, err := f.enforcer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Notified != 1 {
		t.Errorf("expected 1 notification, got %d", result.Notified)
	}
	if result.Deleted != 0 {
		t.Errorf("claimed record must not be deleted by a later policy, got %d deletions", result.Deleted)
	}
	if !f.recordExists("rec-1") {
		t.Error("record should survive: the claiming policy only notifies")
	}
}

func TestEnforcer_ConditionsNarrowEligibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.seedRecord(t, "rec-match", 100, "newsletter weekly")
	f.seedRecord(t, "rec-other", 100, "contract draft")
	f.seedPolicy(t, "policy-news", 10, 90, archive.ActionDeletePermanently,
		&archive.Criteria{SubjectContains: "newsletter"})

	result, err := f.enforcer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", result.Deleted)
	}
	if f.recordExists("rec-match") {
		t.Error("matching record should be gone")
	}
	if !f.recordExists("rec-other") {
		t.Error("non-matching record should remain")
	}
}

func TestEnforcer_DryRun(t *testing.T) {
	f := newFixture(t, &Config{DryRun: true})
	ctx := context.Background()

	f.seedRecord(t, "rec-old", 100, "old mail")
	f.seedPolicy(t, "policy-90d", 10, 90, archive.ActionDeletePermanently, nil)

	result, err := f.enforcer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("dry run must not delete, got %d", result.Deleted)
	}
	if !f.recordExists("rec-old") {
		t.Error("record should survive a dry run")
	}

	entries, err := f.ledger.List(ctx, &audit.Filter{TargetType: "RetentionPolicy"})
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if len(entries) != 1 || entries[0].Details["dryRun"] != true {
		t.Errorf("dry run should still write the policy entry: %+v", entries)
	}
}

func TestEnforcer_RunFeedsCollector(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	collector := metrics.NewCollector(metrics.DefaultConfig(), nil)
	f.enforcer.SetCollector(collector)

	f.seedRecord(t, "rec-old", 100, "old mail")
	f.seedPolicy(t, "policy-90d", 10, 90, archive.ActionDeletePermanently, nil)

	if _, err := f.enforcer.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var runs, deleted float64
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch fam.GetName() {
			case "parchment_engine_retention_runs_total":
				runs += m.GetCounter().GetValue()
			case "parchment_engine_retention_records_total":
				for _, pair := range m.GetLabel() {
					if pair.GetName() == "action" && pair.GetValue() == "deleted" {
						deleted += m.GetCounter().GetValue()
					}
				}
			}
		}
	}
	if runs != 1 {
		t.Errorf("retention_runs_total = %v, want 1", runs)
	}
	if deleted != 1 {
		t.Errorf("retention_records_total{action=deleted} = %v, want 1", deleted)
	}
}

func TestEnforcer_NoPolicies(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.enforcer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ProcessedPolicies != 0 || result.Deleted != 0 {
		t.Errorf("empty run should be a no-op: %+v", result)
	}
}
