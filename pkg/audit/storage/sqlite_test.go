package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"parchment-hq/parchment/pkg/audit"
)

// createTempStore creates a SQLite ledger store backed by a temp file.
func createTempStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := NewSQLiteStore(DefaultSQLiteConfig(path))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func sampleEntry(id int64, prevHash string) *audit.Entry {
	e := &audit.Entry{
		ID:              id,
		ActorIdentifier: "admin@example.com",
		ActionType:      audit.ActionCreate,
		TargetType:      "LegalHold",
		TargetID:        "hold-1",
		ActorIP:         "10.0.0.7",
		Details:         map[string]any{"caseId": "case-1"},
		RecordedAt:      time.Now().UTC(),
		PrevHash:        prevHash,
	}
	hash, _ := audit.ComputeHash(prevHash, e)
	e.EntryHash = hash
	return e
}

func TestSQLiteStore_AppendAndGet(t *testing.T) {
	store := createTempStore(t)
	ctx := context.Background()

	e := sampleEntry(1, audit.GenesisHash)
	if err := store.AppendEntry(ctx, e); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	got, err := store.GetEntry(ctx, 1)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got == nil {
		t.Fatal("entry not found")
	}
	if got.ActorIdentifier != e.ActorIdentifier || got.EntryHash != e.EntryHash {
		t.Errorf("entry did not round-trip: %+v", got)
	}
	if got.Details["caseId"] != "case-1" {
		t.Errorf("details did not round-trip: %+v", got.Details)
	}
	if !got.RecordedAt.Equal(e.RecordedAt) {
		t.Errorf("timestamp did not round-trip: %v != %v", got.RecordedAt, e.RecordedAt)
	}
}

func TestSQLiteStore_HashStableAcrossRoundTrip(t *testing.T) {
	store := createTempStore(t)
	ctx := context.Background()

	e := sampleEntry(1, audit.GenesisHash)
	if err := store.AppendEntry(ctx, e); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	got, err := store.GetEntry(ctx, 1)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	recomputed, err := audit.ComputeHash(got.PrevHash, got)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	if recomputed != e.EntryHash {
		t.Errorf("hash changed across storage round trip: %s != %s", recomputed, e.EntryHash)
	}
}

func TestSQLiteStore_RejectsDuplicateID(t *testing.T) {
	store := createTempStore(t)
	ctx := context.Background()

	e := sampleEntry(1, audit.GenesisHash)
	if err := store.AppendEntry(ctx, e); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	if err := store.AppendEntry(ctx, sampleEntry(1, audit.GenesisHash)); err == nil {
		t.Fatal("expected duplicate id append to fail")
	}
}

func TestSQLiteStore_LastEntry(t *testing.T) {
	store := createTempStore(t)
	ctx := context.Background()

	last, err := store.LastEntry(ctx)
	if err != nil {
		t.Fatalf("LastEntry failed: %v", err)
	}
	if last != nil {
		t.Fatal("expected nil head for empty ledger")
	}

	first := sampleEntry(1, audit.GenesisHash)
	if err := store.AppendEntry(ctx, first); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	second := sampleEntry(2, first.EntryHash)
	if err := store.AppendEntry(ctx, second); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	last, err = store.LastEntry(ctx)
	if err != nil {
		t.Fatalf("LastEntry failed: %v", err)
	}
	if last == nil || last.ID != 2 {
		t.Fatalf("expected head id 2, got %+v", last)
	}
}

func TestSQLiteStore_ListEntries_Filter(t *testing.T) {
	store := createTempStore(t)
	ctx := context.Background()

	first := sampleEntry(1, audit.GenesisHash)
	if err := store.AppendEntry(ctx, first); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	second := sampleEntry(2, first.EntryHash)
	second.ActionType = audit.ActionDelete
	second.TargetType = "ArchivedRecord"
	second.TargetID = "rec-1"
	if err := store.AppendEntry(ctx, second); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	entries, err := store.ListEntries(ctx, &audit.Filter{ActionType: audit.ActionDelete})
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 2 {
		t.Fatalf("expected only entry 2, got %+v", entries)
	}

	entries, err = store.ListEntries(ctx, nil)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 2 {
		t.Fatalf("expected newest-first listing, got %+v", entries)
	}
}

func TestSQLiteStore_StreamEntries_Ascending(t *testing.T) {
	store := createTempStore(t)
	ctx := context.Background()

	prev := audit.GenesisHash
	for i := int64(1); i <= 10; i++ {
		e := sampleEntry(i, prev)
		if err := store.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
		prev = e.EntryHash
	}

	entries, errs, err := store.StreamEntries(ctx)
	if err != nil {
		t.Fatalf("StreamEntries failed: %v", err)
	}

	var ids []int64
	for e := range entries {
		ids = append(ids, e.ID)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(ids) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(ids))
	}
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("stream out of order: %v", ids)
		}
	}
}

func TestSQLiteStore_CountEntries(t *testing.T) {
	store := createTempStore(t)
	ctx := context.Background()

	count, err := store.CountEntries(ctx)
	if err != nil {
		t.Fatalf("CountEntries failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}

	if err := store.AppendEntry(ctx, sampleEntry(1, audit.GenesisHash)); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	count, err = store.CountEntries(ctx)
	if err != nil {
		t.Fatalf("CountEntries failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
}
