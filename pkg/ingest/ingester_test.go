package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"parchment-hq/parchment/pkg/archive"
	archivestorage "parchment-hq/parchment/pkg/archive/storage"
	"parchment-hq/parchment/pkg/audit"
	auditstorage "parchment-hq/parchment/pkg/audit/storage"
	"parchment-hq/parchment/pkg/blob"
	"parchment-hq/parchment/pkg/queue"
	"parchment-hq/parchment/pkg/search"
)

type fixture struct {
	store    *archivestorage.MemoryStore
	blobs    *blob.MemoryGateway
	queue    *queue.Queue
	ingester *Ingester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := archivestorage.NewMemoryStore()
	blobs := blob.NewMemoryGateway()
	ledger := audit.NewLedger(auditstorage.NewMemoryStore())
	manager := archive.NewManager(store, blobs, search.NoopIndex{}, ledger)

	q := queue.New()
	ingester, err := NewIngester(manager, q, "dropfolder", queue.TopicConfig{
		Workers:     1,
		Buffer:      8,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewIngester failed: %v", err)
	}
	return &fixture{store: store, blobs: blobs, queue: q, ingester: ingester}
}

func TestIngester_Ingest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.ingester.Ingest(ctx, multipartMessage(t), "Inbox/Reports")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if rec.OwnerEmail != "alice@example.com" || rec.SourceID != "dropfolder" {
		t.Errorf("record fields wrong: %+v", rec)
	}
	if !rec.HasAttachments {
		t.Error("record should be flagged as having attachments")
	}

	atts, err := f.store.ListAttachmentsForRecords(ctx, []string{rec.ID})
	if err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	if len(atts[rec.ID]) != 1 || atts[rec.ID][0].Filename != "report.pdf" {
		t.Errorf("attachment not stored: %+v", atts[rec.ID])
	}

	// The raw message blob is retrievable.
	if ok, _ := f.blobs.Exists(ctx, rec.StoragePath); !ok {
		t.Error("message blob missing")
	}
}

func TestIngester_HandleDroppedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "msg-1.eml")
	if err := os.WriteFile(path, []byte(simpleMessage), 0o644); err != nil {
		t.Fatalf("write drop file: %v", err)
	}

	if err := f.queue.Start(ctx); err != nil {
		t.Fatalf("queue start: %v", err)
	}
	if err := f.ingester.EnqueueFile(ctx, path); err != nil {
		t.Fatalf("EnqueueFile failed: %v", err)
	}
	f.queue.Stop()

	count, err := f.store.CountRecords(ctx)
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 archived record, got %d", count)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("consumed drop file should be removed")
	}
}

func TestIngester_QuarantinesBadFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "junk.eml")
	if err := os.WriteFile(path, []byte("this is not an email"), 0o644); err != nil {
		t.Fatalf("write drop file: %v", err)
	}

	if err := f.queue.Start(ctx); err != nil {
		t.Fatalf("queue start: %v", err)
	}
	if err := f.ingester.EnqueueFile(ctx, path); err != nil {
		t.Fatalf("EnqueueFile failed: %v", err)
	}
	f.queue.Stop()

	count, err := f.store.CountRecords(ctx)
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 0 {
		t.Errorf("bad file must not produce a record, got %d", count)
	}
	if _, err := os.Stat(filepath.Join(dir, failedDir, "junk.eml")); err != nil {
		t.Errorf("bad file should be quarantined: %v", err)
	}
}

func TestIngester_RedeliveryOfConsumedFile(t *testing.T) {
	f := newFixture(t)

	// A path that no longer exists is treated as already consumed.
	if err := f.ingester.handleFile(context.Background(), []byte("/nonexistent/msg.eml")); err != nil {
		t.Errorf("redelivery of a consumed file should be a no-op, got %v", err)
	}
}
