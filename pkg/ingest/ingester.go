package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"parchment-hq/parchment/pkg/archive"
	"parchment-hq/parchment/pkg/queue"
)

// Topic is the ingestion queue topic name.
const Topic = "ingestion"

// failedDir is the drop-folder subdirectory unparseable files are moved
// to, so they stay available for inspection without being retried.
const failedDir = "failed"

// Ingester parses dropped messages and archives them through the record
// manager. File ingestion runs on the queue's ingestion topic; payloads
// are file paths, so redelivery of an already-consumed path is a no-op.
type Ingester struct {
	manager  *archive.Manager
	queue    *queue.Queue
	sourceID string
	logger   *slog.Logger
}

// NewIngester creates an ingester and registers its handler on the
// queue's ingestion topic.
func NewIngester(manager *archive.Manager, q *queue.Queue, sourceID string, topicConfig queue.TopicConfig) (*Ingester, error) {
	ing := &Ingester{
		manager:  manager,
		queue:    q,
		sourceID: sourceID,
		logger:   slog.Default().With("component", "ingest.ingester"),
	}
	if err := q.Register(Topic, ing.handleFile, topicConfig); err != nil {
		return nil, err
	}
	return ing, nil
}

// Ingest archives one raw message directly, bypassing the queue.
func (i *Ingester) Ingest(ctx context.Context, raw []byte, mailboxPath string) (*archive.ArchivedRecord, error) {
	input, err := ParseMessage(raw, i.sourceID, mailboxPath)
	if err != nil {
		return nil, err
	}
	return i.manager.Archive(ctx, input)
}

// EnqueueFile submits a dropped file for asynchronous ingestion.
func (i *Ingester) EnqueueFile(ctx context.Context, path string) error {
	return i.queue.Enqueue(ctx, Topic, []byte(path))
}

// Backlog returns the ingestion topic's current depth.
func (i *Ingester) Backlog() int64 {
	return i.queue.Depth(Topic)
}

// handleFile consumes one dropped file. Unparseable files move to the
// failed subdirectory and are not retried; storage failures are returned
// so the queue retries them.
func (i *Ingester) handleFile(ctx context.Context, payload []byte) error {
	path := string(payload)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Already consumed by an earlier delivery.
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dropped file %s: %w", path, err)
	}

	input, err := ParseMessage(raw, i.sourceID, "")
	if err != nil {
		i.logger.Error("dropped file rejected", "path", path, "error", err)
		return i.quarantine(path)
	}

	rec, err := i.manager.Archive(ctx, input)
	if err != nil {
		if _, ok := err.(*archive.ValidationError); ok {
			i.logger.Error("dropped file rejected", "path", path, "error", err)
			return i.quarantine(path)
		}
		return fmt.Errorf("archive dropped file %s: %w", path, err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		i.logger.Warn("failed to remove consumed drop file", "path", path, "error", err)
	}

	i.logger.Info("dropped file archived",
		"path", path,
		"record_id", rec.ID,
		"owner", rec.OwnerEmail,
		"attachments", len(input.Attachments),
	)
	return nil
}

func (i *Ingester) quarantine(path string) error {
	dir := filepath.Join(filepath.Dir(path), failedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create quarantine directory: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("quarantine %s: %w", path, err)
	}
	return nil
}
