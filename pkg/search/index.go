// Package search defines the search index surface the archive keeps in
// sync as records come and go. Index maintenance is best-effort: the
// archive database is the source of truth, and a failed index update is
// logged and retried out of band rather than failing the archival or
// deletion that triggered it.
package search

import (
	"context"
	"log/slog"
)

// Index is the surface the record manager and retention enforcer use to
// keep the search backend in sync.
type Index interface {
	// IndexRecords (re)indexes the given record ids from the archive
	// database.
	IndexRecords(ctx context.Context, recordIDs []string) error

	// DeleteRecords removes the given record ids from the index.
	DeleteRecords(ctx context.Context, recordIDs []string) error
}

// NoopIndex ignores all index maintenance. Used when no search backend is
// configured.
type NoopIndex struct{}

// IndexRecords implements Index.
func (NoopIndex) IndexRecords(ctx context.Context, recordIDs []string) error { return nil }

// DeleteRecords implements Index.
func (NoopIndex) DeleteRecords(ctx context.Context, recordIDs []string) error { return nil }

// LoggingIndex logs index maintenance calls without performing them.
// Useful in development to see what a real backend would receive.
type LoggingIndex struct {
	logger *slog.Logger
}

// NewLoggingIndex creates a logging index.
func NewLoggingIndex() *LoggingIndex {
	return &LoggingIndex{logger: slog.Default().With("component", "search.logging")}
}

// IndexRecords implements Index.
func (i *LoggingIndex) IndexRecords(ctx context.Context, recordIDs []string) error {
	i.logger.Info("index records", "count", len(recordIDs))
	return nil
}

// DeleteRecords implements Index.
func (i *LoggingIndex) DeleteRecords(ctx context.Context, recordIDs []string) error {
	i.logger.Info("delete records from index", "count", len(recordIDs))
	return nil
}
