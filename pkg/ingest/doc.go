// Package ingest brings raw RFC 5322 messages into the archive.
//
// Messages arrive either directly (Ingester.Ingest) or through a watched
// drop folder: the DropWatcher picks up .eml files once they settle,
// applies backpressure against the ingestion queue's depth, and the
// queue's workers parse and archive each file. Unparseable files are
// quarantined to a failed/ subdirectory instead of being retried.
package ingest
