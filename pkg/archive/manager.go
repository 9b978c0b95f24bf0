package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"parchment-hq/parchment/pkg/audit"
	"parchment-hq/parchment/pkg/blob"
	"parchment-hq/parchment/pkg/search"
	"parchment-hq/parchment/pkg/telemetry/metrics"
)

// HoldApplier is implemented by the legal-hold engine. The manager calls
// it after a record lands so active holds capture new matches immediately.
type HoldApplier interface {
	ApplyToNewRecord(ctx context.Context, rec *ArchivedRecord) error
}

// AttachmentInput is one attachment of a message being archived.
type AttachmentInput struct {
	Filename string
	MimeType string
	Content  []byte
}

// ArchiveInput describes a message to archive.
type ArchiveInput struct {
	SourceID    string
	OwnerEmail  string
	SenderEmail string
	Subject     string
	MailboxPath string
	SentAt      time.Time

	// Content is the raw RFC 5322 message.
	Content []byte

	Attachments []AttachmentInput
}

// Manager owns the archived record lifecycle: ingest, lookup and guarded
// deletion. It is the only component allowed to remove record rows, so the
// hold guard and attachment reference counting cannot be bypassed.
type Manager struct {
	store     Store
	blobs     blob.Gateway
	index     search.Index
	ledger    *audit.Ledger
	applier   HoldApplier
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewManager creates a record manager. applier may be nil when no hold
// engine is running (tests, offline tools).
func NewManager(store Store, blobs blob.Gateway, index search.Index, ledger *audit.Ledger) *Manager {
	return &Manager{
		store:  store,
		blobs:  blobs,
		index:  index,
		ledger: ledger,
		logger: slog.Default().With("component", "archive.manager"),
	}
}

// SetHoldApplier wires the legal-hold engine in after construction. The
// engine itself depends on the store, so the two are built in sequence.
func (m *Manager) SetHoldApplier(applier HoldApplier) {
	m.applier = applier
}

// SetCollector wires in the metrics collector. All collector methods are
// nil-safe, so the manager works without one.
func (m *Manager) SetCollector(c *metrics.Collector) {
	m.collector = c
}

// Archive stores one message: blob first, then the metadata row and
// attachment rows, then search indexing and hold application. Attachment
// blobs are deduplicated by content hash across the whole archive.
func (m *Manager) Archive(ctx context.Context, input *ArchiveInput) (*ArchivedRecord, error) {
	if len(input.Content) == 0 {
		return nil, NewValidationError("message content is required")
	}
	if input.OwnerEmail == "" {
		return nil, NewValidationError("owner email is required")
	}

	start := time.Now()
	status := "failed"
	defer func() {
		m.collector.RecordArchived(input.SourceID, status, time.Since(start))
	}()

	now := time.Now().UTC()
	contentHash := hashBytes(input.Content)

	rec := &ArchivedRecord{
		ID:             uuid.New().String(),
		SourceID:       input.SourceID,
		OwnerEmail:     input.OwnerEmail,
		SenderEmail:    input.SenderEmail,
		Subject:        input.Subject,
		MailboxPath:    input.MailboxPath,
		SentAt:         input.SentAt.UTC(),
		ArchivedAt:     now,
		ContentHash:    contentHash,
		HasAttachments: len(input.Attachments) > 0,
	}
	rec.StoragePath = fmt.Sprintf("records/%04d/%02d/%s.eml", now.Year(), now.Month(), rec.ID)

	if err := m.blobs.Put(ctx, rec.StoragePath, bytes.NewReader(input.Content), int64(len(input.Content))); err != nil {
		return nil, fmt.Errorf("store message blob: %w", err)
	}

	if err := m.store.InsertRecord(ctx, rec); err != nil {
		return nil, err
	}

	for _, att := range input.Attachments {
		if err := m.archiveAttachment(ctx, rec.ID, att); err != nil {
			return nil, err
		}
	}

	if err := m.index.IndexRecords(ctx, []string{rec.ID}); err != nil {
		m.logger.Warn("search indexing failed", "record_id", rec.ID, "error", err)
	}

	if m.applier != nil {
		if err := m.applier.ApplyToNewRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("apply holds to new record: %w", err)
		}
	}

	status = "archived"
	m.logger.Info("record archived",
		"record_id", rec.ID,
		"source_id", rec.SourceID,
		"owner", rec.OwnerEmail,
		"attachments", len(input.Attachments))
	return rec, nil
}

// archiveAttachment stores one attachment, reusing an existing blob when
// the same content was archived before.
func (m *Manager) archiveAttachment(ctx context.Context, recordID string, input AttachmentInput) error {
	contentHash := hashBytes(input.Content)

	existing, err := m.store.GetAttachmentByHash(ctx, contentHash)
	if err != nil {
		return err
	}
	if existing != nil {
		m.collector.RecordAttachmentDeduplicated()
		return m.store.LinkAttachment(ctx, recordID, existing.ID)
	}

	att := &Attachment{
		ID:          uuid.New().String(),
		Filename:    input.Filename,
		MimeType:    input.MimeType,
		SizeBytes:   int64(len(input.Content)),
		ContentHash: contentHash,
	}
	att.StoragePath = fmt.Sprintf("attachments/%s/%s", contentHash[:2], contentHash)

	if err := m.blobs.Put(ctx, att.StoragePath, bytes.NewReader(input.Content), att.SizeBytes); err != nil {
		return fmt.Errorf("store attachment blob: %w", err)
	}
	if err := m.store.InsertAttachment(ctx, att); err != nil {
		return err
	}
	return m.store.LinkAttachment(ctx, recordID, att.ID)
}

// Get returns one record.
func (m *Manager) Get(ctx context.Context, id string) (*ArchivedRecord, error) {
	return m.store.GetRecord(ctx, id)
}

// OpenContent opens the raw message blob of a record.
func (m *Manager) OpenContent(ctx context.Context, rec *ArchivedRecord) (io.ReadCloser, error) {
	return m.blobs.Get(ctx, rec.StoragePath)
}

// Delete removes a record, its blob and any attachments no other record
// still references. It refuses while the record is under any active hold,
// both via the cached flag and via the membership rows, so a stale flag
// can only err on the side of keeping data.
//
// reason is recorded in the audit trail; policyID is set when the deletion
// comes from retention enforcement and empty for manual deletions.
func (m *Manager) Delete(ctx context.Context, id string, actor Actor, reason, policyID string) error {
	rec, err := m.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	if rec.IsOnHold {
		return NewConflictError(fmt.Sprintf("record %s is under legal hold and cannot be deleted", id))
	}
	held, err := m.store.FilterRecordIDsWithActiveHold(ctx, []string{id})
	if err != nil {
		return err
	}
	if len(held) > 0 {
		return NewConflictError(fmt.Sprintf("record %s is under legal hold and cannot be deleted", id))
	}

	attachments, err := m.store.ListAttachmentsForRecords(ctx, []string{id})
	if err != nil {
		return err
	}
	for _, att := range attachments[id] {
		if err := m.store.UnlinkAttachment(ctx, id, att.ID); err != nil {
			return err
		}
		remaining, err := m.store.CountAttachmentLinks(ctx, att.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := m.blobs.Delete(ctx, att.StoragePath); err != nil {
				return fmt.Errorf("delete attachment blob: %w", err)
			}
			if err := m.store.DeleteAttachment(ctx, att.ID); err != nil {
				return err
			}
		}
	}

	if err := m.blobs.Delete(ctx, rec.StoragePath); err != nil {
		return fmt.Errorf("delete message blob: %w", err)
	}
	if err := m.store.DeleteRecord(ctx, id); err != nil {
		return err
	}

	if err := m.index.DeleteRecords(ctx, []string{id}); err != nil {
		m.logger.Warn("search index cleanup failed", "record_id", id, "error", err)
	}

	details := map[string]any{"reason": reason}
	if policyID != "" {
		details["policyId"] = policyID
	}
	if _, err := m.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionDelete,
		TargetType:      "ArchivedRecord",
		TargetID:        id,
		ActorIP:         actor.IP,
		Details:         details,
	}); err != nil {
		return fmt.Errorf("audit record deletion: %w", err)
	}

	m.logger.Info("record deleted", "record_id", id, "reason", reason)
	return nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
