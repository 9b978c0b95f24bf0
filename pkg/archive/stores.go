package archive

import (
	"context"
	"time"
)

// RecordStore persists archived record metadata and attachment links.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// InsertRecord persists a newly archived record.
	InsertRecord(ctx context.Context, rec *ArchivedRecord) error

	// GetRecord returns one record, or a NotFoundError.
	GetRecord(ctx context.Context, id string) (*ArchivedRecord, error)

	// ListRecordsByIDs returns the records for the given ids, ordered by
	// (ArchivedAt, ID). Unknown ids are silently skipped.
	ListRecordsByIDs(ctx context.Context, ids []string) ([]*ArchivedRecord, error)

	// StreamRecords streams the whole corpus for in-process matching.
	// The channels are closed when the stream completes or errors.
	StreamRecords(ctx context.Context) (<-chan *ArchivedRecord, <-chan error, error)

	// ListRecordsArchivedBefore pages through records with
	// ArchivedAt <= cutoff, ordered by (ArchivedAt, ID), for snapshot
	// exports.
	ListRecordsArchivedBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]*ArchivedRecord, error)

	// SetHoldFlag sets IsOnHold for every given record id.
	SetHoldFlag(ctx context.Context, ids []string, onHold bool) error

	// DeleteRecord removes a record row. Callers are responsible for the
	// hold guard and blob cleanup; see Manager.DeleteRecord.
	DeleteRecord(ctx context.Context, id string) error

	// CountRecords returns the total number of archived records.
	CountRecords(ctx context.Context) (int64, error)

	// InsertAttachment persists an attachment row (no-op if the id exists).
	InsertAttachment(ctx context.Context, att *Attachment) error

	// GetAttachmentByHash returns the attachment with the given content
	// hash, or nil. Used to deduplicate attachment blobs at ingest.
	GetAttachmentByHash(ctx context.Context, contentHash string) (*Attachment, error)

	// LinkAttachment links an attachment to a record (no-op if linked).
	LinkAttachment(ctx context.Context, recordID, attachmentID string) error

	// ListAttachmentsForRecords returns attachments keyed by record id.
	ListAttachmentsForRecords(ctx context.Context, recordIDs []string) (map[string][]*Attachment, error)

	// UnlinkAttachment removes the (record, attachment) link.
	UnlinkAttachment(ctx context.Context, recordID, attachmentID string) error

	// CountAttachmentLinks returns how many records still reference the
	// attachment.
	CountAttachmentLinks(ctx context.Context, attachmentID string) (int64, error)

	// DeleteAttachment removes an orphaned attachment row.
	DeleteAttachment(ctx context.Context, attachmentID string) error
}

// HoldStore persists legal holds and their membership rows.
type HoldStore interface {
	InsertHold(ctx context.Context, hold *LegalHold) error
	GetHold(ctx context.Context, id string) (*LegalHold, error)
	UpdateHold(ctx context.Context, hold *LegalHold) error
	ListHolds(ctx context.Context) ([]*LegalHold, error)
	ListActiveHolds(ctx context.Context) ([]*LegalHold, error)
	ListHoldsByCase(ctx context.Context, caseID string) ([]*LegalHold, error)

	// UpsertMemberships inserts missing (holdID, recordID) rows and
	// reactivates soft-removed ones, refreshing MatchedAt/MatchedBy.
	// The pair is never duplicated.
	UpsertMemberships(ctx context.Context, holdID string, recordIDs []string, matchedBy string) error

	// UpsertMembershipsForRecord is the per-record variant used when a new
	// record matches several holds at once.
	UpsertMembershipsForRecord(ctx context.Context, holdIDs []string, recordID, matchedBy string) error

	// MarkMembershipsRemoved soft-removes the active memberships of the
	// hold for the given record ids.
	MarkMembershipsRemoved(ctx context.Context, holdID string, recordIDs []string) error

	// ListMemberships returns all membership rows of a hold, active and
	// removed.
	ListMemberships(ctx context.Context, holdID string) ([]*HoldMembership, error)

	// ListActiveMemberRecordIDs returns the record ids with an active
	// membership in the hold.
	ListActiveMemberRecordIDs(ctx context.Context, holdID string) ([]string, error)

	// FilterRecordIDsWithActiveHold returns the subset of recordIDs that
	// have at least one active membership across ANY hold. This is the
	// basis of the flag recalculation union rule.
	FilterRecordIDsWithActiveHold(ctx context.Context, recordIDs []string) ([]string, error)

	// HoldCounts returns total and active membership counts for a hold.
	HoldCounts(ctx context.Context, holdID string) (total, active int64, err error)
}

// CaseStore persists eDiscovery cases.
type CaseStore interface {
	InsertCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id string) (*Case, error)
	UpdateCase(ctx context.Context, c *Case) error
	ListCases(ctx context.Context) ([]*Case, error)
	CaseSummaries(ctx context.Context) ([]*CaseSummary, error)
}

// CustodianStore persists custodians.
type CustodianStore interface {
	InsertCustodian(ctx context.Context, c *Custodian) error
	GetCustodian(ctx context.Context, id string) (*Custodian, error)
	ListCustodians(ctx context.Context) ([]*Custodian, error)
}

// NoticeStore persists legal hold notices.
type NoticeStore interface {
	InsertNotice(ctx context.Context, n *HoldNotice) error
	GetNotice(ctx context.Context, holdID, noticeID string) (*HoldNotice, error)
	UpdateNotice(ctx context.Context, n *HoldNotice) error
	ListNoticesForHold(ctx context.Context, holdID string) ([]*HoldNotice, error)

	// ListLatestNoticesForActiveHolds returns, for every
	// (holdID, custodianID) pair whose hold is still active, the most
	// recently sent notice. Used by the reminder sweep.
	ListLatestNoticesForActiveHolds(ctx context.Context) ([]*HoldNotice, error)
}

// PolicyStore persists retention policies.
type PolicyStore interface {
	InsertPolicy(ctx context.Context, p *RetentionPolicy) error
	GetPolicy(ctx context.Context, id string) (*RetentionPolicy, error)
	UpdatePolicy(ctx context.Context, p *RetentionPolicy) error

	// ListEnabledPolicies returns enabled policies ordered by ascending
	// priority (lower number evaluated first).
	ListEnabledPolicies(ctx context.Context) ([]*RetentionPolicy, error)
}

// ExportJobStore persists targeted and snapshot export jobs.
type ExportJobStore interface {
	InsertExportJob(ctx context.Context, job *ExportJob) error
	GetExportJob(ctx context.Context, id string) (*ExportJob, error)
	UpdateExportJob(ctx context.Context, job *ExportJob) error
	ListExportJobs(ctx context.Context, limit, offset int) ([]*ExportJob, int64, error)

	InsertArchiveExportJob(ctx context.Context, job *ArchiveExportJob) error
	GetArchiveExportJob(ctx context.Context, id string) (*ArchiveExportJob, error)
	UpdateArchiveExportJob(ctx context.Context, job *ArchiveExportJob) error
	ListArchiveExportJobs(ctx context.Context, limit, offset int) ([]*ArchiveExportJob, int64, error)
}

// Store is the combined persistence surface of the archive database.
// The SQLite and in-memory backends implement all of it over a single
// underlying store so cross-entity operations stay consistent.
type Store interface {
	RecordStore
	HoldStore
	CaseStore
	CustodianStore
	NoticeStore
	PolicyStore
	ExportJobStore
}
