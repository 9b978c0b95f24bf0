package archive

import (
	"time"
)

// ArchivedRecord is the metadata row for a single archived email. The raw
// message bytes live in the blob gateway under StoragePath; the row only
// carries searchable metadata and the cached hold flag.
//
// Content is immutable once archived. The only mutable fields are IsOnHold
// (maintained by the legal-hold engine) and the row's existence itself
// (removed by retention enforcement or a guarded manual delete, never while
// IsOnHold is true).
type ArchivedRecord struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"sourceId"`    // Ingestion source the record came from
	OwnerEmail  string    `json:"ownerEmail"`  // Mailbox owner (custodian identity)
	SenderEmail string    `json:"senderEmail"` // From header address
	Subject     string    `json:"subject"`
	MailboxPath string    `json:"mailboxPath"` // Folder path within the mailbox, may be empty
	SentAt      time.Time `json:"sentAt"`
	ArchivedAt  time.Time `json:"archivedAt"`
	StoragePath string    `json:"storagePath"` // Blob key of the raw RFC 5322 message
	ContentHash string    `json:"contentHash"` // SHA-256 of the raw message, hex

	HasAttachments bool `json:"hasAttachments"`

	// IsOnHold caches whether any active hold membership references this
	// record. Derived state: recalculated by the hold engine whenever
	// membership changes.
	IsOnHold bool `json:"isOnHold"`
}

// Attachment is a deduplicated attachment blob shared between records.
// An attachment row (and its blob) may only be deleted once no record
// links reference it.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes"`
	StoragePath string `json:"storagePath"`
	ContentHash string `json:"contentHash"`
}

// Case is an eDiscovery case grouping legal holds and targeted exports.
type Case struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"` // "open" on creation
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CaseSummary aggregates hold and record membership counts for one case.
type CaseSummary struct {
	CaseID            string `json:"caseId"`
	ActiveHoldCount   int64  `json:"activeHoldCount"`
	TotalHoldCount    int64  `json:"totalHoldCount"`
	ActiveRecordCount int64  `json:"activeRecordCount"`
	TotalRecordCount  int64  `json:"totalRecordCount"`
}

// Custodian is a person whose records can be held by identity rather than
// by content criteria. Email is stored normalized (trimmed, lower-cased).
type Custodian struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	SourceType  string    `json:"sourceType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LegalHold is an instruction that a set of records must not be deleted.
// The target set is identified by a custodian, by criteria, or both; a hold
// must always carry at least one of the two. A released hold (RemovedAt set)
// is immutable thereafter.
type LegalHold struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"caseId"`
	CustodianID string     `json:"custodianId"` // empty when criteria-only
	Criteria    *Criteria  `json:"criteria"`    // nil when custodian-only
	Reason      string     `json:"reason"`
	AppliedBy   string     `json:"appliedBy"`
	AppliedAt   time.Time  `json:"appliedAt"`
	RemovedAt   *time.Time `json:"removedAt"`
}

// Released reports whether the hold has been released.
func (h *LegalHold) Released() bool {
	return h.RemovedAt != nil
}

// HoldMembership joins a hold to a matched record. Rows are append-only:
// a membership that no longer matches is soft-removed by setting RemovedAt,
// never deleted, so past matches stay auditable. The (HoldID, RecordID)
// pair is unique; re-matching reactivates the existing row.
type HoldMembership struct {
	HoldID    string     `json:"holdId"`
	RecordID  string     `json:"recordId"`
	MatchedAt time.Time  `json:"matchedAt"`
	MatchedBy string     `json:"matchedBy"`
	RemovedAt *time.Time `json:"removedAt"`
}

// Active reports whether the membership currently counts toward the
// record's hold flag.
func (m *HoldMembership) Active() bool {
	return m.RemovedAt == nil
}

// HoldNotice records a preservation notice sent to a custodian for a hold,
// and its acknowledgement state.
type HoldNotice struct {
	ID             string     `json:"id"`
	HoldID         string     `json:"holdId"`
	CustodianID    string     `json:"custodianId"`
	Channel        string     `json:"channel"` // "manual", "reminder", ...
	SentAt         time.Time  `json:"sentAt"`
	SentBy         string     `json:"sentBy"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt"`
	AcknowledgedBy string     `json:"acknowledgedBy"`
	Notes          string     `json:"notes"`
}

// RetentionAction is what happens to an eligible record once its retention
// period has expired.
type RetentionAction string

const (
	// ActionDeletePermanently removes the record's blob, metadata and any
	// orphaned attachments.
	ActionDeletePermanently RetentionAction = "delete_permanently"

	// ActionNotifyAdmin only counts the record for an administrator
	// notification; dispatch is an external collaborator's concern.
	ActionNotifyAdmin RetentionAction = "notify_admin"
)

// Valid reports whether the action is one of the known values.
func (a RetentionAction) Valid() bool {
	return a == ActionDeletePermanently || a == ActionNotifyAdmin
}

// RetentionPolicy is a rule that expires records past an age threshold.
// Policies are evaluated in ascending Priority order; a record claimed by
// an earlier policy in a run is excluded from later policies in that run.
type RetentionPolicy struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	Priority            int             `json:"priority"`
	RetentionPeriodDays int             `json:"retentionPeriodDays"`
	Action              RetentionAction `json:"actionOnExpiry"`
	IsEnabled           bool            `json:"isEnabled"`
	Conditions          *Criteria       `json:"conditions"` // nil matches every record
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// ExportFormat selects the payload layout of an export container.
type ExportFormat string

const (
	FormatEML  ExportFormat = "eml"
	FormatMbox ExportFormat = "mbox"
	FormatJSON ExportFormat = "json"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == FormatEML || f == FormatMbox || f == FormatJSON
}

// ExportStatus is the lifecycle state of an export job. Jobs are created
// pending and transition pending -> running -> completed|failed exactly
// once; terminal states are final.
type ExportStatus string

const (
	StatusPending   ExportStatus = "pending"
	StatusRunning   ExportStatus = "running"
	StatusCompleted ExportStatus = "completed"
	StatusFailed    ExportStatus = "failed"
)

// Terminal reports whether the status is final.
func (s ExportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ExportSelector names the record set of a targeted export. Exactly one of
// the three fields may be set.
type ExportSelector struct {
	HoldID    string   `json:"holdId,omitempty"`
	CaseID    string   `json:"caseId,omitempty"`
	RecordIDs []string `json:"recordIds,omitempty"`
}

// ExportJob is a targeted subset export: active members of one hold, active
// members of all holds under a case, or an explicit record id list.
type ExportJob struct {
	ID              string         `json:"id"`
	CaseID          string         `json:"caseId"`
	Format          ExportFormat   `json:"format"`
	Status          ExportStatus   `json:"status"`
	Selector        ExportSelector `json:"selector"`
	FilePath        string         `json:"filePath"`
	RecordCount     int64          `json:"recordCount"`
	AttachmentCount int64          `json:"attachmentCount"`
	ErrorMessage    string         `json:"errorMessage"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	CompletedAt     *time.Time     `json:"completedAt"`
}

// ArchiveExportJob is a full-corpus point-in-time export. SnapshotAt is
// fixed at job creation; records archived afterwards are outside the
// export's scope regardless of when the job runs.
type ArchiveExportJob struct {
	ID              string       `json:"id"`
	Format          ExportFormat `json:"format"`
	Status          ExportStatus `json:"status"`
	SnapshotAt      time.Time    `json:"snapshotAt"`
	FilePath        string       `json:"filePath"`
	RecordCount     int64        `json:"recordCount"`
	AttachmentCount int64        `json:"attachmentCount"`
	ErrorMessage    string       `json:"errorMessage"`
	CreatedBy       string       `json:"createdBy"`
	CreatedAt       time.Time    `json:"createdAt"`
	CompletedAt     *time.Time   `json:"completedAt"`
}

// Actor identifies who performed a privileged action, for the audit trail.
type Actor struct {
	ID string
	IP string
}

// SystemActor is the actor recorded for scheduler- and worker-initiated
// actions.
var SystemActor = Actor{ID: "system", IP: "system"}
