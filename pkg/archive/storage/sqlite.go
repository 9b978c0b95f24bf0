package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"parchment-hq/parchment/pkg/archive"
)

// SQLiteConfig contains configuration for the SQLite archive backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig(path string) *SQLiteConfig {
	return &SQLiteConfig{
		Path:         path,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements archive.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite archive backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig("data/archive.db")
	}

	logger := slog.Default().With("component", "archive.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite archive storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return archive.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return archive.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return archive.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return archive.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return archive.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return archive.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// DB exposes the underlying handle for health probes.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return archive.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite archive storage closed")
	return nil
}

// ---- records ----

const recordColumns = `id, source_id, owner_email, sender_email, subject, mailbox_path,
	sent_at, archived_at, storage_path, content_hash, has_attachments, is_on_hold`

// InsertRecord persists a newly archived record.
func (s *SQLiteStore) InsertRecord(ctx context.Context, rec *archive.ArchivedRecord) error {
	query := `
		INSERT INTO archived_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.SourceID, rec.OwnerEmail, rec.SenderEmail, rec.Subject, rec.MailboxPath,
		rec.SentAt, rec.ArchivedAt, rec.StoragePath, rec.ContentHash, rec.HasAttachments, rec.IsOnHold,
	)
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_record", err)
	}
	return nil
}

// GetRecord returns one record, or a NotFoundError.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*archive.ArchivedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM archived_records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("archived record", id)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_record", err)
	}
	return rec, nil
}

// ListRecordsByIDs returns the records for the given ids, ordered by
// (archived_at, id). Unknown ids are silently skipped.
func (s *SQLiteStore) ListRecordsByIDs(ctx context.Context, ids []string) ([]*archive.ArchivedRecord, error) {
	if len(ids) == 0 {
		return []*archive.ArchivedRecord{}, nil
	}

	query := "SELECT " + recordColumns + " FROM archived_records WHERE id IN (" +
		placeholders(len(ids)) + ") ORDER BY archived_at, id"

	rows, err := s.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_records", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// StreamRecords streams the whole corpus ordered by (archived_at, id).
func (s *SQLiteStore) StreamRecords(ctx context.Context) (<-chan *archive.ArchivedRecord, <-chan error, error) {
	recordsCh := make(chan *archive.ArchivedRecord, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx,
			"SELECT "+recordColumns+" FROM archived_records ORDER BY archived_at, id")
		if err != nil {
			errCh <- archive.NewStorageError("sqlite", "stream_records", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				errCh <- archive.NewStorageError("sqlite", "scan_record", err)
				return
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- rec:
			}
		}

		if err := rows.Err(); err != nil {
			errCh <- archive.NewStorageError("sqlite", "stream_records", err)
		}
	}()

	return recordsCh, errCh, nil
}

// ListRecordsArchivedBefore pages through records with archived_at <=
// cutoff, ordered by (archived_at, id).
func (s *SQLiteStore) ListRecordsArchivedBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]*archive.ArchivedRecord, error) {
	query := "SELECT " + recordColumns + ` FROM archived_records
		WHERE archived_at <= ? ORDER BY archived_at, id LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit, offset)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_records_before", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// SetHoldFlag sets is_on_hold for every given record id.
func (s *SQLiteStore) SetHoldFlag(ctx context.Context, ids []string, onHold bool) error {
	if len(ids) == 0 {
		return nil
	}

	query := "UPDATE archived_records SET is_on_hold = ? WHERE id IN (" + placeholders(len(ids)) + ")"
	args := append([]interface{}{onHold}, stringArgs(ids)...)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return archive.NewStorageError("sqlite", "set_hold_flag", err)
	}
	return nil
}

// DeleteRecord removes a record row.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM archived_records WHERE id = ?", id); err != nil {
		return archive.NewStorageError("sqlite", "delete_record", err)
	}
	return nil
}

// CountRecords returns the total number of archived records.
func (s *SQLiteStore) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM archived_records").Scan(&count); err != nil {
		return 0, archive.NewStorageError("sqlite", "count_records", err)
	}
	return count, nil
}

// ---- attachments ----

// InsertAttachment persists an attachment row.
func (s *SQLiteStore) InsertAttachment(ctx context.Context, att *archive.Attachment) error {
	query := `
		INSERT INTO attachments (id, filename, mime_type, size_bytes, storage_path, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		att.ID, att.Filename, att.MimeType, att.SizeBytes, att.StoragePath, att.ContentHash)
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_attachment", err)
	}
	return nil
}

// GetAttachmentByHash returns the attachment with the given content hash,
// or nil.
func (s *SQLiteStore) GetAttachmentByHash(ctx context.Context, contentHash string) (*archive.Attachment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, mime_type, size_bytes, storage_path, content_hash
		FROM attachments WHERE content_hash = ?`, contentHash)

	var att archive.Attachment
	err := row.Scan(&att.ID, &att.Filename, &att.MimeType, &att.SizeBytes, &att.StoragePath, &att.ContentHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_attachment_by_hash", err)
	}
	return &att, nil
}

// LinkAttachment links an attachment to a record.
func (s *SQLiteStore) LinkAttachment(ctx context.Context, recordID, attachmentID string) error {
	query := `
		INSERT INTO record_attachments (record_id, attachment_id)
		VALUES (?, ?)
		ON CONFLICT(record_id, attachment_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, recordID, attachmentID); err != nil {
		return archive.NewStorageError("sqlite", "link_attachment", err)
	}
	return nil
}

// ListAttachmentsForRecords returns attachments keyed by record id.
func (s *SQLiteStore) ListAttachmentsForRecords(ctx context.Context, recordIDs []string) (map[string][]*archive.Attachment, error) {
	result := make(map[string][]*archive.Attachment)
	if len(recordIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT ra.record_id, a.id, a.filename, a.mime_type, a.size_bytes, a.storage_path, a.content_hash
		FROM record_attachments ra
		JOIN attachments a ON a.id = ra.attachment_id
		WHERE ra.record_id IN (` + placeholders(len(recordIDs)) + `)
		ORDER BY ra.record_id, a.filename`

	rows, err := s.db.QueryContext(ctx, query, stringArgs(recordIDs)...)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_attachments", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID string
		var att archive.Attachment
		if err := rows.Scan(&recordID, &att.ID, &att.Filename, &att.MimeType,
			&att.SizeBytes, &att.StoragePath, &att.ContentHash); err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_attachment", err)
		}
		result[recordID] = append(result[recordID], &att)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "list_attachments", err)
	}
	return result, nil
}

// UnlinkAttachment removes the (record, attachment) link.
func (s *SQLiteStore) UnlinkAttachment(ctx context.Context, recordID, attachmentID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM record_attachments WHERE record_id = ? AND attachment_id = ?",
		recordID, attachmentID)
	if err != nil {
		return archive.NewStorageError("sqlite", "unlink_attachment", err)
	}
	return nil
}

// CountAttachmentLinks returns how many records still reference the
// attachment.
func (s *SQLiteStore) CountAttachmentLinks(ctx context.Context, attachmentID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM record_attachments WHERE attachment_id = ?", attachmentID).Scan(&count)
	if err != nil {
		return 0, archive.NewStorageError("sqlite", "count_attachment_links", err)
	}
	return count, nil
}

// DeleteAttachment removes an orphaned attachment row.
func (s *SQLiteStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", attachmentID); err != nil {
		return archive.NewStorageError("sqlite", "delete_attachment", err)
	}
	return nil
}

// ---- legal holds ----

const holdColumns = `id, case_id, custodian_id, criteria, reason, applied_by, applied_at, removed_at`

// InsertHold persists a legal hold.
func (s *SQLiteStore) InsertHold(ctx context.Context, hold *archive.LegalHold) error {
	criteria, err := marshalCriteria(hold.Criteria)
	if err != nil {
		return archive.NewStorageError("sqlite", "marshal_criteria", err)
	}

	query := `
		INSERT INTO legal_holds (` + holdColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		hold.ID, hold.CaseID, hold.CustodianID, criteria,
		hold.Reason, hold.AppliedBy, hold.AppliedAt, nullTime(hold.RemovedAt))
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_hold", err)
	}
	return nil
}

// GetHold returns one hold, or a NotFoundError.
func (s *SQLiteStore) GetHold(ctx context.Context, id string) (*archive.LegalHold, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+holdColumns+" FROM legal_holds WHERE id = ?", id)
	hold, err := scanHold(row)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("legal hold", id)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_hold", err)
	}
	return hold, nil
}

// UpdateHold rewrites a hold row.
func (s *SQLiteStore) UpdateHold(ctx context.Context, hold *archive.LegalHold) error {
	criteria, err := marshalCriteria(hold.Criteria)
	if err != nil {
		return archive.NewStorageError("sqlite", "marshal_criteria", err)
	}

	query := `
		UPDATE legal_holds
		SET case_id = ?, custodian_id = ?, criteria = ?, reason = ?,
		    applied_by = ?, applied_at = ?, removed_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		hold.CaseID, hold.CustodianID, criteria, hold.Reason,
		hold.AppliedBy, hold.AppliedAt, nullTime(hold.RemovedAt), hold.ID)
	if err != nil {
		return archive.NewStorageError("sqlite", "update_hold", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return archive.NewNotFoundError("legal hold", hold.ID)
	}
	return nil
}

// ListHolds returns every hold, newest first.
func (s *SQLiteStore) ListHolds(ctx context.Context) ([]*archive.LegalHold, error) {
	return s.queryHolds(ctx,
		"SELECT "+holdColumns+" FROM legal_holds ORDER BY applied_at DESC")
}

// ListActiveHolds returns holds that have not been released.
func (s *SQLiteStore) ListActiveHolds(ctx context.Context) ([]*archive.LegalHold, error) {
	return s.queryHolds(ctx,
		"SELECT "+holdColumns+" FROM legal_holds WHERE removed_at IS NULL ORDER BY applied_at DESC")
}

// ListHoldsByCase returns the holds of one case, newest first.
func (s *SQLiteStore) ListHoldsByCase(ctx context.Context, caseID string) ([]*archive.LegalHold, error) {
	return s.queryHolds(ctx,
		"SELECT "+holdColumns+" FROM legal_holds WHERE case_id = ? ORDER BY applied_at DESC", caseID)
}

func (s *SQLiteStore) queryHolds(ctx context.Context, query string, args ...interface{}) ([]*archive.LegalHold, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_holds", err)
	}
	defer rows.Close()

	holds := []*archive.LegalHold{}
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_hold", err)
		}
		holds = append(holds, hold)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "list_holds", err)
	}
	return holds, nil
}

// ---- hold memberships ----

// UpsertMemberships inserts missing (hold, record) rows and reactivates
// soft-removed ones.
func (s *SQLiteStore) UpsertMemberships(ctx context.Context, holdID string, recordIDs []string, matchedBy string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return archive.NewStorageError("sqlite", "upsert_memberships", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO hold_memberships (hold_id, record_id, matched_at, matched_by, removed_at)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT(hold_id, record_id) DO UPDATE SET
			matched_at = excluded.matched_at,
			matched_by = excluded.matched_by,
			removed_at = NULL
	`
	now := time.Now().UTC()
	for _, recordID := range recordIDs {
		if _, err := tx.ExecContext(ctx, query, holdID, recordID, now, matchedBy); err != nil {
			return archive.NewStorageError("sqlite", "upsert_memberships", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return archive.NewStorageError("sqlite", "upsert_memberships", err)
	}
	return nil
}

// UpsertMembershipsForRecord is the per-record variant used when a new
// record matches several holds at once.
func (s *SQLiteStore) UpsertMembershipsForRecord(ctx context.Context, holdIDs []string, recordID, matchedBy string) error {
	for _, holdID := range holdIDs {
		if err := s.UpsertMemberships(ctx, holdID, []string{recordID}, matchedBy); err != nil {
			return err
		}
	}
	return nil
}

// MarkMembershipsRemoved soft-removes the active memberships of the hold
// for the given record ids.
func (s *SQLiteStore) MarkMembershipsRemoved(ctx context.Context, holdID string, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	query := `
		UPDATE hold_memberships SET removed_at = ?
		WHERE hold_id = ? AND removed_at IS NULL AND record_id IN (` + placeholders(len(recordIDs)) + `)`

	args := append([]interface{}{time.Now().UTC(), holdID}, stringArgs(recordIDs)...)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return archive.NewStorageError("sqlite", "mark_memberships_removed", err)
	}
	return nil
}

// ListMemberships returns all membership rows of a hold.
func (s *SQLiteStore) ListMemberships(ctx context.Context, holdID string) ([]*archive.HoldMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hold_id, record_id, matched_at, matched_by, removed_at
		FROM hold_memberships WHERE hold_id = ? ORDER BY matched_at, record_id`, holdID)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_memberships", err)
	}
	defer rows.Close()

	memberships := []*archive.HoldMembership{}
	for rows.Next() {
		var m archive.HoldMembership
		var removedAt sql.NullTime
		if err := rows.Scan(&m.HoldID, &m.RecordID, &m.MatchedAt, &m.MatchedBy, &removedAt); err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_membership", err)
		}
		if removedAt.Valid {
			t := removedAt.Time
			m.RemovedAt = &t
		}
		memberships = append(memberships, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "list_memberships", err)
	}
	return memberships, nil
}

// ListActiveMemberRecordIDs returns the record ids with an active
// membership in the hold.
func (s *SQLiteStore) ListActiveMemberRecordIDs(ctx context.Context, holdID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id FROM hold_memberships
		WHERE hold_id = ? AND removed_at IS NULL ORDER BY record_id`, holdID)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_active_members", err)
	}
	defer rows.Close()

	return collectStrings(rows)
}

// FilterRecordIDsWithActiveHold returns the subset of recordIDs with at
// least one active membership across any hold.
func (s *SQLiteStore) FilterRecordIDsWithActiveHold(ctx context.Context, recordIDs []string) ([]string, error) {
	if len(recordIDs) == 0 {
		return []string{}, nil
	}

	query := `
		SELECT DISTINCT record_id FROM hold_memberships
		WHERE removed_at IS NULL AND record_id IN (` + placeholders(len(recordIDs)) + `)`

	rows, err := s.db.QueryContext(ctx, query, stringArgs(recordIDs)...)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "filter_held_records", err)
	}
	defer rows.Close()

	return collectStrings(rows)
}

// HoldCounts returns total and active membership counts for a hold.
func (s *SQLiteStore) HoldCounts(ctx context.Context, holdID string) (int64, int64, error) {
	var total, active int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN removed_at IS NULL THEN 1 ELSE 0 END), 0)
		FROM hold_memberships WHERE hold_id = ?`, holdID).Scan(&total, &active)
	if err != nil {
		return 0, 0, archive.NewStorageError("sqlite", "hold_counts", err)
	}
	return total, active, nil
}

// ---- cases ----

// InsertCase persists a case.
func (s *SQLiteStore) InsertCase(ctx context.Context, c *archive.Case) error {
	query := `
		INSERT INTO cases (id, name, description, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Description, c.Status, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_case", err)
	}
	return nil
}

// GetCase returns one case, or a NotFoundError.
func (s *SQLiteStore) GetCase(ctx context.Context, id string) (*archive.Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, created_by, created_at, updated_at
		FROM cases WHERE id = ?`, id)

	var c archive.Case
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("case", id)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_case", err)
	}
	return &c, nil
}

// UpdateCase rewrites a case row.
func (s *SQLiteStore) UpdateCase(ctx context.Context, c *archive.Case) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cases SET name = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Status, c.UpdatedAt, c.ID)
	if err != nil {
		return archive.NewStorageError("sqlite", "update_case", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return archive.NewNotFoundError("case", c.ID)
	}
	return nil
}

// ListCases returns every case, newest first.
func (s *SQLiteStore) ListCases(ctx context.Context) ([]*archive.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, status, created_by, created_at, updated_at
		FROM cases ORDER BY created_at DESC`)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_cases", err)
	}
	defer rows.Close()

	cases := []*archive.Case{}
	for rows.Next() {
		var c archive.Case
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Status,
			&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_case", err)
		}
		cases = append(cases, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "list_cases", err)
	}
	return cases, nil
}

// CaseSummaries aggregates hold and record membership counts per case.
func (s *SQLiteStore) CaseSummaries(ctx context.Context) ([]*archive.CaseSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id,
			COUNT(DISTINCT CASE WHEN h.removed_at IS NULL THEN h.id END),
			COUNT(DISTINCT h.id),
			COUNT(DISTINCT CASE WHEN h.removed_at IS NULL AND m.removed_at IS NULL THEN m.record_id END),
			COUNT(DISTINCT m.record_id)
		FROM cases c
		LEFT JOIN legal_holds h ON h.case_id = c.id
		LEFT JOIN hold_memberships m ON m.hold_id = h.id
		GROUP BY c.id
		ORDER BY c.id`)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "case_summaries", err)
	}
	defer rows.Close()

	summaries := []*archive.CaseSummary{}
	for rows.Next() {
		var cs archive.CaseSummary
		if err := rows.Scan(&cs.CaseID, &cs.ActiveHoldCount, &cs.TotalHoldCount,
			&cs.ActiveRecordCount, &cs.TotalRecordCount); err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_case_summary", err)
		}
		summaries = append(summaries, &cs)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "case_summaries", err)
	}
	return summaries, nil
}

// ---- custodians ----

// InsertCustodian persists a custodian.
func (s *SQLiteStore) InsertCustodian(ctx context.Context, c *archive.Custodian) error {
	query := `
		INSERT INTO custodians (id, email, display_name, source_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Email, c.DisplayName, c.SourceType, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_custodian", err)
	}
	return nil
}

// GetCustodian returns one custodian, or a NotFoundError.
func (s *SQLiteStore) GetCustodian(ctx context.Context, id string) (*archive.Custodian, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, source_type, created_at, updated_at
		FROM custodians WHERE id = ?`, id)

	var c archive.Custodian
	err := row.Scan(&c.ID, &c.Email, &c.DisplayName, &c.SourceType, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("custodian", id)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_custodian", err)
	}
	return &c, nil
}

// ListCustodians returns every custodian ordered by email.
func (s *SQLiteStore) ListCustodians(ctx context.Context) ([]*archive.Custodian, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, source_type, created_at, updated_at
		FROM custodians ORDER BY email`)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_custodians", err)
	}
	defer rows.Close()

	custodians := []*archive.Custodian{}
	for rows.Next() {
		var c archive.Custodian
		if err := rows.Scan(&c.ID, &c.Email, &c.DisplayName, &c.SourceType,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_custodian", err)
		}
		custodians = append(custodians, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "list_custodians", err)
	}
	return custodians, nil
}

// ---- hold notices ----

const noticeColumns = `id, hold_id, custodian_id, channel, sent_at, sent_by,
	acknowledged_at, acknowledged_by, notes`

// InsertNotice persists a hold notice.
func (s *SQLiteStore) InsertNotice(ctx context.Context, n *archive.HoldNotice) error {
	query := `
		INSERT INTO hold_notices (` + noticeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.HoldID, n.CustodianID, n.Channel, n.SentAt, n.SentBy,
		nullTime(n.AcknowledgedAt), n.AcknowledgedBy, n.Notes)
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_notice", err)
	}
	return nil
}

// GetNotice returns one notice of a hold, or a NotFoundError.
func (s *SQLiteStore) GetNotice(ctx context.Context, holdID, noticeID string) (*archive.HoldNotice, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+noticeColumns+" FROM hold_notices WHERE id = ? AND hold_id = ?", noticeID, holdID)
	n, err := scanNotice(row)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("hold notice", noticeID)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_notice", err)
	}
	return n, nil
}

// UpdateNotice rewrites a notice row.
func (s *SQLiteStore) UpdateNotice(ctx context.Context, n *archive.HoldNotice) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE hold_notices
		SET acknowledged_at = ?, acknowledged_by = ?, notes = ?
		WHERE id = ?`,
		nullTime(n.AcknowledgedAt), n.AcknowledgedBy, n.Notes, n.ID)
	if err != nil {
		return archive.NewStorageError("sqlite", "update_notice", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return archive.NewNotFoundError("hold notice", n.ID)
	}
	return nil
}

// ListNoticesForHold returns the notices of one hold, newest first.
func (s *SQLiteStore) ListNoticesForHold(ctx context.Context, holdID string) ([]*archive.HoldNotice, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+noticeColumns+" FROM hold_notices WHERE hold_id = ? ORDER BY sent_at DESC", holdID)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_notices", err)
	}
	defer rows.Close()

	return collectNotices(rows)
}

// ListLatestNoticesForActiveHolds returns the most recently sent notice
// per (hold, custodian) pair whose hold is still active.
func (s *SQLiteStore) ListLatestNoticesForActiveHolds(ctx context.Context) ([]*archive.HoldNotice, error) {
	query := `
		SELECT n.id, n.hold_id, n.custodian_id, n.channel, n.sent_at, n.sent_by,
			n.acknowledged_at, n.acknowledged_by, n.notes
		FROM hold_notices n
		JOIN legal_holds h ON h.id = n.hold_id AND h.removed_at IS NULL
		WHERE n.sent_at = (
			SELECT MAX(n2.sent_at) FROM hold_notices n2
			WHERE n2.hold_id = n.hold_id AND n2.custodian_id = n.custodian_id
		)
		ORDER BY n.hold_id, n.custodian_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_latest_notices", err)
	}
	defer rows.Close()

	return collectNotices(rows)
}

// ---- retention policies ----

const policyColumns = `id, name, description, priority, retention_period_days,
	action, is_enabled, conditions, created_at, updated_at`

// InsertPolicy persists a retention policy. Condition date bounds are
// validated here so a malformed policy can never reach Matches.
func (s *SQLiteStore) InsertPolicy(ctx context.Context, p *archive.RetentionPolicy) error {
	if err := p.Conditions.Validate(); err != nil {
		return err
	}

	conditions, err := marshalCriteria(p.Conditions)
	if err != nil {
		return archive.NewStorageError("sqlite", "marshal_conditions", err)
	}

	query := `
		INSERT INTO retention_policies (` + policyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Priority, p.RetentionPeriodDays,
		string(p.Action), p.IsEnabled, conditions, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_policy", err)
	}
	return nil
}

// GetPolicy returns one policy, or a NotFoundError.
func (s *SQLiteStore) GetPolicy(ctx context.Context, id string) (*archive.RetentionPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+policyColumns+" FROM retention_policies WHERE id = ?", id)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("retention policy", id)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_policy", err)
	}
	return p, nil
}

// UpdatePolicy rewrites a policy row.
func (s *SQLiteStore) UpdatePolicy(ctx context.Context, p *archive.RetentionPolicy) error {
	if err := p.Conditions.Validate(); err != nil {
		return err
	}

	conditions, err := marshalCriteria(p.Conditions)
	if err != nil {
		return archive.NewStorageError("sqlite", "marshal_conditions", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE retention_policies
		SET name = ?, description = ?, priority = ?, retention_period_days = ?,
		    action = ?, is_enabled = ?, conditions = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Priority, p.RetentionPeriodDays,
		string(p.Action), p.IsEnabled, conditions, p.UpdatedAt, p.ID)
	if err != nil {
		return archive.NewStorageError("sqlite", "update_policy", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return archive.NewNotFoundError("retention policy", p.ID)
	}
	return nil
}

// ListEnabledPolicies returns enabled policies ordered by ascending
// priority.
func (s *SQLiteStore) ListEnabledPolicies(ctx context.Context) ([]*archive.RetentionPolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+policyColumns+` FROM retention_policies
		WHERE is_enabled = 1 ORDER BY priority, created_at`)
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "list_policies", err)
	}
	defer rows.Close()

	policies := []*archive.RetentionPolicy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_policy", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "list_policies", err)
	}
	return policies, nil
}

// ---- export jobs ----

const exportJobColumns = `id, case_id, format, status, selector, file_path,
	record_count, attachment_count, error_message, created_by, created_at, completed_at`

// InsertExportJob persists a targeted export job.
func (s *SQLiteStore) InsertExportJob(ctx context.Context, job *archive.ExportJob) error {
	selector, err := json.Marshal(job.Selector)
	if err != nil {
		return archive.NewStorageError("sqlite", "marshal_selector", err)
	}

	query := `
		INSERT INTO export_jobs (` + exportJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.CaseID, string(job.Format), string(job.Status), string(selector),
		job.FilePath, job.RecordCount, job.AttachmentCount, job.ErrorMessage,
		job.CreatedBy, job.CreatedAt, nullTime(job.CompletedAt))
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_export_job", err)
	}
	return nil
}

// GetExportJob returns one targeted export job, or a NotFoundError.
func (s *SQLiteStore) GetExportJob(ctx context.Context, id string) (*archive.ExportJob, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+exportJobColumns+" FROM export_jobs WHERE id = ?", id)
	job, err := scanExportJob(row)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("export job", id)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_export_job", err)
	}
	return job, nil
}

// UpdateExportJob rewrites the mutable fields of a targeted export job.
func (s *SQLiteStore) UpdateExportJob(ctx context.Context, job *archive.ExportJob) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE export_jobs
		SET status = ?, file_path = ?, record_count = ?, attachment_count = ?,
		    error_message = ?, completed_at = ?
		WHERE id = ?`,
		string(job.Status), job.FilePath, job.RecordCount, job.AttachmentCount,
		job.ErrorMessage, nullTime(job.CompletedAt), job.ID)
	if err != nil {
		return archive.NewStorageError("sqlite", "update_export_job", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return archive.NewNotFoundError("export job", job.ID)
	}
	return nil
}

// ListExportJobs returns targeted export jobs, newest first, with the
// total count for pagination.
func (s *SQLiteStore) ListExportJobs(ctx context.Context, limit, offset int) ([]*archive.ExportJob, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM export_jobs").Scan(&total); err != nil {
		return nil, 0, archive.NewStorageError("sqlite", "count_export_jobs", err)
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+exportJobColumns+" FROM export_jobs ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, archive.NewStorageError("sqlite", "list_export_jobs", err)
	}
	defer rows.Close()

	jobs := []*archive.ExportJob{}
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, 0, archive.NewStorageError("sqlite", "scan_export_job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, archive.NewStorageError("sqlite", "list_export_jobs", err)
	}
	return jobs, total, nil
}

const archiveExportJobColumns = `id, format, status, snapshot_at, file_path,
	record_count, attachment_count, error_message, created_by, created_at, completed_at`

// InsertArchiveExportJob persists a snapshot export job.
func (s *SQLiteStore) InsertArchiveExportJob(ctx context.Context, job *archive.ArchiveExportJob) error {
	query := `
		INSERT INTO archive_export_jobs (` + archiveExportJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		job.ID, string(job.Format), string(job.Status), job.SnapshotAt, job.FilePath,
		job.RecordCount, job.AttachmentCount, job.ErrorMessage,
		job.CreatedBy, job.CreatedAt, nullTime(job.CompletedAt))
	if err != nil {
		return archive.NewStorageError("sqlite", "insert_archive_export_job", err)
	}
	return nil
}

// GetArchiveExportJob returns one snapshot export job, or a NotFoundError.
func (s *SQLiteStore) GetArchiveExportJob(ctx context.Context, id string) (*archive.ArchiveExportJob, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+archiveExportJobColumns+" FROM archive_export_jobs WHERE id = ?", id)
	job, err := scanArchiveExportJob(row)
	if err == sql.ErrNoRows {
		return nil, archive.NewNotFoundError("archive export job", id)
	}
	if err != nil {
		return nil, archive.NewStorageError("sqlite", "get_archive_export_job", err)
	}
	return job, nil
}

// UpdateArchiveExportJob rewrites the mutable fields of a snapshot export
// job.
func (s *SQLiteStore) UpdateArchiveExportJob(ctx context.Context, job *archive.ArchiveExportJob) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE archive_export_jobs
		SET status = ?, file_path = ?, record_count = ?, attachment_count = ?,
		    error_message = ?, completed_at = ?
		WHERE id = ?`,
		string(job.Status), job.FilePath, job.RecordCount, job.AttachmentCount,
		job.ErrorMessage, nullTime(job.CompletedAt), job.ID)
	if err != nil {
		return archive.NewStorageError("sqlite", "update_archive_export_job", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return archive.NewNotFoundError("archive export job", job.ID)
	}
	return nil
}

// ListArchiveExportJobs returns snapshot export jobs, newest first, with
// the total count for pagination.
func (s *SQLiteStore) ListArchiveExportJobs(ctx context.Context, limit, offset int) ([]*archive.ArchiveExportJob, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM archive_export_jobs").Scan(&total); err != nil {
		return nil, 0, archive.NewStorageError("sqlite", "count_archive_export_jobs", err)
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+archiveExportJobColumns+" FROM archive_export_jobs ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, archive.NewStorageError("sqlite", "list_archive_export_jobs", err)
	}
	defer rows.Close()

	jobs := []*archive.ArchiveExportJob{}
	for rows.Next() {
		job, err := scanArchiveExportJob(rows)
		if err != nil {
			return nil, 0, archive.NewStorageError("sqlite", "scan_archive_export_job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, archive.NewStorageError("sqlite", "list_archive_export_jobs", err)
	}
	return jobs, total, nil
}

// ---- helpers ----

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*archive.ArchivedRecord, error) {
	var rec archive.ArchivedRecord
	err := row.Scan(
		&rec.ID, &rec.SourceID, &rec.OwnerEmail, &rec.SenderEmail, &rec.Subject, &rec.MailboxPath,
		&rec.SentAt, &rec.ArchivedAt, &rec.StoragePath, &rec.ContentHash,
		&rec.HasAttachments, &rec.IsOnHold,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanHold(row rowScanner) (*archive.LegalHold, error) {
	var hold archive.LegalHold
	var criteria sql.NullString
	var removedAt sql.NullTime

	err := row.Scan(&hold.ID, &hold.CaseID, &hold.CustodianID, &criteria,
		&hold.Reason, &hold.AppliedBy, &hold.AppliedAt, &removedAt)
	if err != nil {
		return nil, err
	}

	if criteria.Valid && criteria.String != "" {
		if err := json.Unmarshal([]byte(criteria.String), &hold.Criteria); err != nil {
			return nil, fmt.Errorf("unmarshal criteria of hold %s: %w", hold.ID, err)
		}
	}
	if removedAt.Valid {
		t := removedAt.Time
		hold.RemovedAt = &t
	}
	return &hold, nil
}

func scanNotice(row rowScanner) (*archive.HoldNotice, error) {
	var n archive.HoldNotice
	var acknowledgedAt sql.NullTime

	err := row.Scan(&n.ID, &n.HoldID, &n.CustodianID, &n.Channel, &n.SentAt, &n.SentBy,
		&acknowledgedAt, &n.AcknowledgedBy, &n.Notes)
	if err != nil {
		return nil, err
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		n.AcknowledgedAt = &t
	}
	return &n, nil
}

func scanPolicy(row rowScanner) (*archive.RetentionPolicy, error) {
	var p archive.RetentionPolicy
	var action string
	var conditions sql.NullString

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Priority, &p.RetentionPeriodDays,
		&action, &p.IsEnabled, &conditions, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Action = archive.RetentionAction(action)
	if conditions.Valid && conditions.String != "" {
		if err := json.Unmarshal([]byte(conditions.String), &p.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions of policy %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func scanExportJob(row rowScanner) (*archive.ExportJob, error) {
	var job archive.ExportJob
	var format, status, selector string
	var completedAt sql.NullTime

	err := row.Scan(&job.ID, &job.CaseID, &format, &status, &selector, &job.FilePath,
		&job.RecordCount, &job.AttachmentCount, &job.ErrorMessage,
		&job.CreatedBy, &job.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job.Format = archive.ExportFormat(format)
	job.Status = archive.ExportStatus(status)
	if selector != "" {
		if err := json.Unmarshal([]byte(selector), &job.Selector); err != nil {
			return nil, fmt.Errorf("unmarshal selector of export job %s: %w", job.ID, err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func scanArchiveExportJob(row rowScanner) (*archive.ArchiveExportJob, error) {
	var job archive.ArchiveExportJob
	var format, status string
	var completedAt sql.NullTime

	err := row.Scan(&job.ID, &format, &status, &job.SnapshotAt, &job.FilePath,
		&job.RecordCount, &job.AttachmentCount, &job.ErrorMessage,
		&job.CreatedBy, &job.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job.Format = archive.ExportFormat(format)
	job.Status = archive.ExportStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func collectRecords(rows *sql.Rows) ([]*archive.ArchivedRecord, error) {
	records := []*archive.ArchivedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "collect_records", err)
	}
	return records, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_string", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "collect_strings", err)
	}
	return values, nil
}

func collectNotices(rows *sql.Rows) ([]*archive.HoldNotice, error) {
	notices := []*archive.HoldNotice{}
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, archive.NewStorageError("sqlite", "scan_notice", err)
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, archive.NewStorageError("sqlite", "collect_notices", err)
	}
	return notices, nil
}

func marshalCriteria(c *archive.Criteria) (interface{}, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
