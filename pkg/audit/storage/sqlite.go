package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"parchment-hq/parchment/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
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

// SQLiteStore implements audit.Store using SQLite.
//
// The ledger database is kept separate from the archive database so that
// corruption or compaction of one cannot silently affect the other.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite ledger backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig("data/audit.db")
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
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

	logger.Info("SQLite ledger storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// AppendEntry persists one ledger entry. The id is a primary key, so a
// duplicate append from a second writer fails instead of forking the chain.
func (s *SQLiteStore) AppendEntry(ctx context.Context, e *audit.Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return audit.NewStorageError("sqlite", "marshal_details", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, actor_identifier, action_type, target_type, target_id, actor_ip,
			details, recorded_at, prev_hash, entry_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// recorded_at is stored as RFC 3339 nanoseconds so the verification
	// pass recomputes hashes from exactly the bytes that were hashed.
	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.ActorIdentifier, string(e.ActionType), e.TargetType, e.TargetID, e.ActorIP,
		string(details), e.RecordedAt.UTC().Format(time.RFC3339Nano), e.PrevHash, e.EntryHash,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "append", err)
	}
	return nil
}

// LastEntry returns the entry with the highest id, or nil for an empty
// ledger.
func (s *SQLiteStore) LastEntry(ctx context.Context) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" FROM audit_entries ORDER BY id DESC LIMIT 1")
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "last_entry", err)
	}
	return e, nil
}

// GetEntry returns one entry by id, or nil when it does not exist.
func (s *SQLiteStore) GetEntry(ctx context.Context, id int64) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" FROM audit_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "get_entry", err)
	}
	return e, nil
}

// ListEntries returns entries matching the filter, newest first.
func (s *SQLiteStore) ListEntries(ctx context.Context, filter *audit.Filter) ([]*audit.Entry, error) {
	whereClause, args := buildWhereClause(filter)

	sqlQuery := selectColumns + " FROM audit_entries"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " ORDER BY id DESC"

	limit := 100
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if filter != nil && filter.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	entries := []*audit.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "list", err)
	}
	return entries, nil
}

// CountEntries returns the number of entries in the ledger.
func (s *SQLiteStore) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries").Scan(&count)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// StreamEntries yields every entry in ascending id order for the chain
// walk. The channels are closed when the stream completes or errors.
func (s *SQLiteStore) StreamEntries(ctx context.Context) (<-chan *audit.Entry, <-chan error, error) {
	entriesCh := make(chan *audit.Entry, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(entriesCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx,
			selectColumns+" FROM audit_entries ORDER BY id ASC")
		if err != nil {
			errCh <- audit.NewStorageError("sqlite", "stream", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				errCh <- audit.NewStorageError("sqlite", "scan", err)
				return
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case entriesCh <- e:
			}
		}

		if err := rows.Err(); err != nil {
			errCh <- audit.NewStorageError("sqlite", "stream", err)
		}
	}()

	return entriesCh, errCh, nil
}

// DB exposes the underlying handle for health probes.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite ledger storage closed")
	return nil
}

const selectColumns = `SELECT id, actor_identifier, action_type, target_type, target_id, actor_ip,
	details, recorded_at, prev_hash, entry_hash`

// buildWhereClause builds a SQL WHERE clause from filter fields.
// Returns the WHERE clause (without "WHERE" keyword) and the query arguments.
func buildWhereClause(filter *audit.Filter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.ActionType != "" {
		conditions = append(conditions, "action_type = ?")
		args = append(args, string(filter.ActionType))
	}
	if filter.TargetType != "" {
		conditions = append(conditions, "target_type = ?")
		args = append(args, filter.TargetType)
	}
	if filter.TargetID != "" {
		conditions = append(conditions, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.Actor != "" {
		conditions = append(conditions, "actor_identifier = ?")
		args = append(args, filter.Actor)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "recorded_at <= ?")
		args = append(args, filter.Until.UTC().Format(time.RFC3339Nano))
	}

	whereClause := ""
	for i, condition := range conditions {
		if i > 0 {
			whereClause += " AND "
		}
		whereClause += condition
	}
	return whereClause, args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans a database row into an Entry.
func scanEntry(row rowScanner) (*audit.Entry, error) {
	var e audit.Entry
	var actionType, details, recordedAt string

	err := row.Scan(
		&e.ID, &e.ActorIdentifier, &actionType, &e.TargetType, &e.TargetID, &e.ActorIP,
		&details, &recordedAt, &e.PrevHash, &e.EntryHash,
	)
	if err != nil {
		return nil, err
	}

	e.ActionType = audit.ActionType(actionType)

	if details != "" && details != "null" {
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details of entry %d: %w", e.ID, err)
		}
	}

	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("parse recorded_at of entry %d: %w", e.ID, err)
	}
	e.RecordedAt = t

	return &e, nil
}
