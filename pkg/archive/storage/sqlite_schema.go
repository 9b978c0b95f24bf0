package storage

// SchemaVersion is the current archive database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the archive database schema.
const Schema = `
-- Archived email records. Raw message bytes live in blob storage under
-- storage_path; this table carries searchable metadata only.
CREATE TABLE IF NOT EXISTS archived_records (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    owner_email TEXT NOT NULL,
    sender_email TEXT NOT NULL,
    subject TEXT NOT NULL,
    mailbox_path TEXT NOT NULL DEFAULT '',
    sent_at TIMESTAMP NOT NULL,
    archived_at TIMESTAMP NOT NULL,
    storage_path TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    has_attachments BOOLEAN NOT NULL DEFAULT 0,
    is_on_hold BOOLEAN NOT NULL DEFAULT 0
);

-- Deduplicated attachment blobs, shared between records via the link table.
CREATE TABLE IF NOT EXISTS attachments (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    storage_path TEXT NOT NULL,
    content_hash TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS record_attachments (
    record_id TEXT NOT NULL,
    attachment_id TEXT NOT NULL,
    PRIMARY KEY (record_id, attachment_id)
);

CREATE TABLE IF NOT EXISTS cases (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS custodians (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    source_type TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS legal_holds (
    id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL,
    custodian_id TEXT NOT NULL DEFAULT '',
    criteria TEXT,
    reason TEXT NOT NULL,
    applied_by TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    removed_at TIMESTAMP
);

-- Membership rows are append-only: removal sets removed_at, never deletes.
CREATE TABLE IF NOT EXISTS hold_memberships (
    hold_id TEXT NOT NULL,
    record_id TEXT NOT NULL,
    matched_at TIMESTAMP NOT NULL,
    matched_by TEXT NOT NULL,
    removed_at TIMESTAMP,
    PRIMARY KEY (hold_id, record_id)
);

CREATE TABLE IF NOT EXISTS hold_notices (
    id TEXT PRIMARY KEY,
    hold_id TEXT NOT NULL,
    custodian_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    sent_at TIMESTAMP NOT NULL,
    sent_by TEXT NOT NULL,
    acknowledged_at TIMESTAMP,
    acknowledged_by TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS retention_policies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL,
    retention_period_days INTEGER NOT NULL,
    action TEXT NOT NULL,
    is_enabled BOOLEAN NOT NULL DEFAULT 1,
    conditions TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS export_jobs (
    id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL DEFAULT '',
    format TEXT NOT NULL,
    status TEXT NOT NULL,
    selector TEXT NOT NULL,
    file_path TEXT NOT NULL DEFAULT '',
    record_count INTEGER NOT NULL DEFAULT 0,
    attachment_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS archive_export_jobs (
    id TEXT PRIMARY KEY,
    format TEXT NOT NULL,
    status TEXT NOT NULL,
    snapshot_at TIMESTAMP NOT NULL,
    file_path TEXT NOT NULL DEFAULT '',
    record_count INTEGER NOT NULL DEFAULT 0,
    attachment_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_records_archived_at ON archived_records(archived_at, id);
CREATE INDEX IF NOT EXISTS idx_records_owner ON archived_records(owner_email);
CREATE INDEX IF NOT EXISTS idx_records_source ON archived_records(source_id);
CREATE INDEX IF NOT EXISTS idx_records_on_hold ON archived_records(is_on_hold);
CREATE INDEX IF NOT EXISTS idx_memberships_record ON hold_memberships(record_id);
CREATE INDEX IF NOT EXISTS idx_memberships_removed ON hold_memberships(hold_id, removed_at);
CREATE INDEX IF NOT EXISTS idx_holds_case ON legal_holds(case_id);
CREATE INDEX IF NOT EXISTS idx_notices_hold ON hold_notices(hold_id);
CREATE INDEX IF NOT EXISTS idx_attachment_links ON record_attachments(attachment_id);
CREATE INDEX IF NOT EXISTS idx_policies_priority ON retention_policies(is_enabled, priority);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
