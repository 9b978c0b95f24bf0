package storage

// SchemaVersion is the current ledger database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the ledger database schema.
// The entry id is an explicit integer primary key assigned by the ledger,
// not an autoincrement column: the hash chain covers the id, so the ledger
// must know it before the row is written.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id INTEGER PRIMARY KEY,

    actor_identifier TEXT NOT NULL,
    action_type TEXT NOT NULL,
    target_type TEXT NOT NULL,
    target_id TEXT NOT NULL,
    actor_ip TEXT NOT NULL,

    details TEXT,

    recorded_at TEXT NOT NULL,

    prev_hash TEXT NOT NULL,
    entry_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_entries(recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_entries(actor_identifier);
CREATE INDEX IF NOT EXISTS idx_audit_action_type ON audit_entries(action_type);
CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_entries(target_type, target_id);
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
