package audit

// SchemaVersion is the current audit database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS cleanup_runs (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    trigger_kind TEXT NOT NULL,
    mode TEXT NOT NULL,
    category TEXT,

    deleted_count INTEGER NOT NULL,
    archived_count INTEGER NOT NULL,
    storage_freed_bytes INTEGER NOT NULL,

    -- JSON encoded
    per_category TEXT NOT NULL,
    errors TEXT NOT NULL,
    notes TEXT NOT NULL,

    archival_suppressed BOOLEAN NOT NULL,
    aborted BOOLEAN NOT NULL,

    start_time INTEGER NOT NULL,
    end_time INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cleanup_runs_start_time ON cleanup_runs(start_time);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the newest schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`
