package sqlite

// Schema version for migration management
const SchemaVersion = 1

// SQL statements for database schema creation

// EventsTableSQL creates the canonical local event store
const EventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL,
    external_id TEXT,
    title TEXT NOT NULL,
    start_time INTEGER,
    end_time INTEGER,
    description TEXT,
    location TEXT,
    attendees TEXT,
    local_modified_at INTEGER,
    remote_modified_at INTEGER
);
`

// SyncStateTableSQL creates the per-record sync snapshot table. base_payload
// holds the full canonical event JSON at the last successful sync; the
// detector compares both sides against it, so one-sided edits never flag.
const SyncStateTableSQL = `
CREATE TABLE IF NOT EXISTS sync_state (
    provider TEXT NOT NULL,
    record_id TEXT NOT NULL,
    external_id TEXT,
    last_synced_at INTEGER NOT NULL,
    remote_modified_at INTEGER,
    base_payload TEXT NOT NULL,

    PRIMARY KEY(provider, record_id)
);
`

// OutboxTableSQL creates the durable mutation queue. seq is the monotonic
// sequence number driving remote apply order; dead_letter holds exhausted
// operations for inspection instead of dropping them.
const OutboxTableSQL = `
CREATE TABLE IF NOT EXISTS outbox (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    provider TEXT NOT NULL,
    record_id TEXT NOT NULL,
    op TEXT NOT NULL CHECK(op IN ('create', 'update', 'delete')),
    payload TEXT,
    created_at INTEGER NOT NULL,
    attempts INTEGER DEFAULT 0,
    last_error TEXT,
    dead_letter INTEGER DEFAULT 0
);
`

// ConflictsTableSQL creates the conflict history table. Resolved rows are
// immutable; resolution/resolved_at are written exactly once.
const ConflictsTableSQL = `
CREATE TABLE IF NOT EXISTS conflicts (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL,
    record_id TEXT NOT NULL,
    conflict_type TEXT NOT NULL CHECK(conflict_type IN ('time', 'content', 'deletion')),
    local_payload TEXT,
    remote_payload TEXT,
    base_payload TEXT,
    detected_at INTEGER NOT NULL,
    resolution TEXT DEFAULT '',
    resolved_at INTEGER
);
`

// SyncResultsTableSQL creates the append-only sync cycle history
const SyncResultsTableSQL = `
CREATE TABLE IF NOT EXISTS sync_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    provider TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    completed_at INTEGER NOT NULL,
    events_created INTEGER DEFAULT 0,
    events_updated INTEGER DEFAULT 0,
    events_deleted INTEGER DEFAULT 0,
    events_pulled INTEGER DEFAULT 0,
    conflicts_found INTEGER DEFAULT 0,
    errors TEXT
);
`

// ProviderStateTableSQL creates per-provider sync state (lastSyncTime)
const ProviderStateTableSQL = `
CREATE TABLE IF NOT EXISTS provider_state (
    provider TEXT PRIMARY KEY,
    last_sync_time INTEGER
);
`

// SyncLeaseTableSQL creates the single-row sync lease table. Whichever
// process holds the row runs sync cycles; everyone else backs off.
const SyncLeaseTableSQL = `
CREATE TABLE IF NOT EXISTS sync_lease (
    id INTEGER PRIMARY KEY CHECK(id = 1),
    holder TEXT NOT NULL,
    acquired_at INTEGER NOT NULL
);
`

// SchemaVersionTableSQL creates the schema version table for migration tracking
const SchemaVersionTableSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// Index creation statements for common queries

// EventsIndexesSQL creates indexes on the events table
const EventsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_events_provider ON events(provider);
CREATE INDEX IF NOT EXISTS idx_events_external_id ON events(external_id);
CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time);
`

// OutboxIndexesSQL creates indexes on the outbox table
const OutboxIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_outbox_provider ON outbox(provider);
CREATE INDEX IF NOT EXISTS idx_outbox_record_id ON outbox(record_id);
CREATE INDEX IF NOT EXISTS idx_outbox_dead_letter ON outbox(dead_letter);
`

// ConflictsIndexesSQL creates indexes on the conflicts table
const ConflictsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_conflicts_provider ON conflicts(provider);
CREATE INDEX IF NOT EXISTS idx_conflicts_resolution ON conflicts(resolution);
`

// AllTableSchemas returns all table creation statements in order
func AllTableSchemas() []string {
	return []string{
		SchemaVersionTableSQL,
		EventsTableSQL,
		SyncStateTableSQL,
		OutboxTableSQL,
		ConflictsTableSQL,
		SyncResultsTableSQL,
		ProviderStateTableSQL,
		SyncLeaseTableSQL,
	}
}

// AllIndexes returns all index creation statements
func AllIndexes() []string {
	return []string{
		EventsIndexesSQL,
		OutboxIndexesSQL,
		ConflictsIndexesSQL,
	}
}

// PragmaStatements returns pragma statements to execute on database connection
func PragmaStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL", // Balance between safety and performance
	}
}
