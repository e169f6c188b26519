package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calsync/engine"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps sql.DB with the durable local cache: canonical events, the
// sync snapshot table, the outbox, conflict history and sync results.
type Store struct {
	*sql.DB
	path string
}

// Open initializes the SQLite store with proper schema. With an empty
// customPath the database lives at the XDG-compliant location.
func Open(customPath string) (*Store, error) {
	dbPath, err := getDatabasePath(customPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		DB:   db,
		path: dbPath,
	}

	if err := store.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// getDatabasePath returns the path to the SQLite database file
// Priority: customPath > $XDG_DATA_HOME/calsync/calsync.db > ~/.local/share/calsync/calsync.db
func getDatabasePath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}

	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "calsync", "calsync.db"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".local", "share", "calsync", "calsync.db"), nil
}

// initializeSchema creates all tables, indexes, and sets pragmas
func (s *Store) initializeSchema() error {
	for _, pragma := range PragmaStatements() {
		if _, err := s.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}

	for _, schema := range AllTableSchemas() {
		if _, err := s.Exec(schema); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, index := range AllIndexes() {
		if _, err := s.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.recordSchemaVersion(); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return nil
}

// recordSchemaVersion records the current schema version in the database
func (s *Store) recordSchemaVersion() error {
	var count int
	err := s.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", SchemaVersion).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if count > 0 {
		return nil // Version already recorded
	}

	_, err = s.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		SchemaVersion,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}

	return nil
}

// GetSchemaVersion returns the current schema version from the database
func (s *Store) GetSchemaVersion() (int, error) {
	var version int
	err := s.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Path returns the filesystem path to the database file
func (s *Store) Path() string {
	return s.path
}

// --- Events ---

// PutEvent inserts or replaces a canonical event. The event's timestamps are
// written as-is; callers decide whether a write counts as a local edit.
func (s *Store) PutEvent(providerName string, ev *engine.CalendarEvent) error {
	attendees, err := marshalAttendees(ev.Attendees)
	if err != nil {
		return fmt.Errorf("failed to marshal attendees for %s: %w", ev.ID, err)
	}

	_, err = s.Exec(`
		INSERT INTO events (
			id, provider, external_id, title, start_time, end_time,
			description, location, attendees, local_modified_at, remote_modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			external_id = excluded.external_id,
			title = excluded.title,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			description = excluded.description,
			location = excluded.location,
			attendees = excluded.attendees,
			local_modified_at = excluded.local_modified_at,
			remote_modified_at = excluded.remote_modified_at
	`,
		ev.ID,
		providerName,
		nullString(ev.ExternalID),
		ev.Title,
		timeToNullInt64(ev.StartTime),
		timeToNullInt64(ev.EndTime),
		nullString(ev.Description),
		nullString(ev.Location),
		attendees,
		timeToNullInt64(ev.LastModifiedLocal),
		timeToNullInt64(ev.LastModifiedRemote),
	)
	if err != nil {
		return fmt.Errorf("failed to put event %s: %w", ev.ID, err)
	}
	return nil
}

// SaveLocalEdit persists a user mutation, stamping LastModifiedLocal now.
func (s *Store) SaveLocalEdit(providerName string, ev *engine.CalendarEvent) error {
	ev.LastModifiedLocal = time.Now()
	return s.PutEvent(providerName, ev)
}

// GetEvent returns the event with the given id, or ErrNotFound.
func (s *Store) GetEvent(id string) (*engine.CalendarEvent, error) {
	row := s.QueryRow(`
		SELECT id, external_id, title, start_time, end_time,
		       description, location, attendees, local_modified_at, remote_modified_at
		FROM events WHERE id = ?
	`, id)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return ev, nil
}

// DeleteEvent removes an event from the local store.
func (s *Store) DeleteEvent(id string) error {
	_, err := s.Exec("DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

// ListEvents returns all events scoped to one provider, ordered by start time.
func (s *Store) ListEvents(providerName string) ([]engine.CalendarEvent, error) {
	rows, err := s.Query(`
		SELECT id, external_id, title, start_time, end_time,
		       description, location, attendees, local_modified_at, remote_modified_at
		FROM events WHERE provider = ? ORDER BY start_time, id
	`, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []engine.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// ListUnsynced returns events modified locally since their last sync, plus
// events never synced at all.
func (s *Store) ListUnsynced(providerName string) ([]engine.CalendarEvent, error) {
	rows, err := s.Query(`
		SELECT e.id, e.external_id, e.title, e.start_time, e.end_time,
		       e.description, e.location, e.attendees, e.local_modified_at, e.remote_modified_at
		FROM events e
		LEFT JOIN sync_state ss ON ss.provider = e.provider AND ss.record_id = e.id
		WHERE e.provider = ?
		  AND (ss.record_id IS NULL OR COALESCE(e.local_modified_at, 0) > ss.last_synced_at)
		ORDER BY e.start_time, e.id
	`, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced events: %w", err)
	}
	defer rows.Close()

	var events []engine.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*engine.CalendarEvent, error) {
	var ev engine.CalendarEvent
	var externalID, description, location, attendees sql.NullString
	var startTime, endTime, localMod, remoteMod sql.NullInt64

	err := row.Scan(&ev.ID, &externalID, &ev.Title, &startTime, &endTime,
		&description, &location, &attendees, &localMod, &remoteMod)
	if err != nil {
		return nil, err
	}

	ev.ExternalID = externalID.String
	ev.Description = description.String
	ev.Location = location.String
	if attendees.Valid && attendees.String != "" {
		if err := json.Unmarshal([]byte(attendees.String), &ev.Attendees); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attendees: %w", err)
		}
	}
	ev.StartTime = nullInt64ToTime(startTime)
	ev.EndTime = nullInt64ToTime(endTime)
	ev.LastModifiedLocal = nullInt64ToTime(localMod)
	ev.LastModifiedRemote = nullInt64ToTime(remoteMod)
	return &ev, nil
}

// --- Sync snapshots ---

// Snapshot is the last common synchronized state for one (provider, record)
// pair. The detector compares both current copies against Base; divergence
// on both sides is what makes a conflict.
type Snapshot struct {
	Provider         string
	RecordID         string
	ExternalID       string
	LastSyncedAt     time.Time
	RemoteModifiedAt time.Time
	Base             *engine.CalendarEvent
}

// SaveSnapshot records the reconciled state of an event after a successful
// sync of that record.
func (s *Store) SaveSnapshot(providerName string, ev *engine.CalendarEvent, syncedAt time.Time) error {
	base, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", ev.ID, err)
	}

	_, err = s.Exec(`
		INSERT INTO sync_state (provider, record_id, external_id, last_synced_at, remote_modified_at, base_payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, record_id) DO UPDATE SET
			external_id = excluded.external_id,
			last_synced_at = excluded.last_synced_at,
			remote_modified_at = excluded.remote_modified_at,
			base_payload = excluded.base_payload
	`, providerName, ev.ID, nullString(ev.ExternalID), syncedAt.Unix(),
		timeToNullInt64(ev.LastModifiedRemote), string(base))
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", ev.ID, err)
	}
	return nil
}

// GetSnapshot returns the snapshot for a record, or ErrNotFound when the
// record has never completed a sync.
func (s *Store) GetSnapshot(providerName, recordID string) (*Snapshot, error) {
	var snap Snapshot
	var externalID sql.NullString
	var lastSynced int64
	var remoteMod sql.NullInt64
	var basePayload string

	err := s.QueryRow(`
		SELECT external_id, last_synced_at, remote_modified_at, base_payload
		FROM sync_state WHERE provider = ? AND record_id = ?
	`, providerName, recordID).Scan(&externalID, &lastSynced, &remoteMod, &basePayload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", recordID, err)
	}

	snap.Provider = providerName
	snap.RecordID = recordID
	snap.ExternalID = externalID.String
	snap.LastSyncedAt = time.Unix(lastSynced, 0)
	snap.RemoteModifiedAt = nullInt64ToTime(remoteMod)

	var base engine.CalendarEvent
	if err := json.Unmarshal([]byte(basePayload), &base); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", recordID, err)
	}
	snap.Base = &base

	return &snap, nil
}

// DeleteSnapshot removes the snapshot after a record is deleted on both sides.
func (s *Store) DeleteSnapshot(providerName, recordID string) error {
	_, err := s.Exec("DELETE FROM sync_state WHERE provider = ? AND record_id = ?", providerName, recordID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot for %s: %w", recordID, err)
	}
	return nil
}

// --- Provider state ---

// LastSyncTime returns the provider's last completed sync time, zero if never.
func (s *Store) LastSyncTime(providerName string) (time.Time, error) {
	var t sql.NullInt64
	err := s.QueryRow("SELECT last_sync_time FROM provider_state WHERE provider = ?", providerName).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}
	return nullInt64ToTime(t), nil
}

// SetLastSyncTime records the completion of a full provider cycle. Only the
// coordinator calls this, and only after a cycle with no fatal failure.
func (s *Store) SetLastSyncTime(providerName string, t time.Time) error {
	_, err := s.Exec(`
		INSERT INTO provider_state (provider, last_sync_time) VALUES (?, ?)
		ON CONFLICT(provider) DO UPDATE SET last_sync_time = excluded.last_sync_time
	`, providerName, timeToNullInt64(t))
	if err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}
	return nil
}

// --- Conflicts ---

// SaveConflict appends a newly detected conflict to the history.
func (s *Store) SaveConflict(c *engine.Conflict) error {
	local, err := marshalEvent(c.Local)
	if err != nil {
		return err
	}
	remote, err := marshalEvent(c.Remote)
	if err != nil {
		return err
	}
	base, err := marshalEvent(c.Base)
	if err != nil {
		return err
	}

	_, err = s.Exec(`
		INSERT INTO conflicts (id, provider, record_id, conflict_type, local_payload, remote_payload, base_payload, detected_at, resolution, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Provider, c.RecordID, string(c.Type), local, remote, base,
		c.DetectedAt.Unix(), string(c.Resolution), timeToNullInt64(c.ResolvedAt))
	if err != nil {
		return fmt.Errorf("failed to save conflict %s: %w", c.ID, err)
	}
	return nil
}

// MarkConflictResolved closes an open conflict. Resolved conflicts are
// immutable; resolving twice is an error.
func (s *Store) MarkConflictResolved(id string, resolution engine.Strategy, at time.Time) error {
	res, err := s.Exec(`
		UPDATE conflicts SET resolution = ?, resolved_at = ?
		WHERE id = ? AND resolution = ''
	`, string(resolution), at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("conflict %s is missing or already resolved", id)
	}
	return nil
}

// GetConflict returns one conflict by id, or ErrNotFound.
func (s *Store) GetConflict(id string) (*engine.Conflict, error) {
	row := s.QueryRow(`
		SELECT id, provider, record_id, conflict_type, local_payload, remote_payload, base_payload, detected_at, resolution, resolved_at
		FROM conflicts WHERE id = ?
	`, id)
	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// ListConflicts returns conflicts for a provider (all providers when empty),
// open ones only unless includeResolved is set. Newest first.
func (s *Store) ListConflicts(providerName string, includeResolved bool) ([]engine.Conflict, error) {
	query := `
		SELECT id, provider, record_id, conflict_type, local_payload, remote_payload, base_payload, detected_at, resolution, resolved_at
		FROM conflicts WHERE 1=1`
	var args []any
	if providerName != "" {
		query += " AND provider = ?"
		args = append(args, providerName)
	}
	if !includeResolved {
		query += " AND resolution = ''"
	}
	query += " ORDER BY detected_at DESC, id"

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []engine.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, *c)
	}
	return conflicts, rows.Err()
}

// OpenConflictExists reports whether an unresolved conflict is already on
// file for a record, so repeated pulls do not duplicate conflicts.
func (s *Store) OpenConflictExists(providerName, recordID string) (bool, error) {
	var count int
	err := s.QueryRow(`
		SELECT COUNT(*) FROM conflicts
		WHERE provider = ? AND record_id = ? AND resolution = ''
	`, providerName, recordID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check open conflicts: %w", err)
	}
	return count > 0, nil
}

func scanConflict(row rowScanner) (*engine.Conflict, error) {
	var c engine.Conflict
	var conflictType, resolution string
	var local, remote, base sql.NullString
	var detectedAt int64
	var resolvedAt sql.NullInt64

	err := row.Scan(&c.ID, &c.Provider, &c.RecordID, &conflictType,
		&local, &remote, &base, &detectedAt, &resolution, &resolvedAt)
	if err != nil {
		return nil, err
	}

	c.Type = engine.ConflictType(conflictType)
	c.Resolution = engine.Strategy(resolution)
	c.DetectedAt = time.Unix(detectedAt, 0)
	c.ResolvedAt = nullInt64ToTime(resolvedAt)

	if c.Local, err = unmarshalEvent(local); err != nil {
		return nil, err
	}
	if c.Remote, err = unmarshalEvent(remote); err != nil {
		return nil, err
	}
	if c.Base, err = unmarshalEvent(base); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Sync results ---

// AppendSyncResult records the outcome of one sync cycle.
func (s *Store) AppendSyncResult(r *engine.SyncResult) error {
	errorsJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal sync errors: %w", err)
	}

	_, err = s.Exec(`
		INSERT INTO sync_results (provider, started_at, completed_at, events_created, events_updated, events_deleted, events_pulled, conflicts_found, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Provider, r.StartedAt.Unix(), r.CompletedAt.Unix(),
		r.EventsCreated, r.EventsUpdated, r.EventsDeleted, r.EventsPulled,
		r.ConflictsFound, string(errorsJSON))
	if err != nil {
		return fmt.Errorf("failed to append sync result: %w", err)
	}
	return nil
}

// RecentSyncResults returns the last n sync cycles, newest first.
func (s *Store) RecentSyncResults(n int) ([]engine.SyncResult, error) {
	rows, err := s.Query(`
		SELECT provider, started_at, completed_at, events_created, events_updated, events_deleted, events_pulled, conflicts_found, errors
		FROM sync_results ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync results: %w", err)
	}
	defer rows.Close()

	var results []engine.SyncResult
	for rows.Next() {
		var r engine.SyncResult
		var started, completed int64
		var errorsJSON sql.NullString
		err := rows.Scan(&r.Provider, &started, &completed, &r.EventsCreated,
			&r.EventsUpdated, &r.EventsDeleted, &r.EventsPulled, &r.ConflictsFound, &errorsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync result: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		r.CompletedAt = time.Unix(completed, 0)
		if errorsJSON.Valid && errorsJSON.String != "" {
			if err := json.Unmarshal([]byte(errorsJSON.String), &r.Errors); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sync errors: %w", err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Stats and maintenance ---

// Stats holds storage statistics for the observability surface.
type Stats struct {
	TotalEvents      int
	UnsyncedEvents   int
	QueueSize        int
	DeadLetters      int
	OpenConflicts    int
	StorageSizeBytes int64
}

// GetStats returns current storage statistics.
func (s *Store) GetStats() (Stats, error) {
	stats := Stats{}

	err := s.QueryRow("SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents)
	if err != nil {
		return stats, fmt.Errorf("failed to count events: %w", err)
	}

	err = s.QueryRow(`
		SELECT COUNT(*) FROM events e
		LEFT JOIN sync_state ss ON ss.provider = e.provider AND ss.record_id = e.id
		WHERE ss.record_id IS NULL OR COALESCE(e.local_modified_at, 0) > ss.last_synced_at
	`).Scan(&stats.UnsyncedEvents)
	if err != nil {
		return stats, fmt.Errorf("failed to count unsynced events: %w", err)
	}

	err = s.QueryRow("SELECT COUNT(*) FROM outbox WHERE dead_letter = 0").Scan(&stats.QueueSize)
	if err != nil {
		return stats, fmt.Errorf("failed to count queue: %w", err)
	}

	err = s.QueryRow("SELECT COUNT(*) FROM outbox WHERE dead_letter = 1").Scan(&stats.DeadLetters)
	if err != nil {
		return stats, fmt.Errorf("failed to count dead letters: %w", err)
	}

	err = s.QueryRow("SELECT COUNT(*) FROM conflicts WHERE resolution = ''").Scan(&stats.OpenConflicts)
	if err != nil {
		return stats, fmt.Errorf("failed to count open conflicts: %w", err)
	}

	fileInfo, err := os.Stat(s.path)
	if err == nil {
		stats.StorageSizeBytes = fileInfo.Size()
	}

	return stats, nil
}

// ClearOfflineData wipes cached events, snapshots and the pending queue.
// Dead-lettered operations are kept for inspection unless includeDeadLetters
// is set; they are never silently discarded.
func (s *Store) ClearOfflineData(includeDeadLetters bool) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		"DELETE FROM events",
		"DELETE FROM sync_state",
		"DELETE FROM provider_state",
		"DELETE FROM outbox WHERE dead_letter = 0",
	}
	if includeDeadLetters {
		stmts[3] = "DELETE FROM outbox"
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to clear offline data: %w", err)
		}
	}

	return tx.Commit()
}

// Vacuum runs VACUUM to optimize the database.
func (s *Store) Vacuum() error {
	_, err := s.Exec("VACUUM")
	return err
}

// --- helpers ---

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func timeToNullInt64(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullInt64ToTime(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}

// Attendee values may themselves contain separator characters, so the list
// is stored as JSON rather than a joined string.
func marshalAttendees(attendees []string) (sql.NullString, error) {
	if len(attendees) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(attendees)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal attendees: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func marshalEvent(ev *engine.CalendarEvent) (sql.NullString, error) {
	if ev == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalEvent(v sql.NullString) (*engine.CalendarEvent, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var ev engine.CalendarEvent
	if err := json.Unmarshal([]byte(v.String), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &ev, nil
}
