package engine

import "time"

// OpType identifies the kind of queued mutation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Operation is one entry in the durable outbox. Immutable once enqueued
// except for Attempts/LastError, which the queue mutates on failed sync
// attempts. An operation that exceeds its retry budget is moved to the
// dead-letter view, never silently dropped.
type Operation struct {
	ID        string         // uuid assigned at enqueue
	Seq       int64          // monotonic sequence number, drives remote apply order
	Provider  string         // provider name this mutation targets
	RecordID  string         // canonical event ID
	Type      OpType         // create, update or delete
	Payload   *CalendarEvent // event snapshot; deletes carry the last known copy so the external id survives local removal
	CreatedAt time.Time
	Attempts  int
	LastError string
}

// Conflict records a detected divergence between local and remote copies of
// the same logical record since their last common synchronized state.
// Resolved conflicts are immutable history; resolutions are appended, never
// overwritten.
type Conflict struct {
	ID         string
	Provider   string
	RecordID   string
	Type       ConflictType
	Local      *CalendarEvent // nil for a remote-only side
	Remote     *CalendarEvent // nil when the record vanished remotely
	Base       *CalendarEvent // snapshot at last successful sync
	DetectedAt time.Time
	Resolution Strategy // empty while unresolved
	ResolvedAt time.Time
}

// Resolved reports whether this conflict has been closed.
func (c *Conflict) Resolved() bool {
	return c.Resolution != ""
}

// ConflictType classifies the divergence between local and remote copies.
type ConflictType string

const (
	ConflictTime     ConflictType = "time"     // start or end time diverged
	ConflictContent  ConflictType = "content"  // title, description, location or attendees diverged
	ConflictDeletion ConflictType = "deletion" // previously-synced record vanished remotely
)

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	LocalWins  Strategy = "local_wins"  // keep local copy, push to provider
	RemoteWins Strategy = "remote_wins" // keep remote copy, overwrite local
	Merge      Strategy = "merge"       // field-level three-way merge
	Defer      Strategy = "defer"       // hold for explicit user choice
)

// ValidStrategy reports whether s names a known resolution strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case LocalWins, RemoteWins, Merge, Defer:
		return true
	}
	return false
}
