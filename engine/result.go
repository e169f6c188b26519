package engine

import "time"

// SyncError is one per-record failure captured during a sync cycle.
type SyncError struct {
	RecordID string `json:"record_id,omitempty"`
	Message  string `json:"message"`
}

// SyncResult is the append-only record of one sync cycle for one provider.
// The observability dashboard reads these for "last N syncs" rollups.
type SyncResult struct {
	Provider       string
	StartedAt      time.Time
	CompletedAt    time.Time
	EventsCreated  int
	EventsUpdated  int
	EventsDeleted  int
	EventsPulled   int
	ConflictsFound int
	Errors         []SyncError
}

// Failed reports whether the cycle recorded any per-record errors.
func (r *SyncResult) Failed() bool {
	return len(r.Errors) > 0
}

// Duration returns how long the cycle took.
func (r *SyncResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
