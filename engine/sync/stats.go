package sync

import (
	"time"

	"calsync/engine"
	"calsync/engine/sqlite"
)

// StatusSnapshot is a point-in-time view of the whole sync surface, built
// for status displays: connectivity, queue depth, open conflicts, the last
// few cycles and their errors, and local storage footprint.
type StatusSnapshot struct {
	CapturedAt time.Time

	IsOnline   bool
	Network    NetStatus
	IsSyncing  bool
	AutoSync   bool
	LastSyncAt time.Time

	PendingOperations int
	DeadLetters       int
	OpenConflicts     int
	UnsyncedEvents    int
	TotalEvents       int
	StorageSizeBytes  int64

	RecentResults []engine.SyncResult
}

// SyncErrors flattens the per-record errors of the recent cycles, newest
// cycle first.
func (s *StatusSnapshot) SyncErrors() []engine.SyncError {
	var errs []engine.SyncError
	for _, r := range s.RecentResults {
		errs = append(errs, r.Errors...)
	}
	return errs
}

// BuildSnapshot assembles a status snapshot from the store, the monitor and
// (optionally) the scheduler. A nil scheduler reports not-syncing, for
// one-shot CLI invocations that have no loop running.
func BuildSnapshot(store *sqlite.Store, monitor *Monitor, scheduler *Scheduler) (*StatusSnapshot, error) {
	stats, err := store.GetStats()
	if err != nil {
		return nil, err
	}
	recent, err := store.RecentSyncResults(5)
	if err != nil {
		return nil, err
	}

	snap := &StatusSnapshot{
		CapturedAt:        time.Now(),
		IsOnline:          monitor.IsOnline(),
		Network:           monitor.Status(),
		PendingOperations: stats.QueueSize,
		DeadLetters:       stats.DeadLetters,
		OpenConflicts:     stats.OpenConflicts,
		UnsyncedEvents:    stats.UnsyncedEvents,
		TotalEvents:       stats.TotalEvents,
		StorageSizeBytes:  stats.StorageSizeBytes,
		RecentResults:     recent,
	}
	if scheduler != nil {
		snap.IsSyncing = scheduler.State() == StateSyncing
		snap.AutoSync = scheduler.AutoSyncEnabled()
		snap.LastSyncAt = scheduler.LastRun()
	}
	return snap, nil
}
