package sqlite

import (
	"errors"
	"fmt"
	"time"
)

// LeaseStaleAfter bounds how long a crashed holder can block sync. A live
// holder refreshes the lease on every acquire, so only an abandoned lease
// ever ages past this.
const LeaseStaleAfter = 10 * time.Minute

// ErrLeaseHeld is returned when another process is already running a sync
// cycle against the same database.
var ErrLeaseHeld = errors.New("another sync is already running")

// AcquireSyncLease takes the sync lease for holder, refusing while a
// different live holder has it. The daemon, a manual CLI sync and a spawned
// background sync all share one database; the lease keeps their drain
// cycles from interleaving. Re-acquiring an own lease refreshes it, and a
// lease older than LeaseStaleAfter is treated as abandoned.
func (s *Store) AcquireSyncLease(holder string) error {
	// A single guarded upsert so two processes racing for a free lease
	// cannot both win.
	res, err := s.Exec(`
		INSERT INTO sync_lease (id, holder, acquired_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET holder = excluded.holder, acquired_at = excluded.acquired_at
		WHERE sync_lease.holder = excluded.holder OR sync_lease.acquired_at < ?
	`, holder, time.Now().Unix(), time.Now().Add(-LeaseStaleAfter).Unix())
	if err != nil {
		return fmt.Errorf("failed to acquire sync lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// ReleaseSyncLease frees the lease if holder still owns it. Releasing a
// lease that was taken over as stale is a no-op.
func (s *Store) ReleaseSyncLease(holder string) error {
	_, err := s.Exec("DELETE FROM sync_lease WHERE id = 1 AND holder = ?", holder)
	if err != nil {
		return fmt.Errorf("failed to release sync lease: %w", err)
	}
	return nil
}
