package sync

import (
	"time"

	"calsync/engine"

	"github.com/google/uuid"
)

// Detect compares the local and remote copies of one record against their
// last common synchronized state and classifies any divergence.
//
// The base snapshot is the core correctness rule: a conflict exists only
// when BOTH sides changed since the last sync. Comparing raw current values
// would falsely flag every routine one-sided edit.
//
// Returns nil when the sides agree, or when only one side moved (one-sided
// edits are handled by the normal push/pull paths, not the resolver).
func Detect(providerName string, local, remote, base *engine.CalendarEvent) *engine.Conflict {
	if local == nil {
		// Remote-only record; the pull path inserts it, nothing to resolve.
		return nil
	}

	localChanged := len(engine.ChangedFields(base, local)) > 0

	if remote == nil {
		// Previously-synced record vanished from the provider. Only a
		// conflict if we also changed it locally; otherwise the deletion
		// simply propagates.
		if base == nil || local.ExternalID == "" || !localChanged {
			return nil
		}
		return newConflict(providerName, engine.ConflictDeletion, local, nil, base)
	}

	remoteChanged := len(engine.ChangedFields(base, remote)) > 0
	if !localChanged || !remoteChanged {
		return nil
	}

	// Both sides moved. If they happen to agree field-for-field the edits
	// converged and there is nothing to resolve.
	diverged := engine.ChangedFields(local, remote)
	if len(diverged) == 0 {
		return nil
	}

	for _, field := range diverged {
		if field == engine.FieldStartTime || field == engine.FieldEndTime {
			return newConflict(providerName, engine.ConflictTime, local, remote, base)
		}
	}
	return newConflict(providerName, engine.ConflictContent, local, remote, base)
}

func newConflict(providerName string, t engine.ConflictType, local, remote, base *engine.CalendarEvent) *engine.Conflict {
	return &engine.Conflict{
		ID:         uuid.NewString(),
		Provider:   providerName,
		RecordID:   local.ID,
		Type:       t,
		Local:      local.Clone(),
		Remote:     remote.Clone(),
		Base:       base.Clone(),
		DetectedAt: time.Now(),
	}
}
