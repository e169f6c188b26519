package sync

import (
	"errors"
	"fmt"

	"calsync/engine"
	"calsync/internal/policy"
)

// ErrMergeAmbiguous is returned when Merge is asked to combine values that
// have no field-level union, such as two different time ranges or a deleted
// remote record. The caller must fall back to an explicit LocalWins or
// RemoteWins choice.
var ErrMergeAmbiguous = errors.New("merge is ambiguous for this conflict; choose local_wins or remote_wins")

// Resolution is the outcome of applying a strategy to one conflict.
type Resolution struct {
	// Reconciled is the record both sides converge on. Nil when the
	// resolution deletes the local copy (RemoteWins on a deletion
	// conflict) or when fields remain unresolved.
	Reconciled *engine.CalendarEvent

	// LocalWriteback indicates the local store must be overwritten with
	// Reconciled. DeleteLocal indicates the local copy must be removed.
	LocalWriteback bool
	DeleteLocal    bool

	// RemoteWriteback indicates Reconciled must be pushed to the provider.
	RemoteWriteback bool

	// UnresolvedFields lists fields changed to different values on both
	// sides that Merge refused to auto-resolve. Non-empty means the
	// conflict stays open and needs an explicit strategy.
	UnresolvedFields []string
}

// Unresolved reports whether the merge left fields needing explicit choice.
func (r *Resolution) Unresolved() bool {
	return len(r.UnresolvedFields) > 0
}

// Resolver applies resolution strategies to detected conflicts. Merge
// behavior for attendee lists is policy-driven per provider.
type Resolver struct {
	policies map[string]*policy.MergePolicy
	fallback *policy.MergePolicy
}

// NewResolver creates a resolver. policies maps provider names to their
// merge policies; providers without one use the default policy.
func NewResolver(policies map[string]*policy.MergePolicy) *Resolver {
	if policies == nil {
		policies = map[string]*policy.MergePolicy{}
	}
	return &Resolver{
		policies: policies,
		fallback: policy.Default(),
	}
}

func (r *Resolver) policyFor(providerName string) *policy.MergePolicy {
	if p, ok := r.policies[providerName]; ok {
		return p
	}
	return r.fallback
}

// Resolve applies a strategy to a conflict and produces the reconciled
// record plus the write-backs needed to converge both sides. It never
// mutates the conflict; closing it is the caller's responsibility.
func (r *Resolver) Resolve(c *engine.Conflict, strategy engine.Strategy) (*Resolution, error) {
	switch strategy {
	case engine.LocalWins:
		return r.resolveLocalWins(c), nil
	case engine.RemoteWins:
		return r.resolveRemoteWins(c), nil
	case engine.Merge:
		return r.resolveMerge(c)
	case engine.Defer:
		return nil, fmt.Errorf("defer is not a resolution; pick local_wins, remote_wins or merge")
	default:
		return nil, fmt.Errorf("unknown conflict resolution strategy: %s", strategy)
	}
}

// resolveLocalWins keeps the local copy and schedules a push. For a deletion
// conflict the remote copy is gone, so the push recreates it; the external
// id is cleared so the adapter performs a create.
func (r *Resolver) resolveLocalWins(c *engine.Conflict) *Resolution {
	reconciled := c.Local.Clone()
	if c.Type == engine.ConflictDeletion {
		reconciled.ExternalID = ""
	}
	return &Resolution{
		Reconciled:      reconciled,
		RemoteWriteback: true,
	}
}

// resolveRemoteWins adopts the remote copy locally. For a deletion conflict
// that means deleting the local record.
func (r *Resolver) resolveRemoteWins(c *engine.Conflict) *Resolution {
	if c.Type == engine.ConflictDeletion {
		return &Resolution{
			DeleteLocal: true,
		}
	}
	return &Resolution{
		Reconciled:     c.Remote.Clone(),
		LocalWriteback: true,
	}
}

// resolveMerge performs a field-level three-way merge against the base
// snapshot. Fields changed on one side only adopt that side's value. Fields
// changed on both sides to different values are returned unresolved -
// silent last-write-wins on a genuinely double-edited field is the data-loss
// bug this engine exists to prevent.
func (r *Resolver) resolveMerge(c *engine.Conflict) (*Resolution, error) {
	if c.Type == engine.ConflictTime || c.Type == engine.ConflictDeletion {
		// Two different time ranges, or a side that no longer exists,
		// have no field union.
		return nil, ErrMergeAmbiguous
	}
	if c.Base == nil {
		return nil, ErrMergeAmbiguous
	}

	pol := r.policyFor(c.Provider)
	merged := c.Base.Clone()
	merged.ID = c.Local.ID
	merged.ExternalID = c.Local.ExternalID
	if merged.ExternalID == "" {
		merged.ExternalID = c.Remote.ExternalID
	}

	var unresolved []string
	fields := append(append([]string{}, engine.TimeFields...), engine.ContentFields...)
	for _, field := range fields {
		localChanged := !c.Base.FieldEqual(c.Local, field)
		remoteChanged := !c.Base.FieldEqual(c.Remote, field)

		switch {
		case localChanged && remoteChanged:
			if c.Local.FieldEqual(c.Remote, field) {
				applyField(merged, c.Local, field)
				continue
			}
			if field == engine.FieldAttendees && pol.UnionAttendees() {
				merged.Attendees = engine.UnionAttendees(c.Local.Attendees, c.Remote.Attendees)
				continue
			}
			unresolved = append(unresolved, field)
		case localChanged:
			applyField(merged, c.Local, field)
		case remoteChanged:
			applyField(merged, c.Remote, field)
		}
	}

	if len(unresolved) > 0 {
		return &Resolution{UnresolvedFields: unresolved}, nil
	}

	merged.LastModifiedLocal = c.Local.LastModifiedLocal
	merged.LastModifiedRemote = c.Remote.LastModifiedRemote

	return &Resolution{
		Reconciled:      merged,
		LocalWriteback:  true,
		RemoteWriteback: true,
	}, nil
}

func applyField(dst, src *engine.CalendarEvent, field string) {
	switch field {
	case engine.FieldTitle:
		dst.Title = src.Title
	case engine.FieldDescription:
		dst.Description = src.Description
	case engine.FieldLocation:
		dst.Location = src.Location
	case engine.FieldStartTime:
		dst.StartTime = src.StartTime
	case engine.FieldEndTime:
		dst.EndTime = src.EndTime
	case engine.FieldAttendees:
		dst.Attendees = append([]string(nil), src.Attendees...)
	}
}
