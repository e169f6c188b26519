package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calsync/engine"
	"calsync/engine/sqlite"

	"github.com/google/uuid"
)

// Retry tuning for outbox drain. Backoff doubles per attempt and is capped;
// an operation that exhausts its budget moves to the dead-letter view.
const (
	DefaultBatchSize = 50
	maxBackoff       = 300 * time.Second
	baseBackoff      = 1 * time.Second
)

// Coordinator runs full sync cycles: drain the outbox toward each provider,
// pull remote changes, detect and resolve conflicts, and record the outcome.
// It owns the only write path that touches both the store and the adapters;
// everything else (scheduler, CLI, daemon) goes through it. Cycles are
// serialized through a store lease, including across processes sharing the
// database: a second caller gets sqlite.ErrLeaseHeld instead of a
// concurrent drain.
type Coordinator struct {
	store    *sqlite.Store
	resolver *Resolver

	providers []*providerEntry

	maxAttempts int
	batchSize   int
	holder      string

	// sleep is replaced in tests so backoff does not slow the suite.
	sleep func(time.Duration)
}

type providerEntry struct {
	config  engine.ProviderConfig
	adapter engine.ProviderAdapter
}

// NewCoordinator creates a coordinator over the given store and resolver.
func NewCoordinator(store *sqlite.Store, resolver *Resolver) *Coordinator {
	return &Coordinator{
		store:       store,
		resolver:    resolver,
		maxAttempts: sqlite.DefaultMaxAttempts,
		batchSize:   DefaultBatchSize,
		holder:      uuid.NewString(),
		sleep:       time.Sleep,
	}
}

// SetBatchSize overrides how many outbox operations are drained per peek.
func (co *Coordinator) SetBatchSize(n int) {
	if n > 0 {
		co.batchSize = n
	}
}

// SetMaxAttempts overrides the dead-letter threshold for failing operations.
func (co *Coordinator) SetMaxAttempts(n int) {
	if n > 0 {
		co.maxAttempts = n
	}
}

// AddProvider registers a provider for sync cycles. Providers sync in
// registration order.
func (co *Coordinator) AddProvider(config engine.ProviderConfig, adapter engine.ProviderAdapter) {
	if config.Name == "" {
		config.Name = config.Type
	}
	co.providers = append(co.providers, &providerEntry{config: config, adapter: adapter})
}

// Providers returns the configs of all registered providers.
func (co *Coordinator) Providers() []engine.ProviderConfig {
	configs := make([]engine.ProviderConfig, 0, len(co.providers))
	for _, p := range co.providers {
		configs = append(configs, p.config)
	}
	return configs
}

func (co *Coordinator) entry(providerName string) (*providerEntry, error) {
	for _, p := range co.providers {
		if p.config.Name == providerName {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown provider: %s", providerName)
}

// SyncAll runs one sync cycle for every enabled provider. A failure in one
// provider (including an auth failure) never blocks the others; the first
// error is returned after all providers have run. Returns
// sqlite.ErrLeaseHeld without syncing anything when another process holds
// the lease.
func (co *Coordinator) SyncAll(ctx context.Context) ([]engine.SyncResult, error) {
	if err := co.store.AcquireSyncLease(co.holder); err != nil {
		return nil, err
	}
	defer func() { _ = co.store.ReleaseSyncLease(co.holder) }()

	var results []engine.SyncResult
	var firstErr error

	for _, p := range co.providers {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !p.config.Enabled {
			continue
		}
		result, err := co.syncProviderLocked(ctx, p.config.Name)
		if result != nil {
			results = append(results, *result)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// FullSync clears the incremental cursor for every provider and runs a
// complete cycle. Full pulls are also the only point where remote deletions
// are detected, so this doubles as the repair path after suspected drift.
func (co *Coordinator) FullSync(ctx context.Context) ([]engine.SyncResult, error) {
	for _, p := range co.providers {
		if !p.config.Enabled {
			continue
		}
		if err := co.store.SetLastSyncTime(p.config.Name, time.Time{}); err != nil {
			return nil, err
		}
	}
	return co.SyncAll(ctx)
}

// SyncProvider runs one cycle for a single provider: push queued local
// mutations, pull remote changes since the last cycle, reconcile, and append
// one SyncResult row. The incremental cursor advances only when the cycle
// finished without a fatal error, so a failed cycle is retried from the same
// point. Returns sqlite.ErrLeaseHeld when another process is mid-cycle.
func (co *Coordinator) SyncProvider(ctx context.Context, providerName string) (*engine.SyncResult, error) {
	if err := co.store.AcquireSyncLease(co.holder); err != nil {
		return nil, err
	}
	defer func() { _ = co.store.ReleaseSyncLease(co.holder) }()

	return co.syncProviderLocked(ctx, providerName)
}

func (co *Coordinator) syncProviderLocked(ctx context.Context, providerName string) (*engine.SyncResult, error) {
	p, err := co.entry(providerName)
	if err != nil {
		return nil, err
	}

	result := &engine.SyncResult{
		Provider:  providerName,
		StartedAt: time.Now(),
	}
	// Remote events modified while this cycle runs must not be skipped by
	// the next incremental pull, so the cursor is captured up front.
	cycleStart := time.Now()
	fatal := false

	direction := p.config.Direction()

	if direction == engine.Bidirectional || direction == engine.LocalToRemote {
		if haltErr := co.drainOutbox(ctx, p, result); haltErr != nil {
			fatal = true
			err = haltErr
		}
	}

	if !fatal && (direction == engine.Bidirectional || direction == engine.RemoteToLocal) {
		if pullErr := co.pullRemote(ctx, p, result); pullErr != nil {
			fatal = true
			err = pullErr
		}
	}

	if !fatal {
		if setErr := co.store.SetLastSyncTime(providerName, cycleStart); setErr != nil && err == nil {
			err = setErr
		}
	}

	result.CompletedAt = time.Now()
	if saveErr := co.store.AppendSyncResult(result); saveErr != nil && err == nil {
		err = saveErr
	}
	return result, err
}

// drainOutbox pushes queued operations to the provider in sequence order.
//
// Ordering matters per record, not across records: a failed operation parks
// every later operation for the same record this cycle, while unrelated
// records keep flowing. Transient failures retry in place with exponential
// backoff until the attempt budget dead-letters the operation. A validation
// rejection dead-letters immediately - the provider will keep rejecting the
// same payload. An auth failure halts the whole provider; nothing it queues
// can succeed until credentials are fixed.
func (co *Coordinator) drainOutbox(ctx context.Context, p *providerEntry, result *engine.SyncResult) error {
	skipRecords := make(map[string]bool)

	for {
		batch, err := co.store.PeekBatch(p.config.Name, co.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		progressed := false
		for i := range batch {
			op := &batch[i]
			if skipRecords[op.RecordID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := co.applyOperation(ctx, p, op, result); err != nil {
				if engine.IsAuthErr(err) {
					result.Errors = append(result.Errors, engine.SyncError{
						RecordID: op.RecordID,
						Message:  err.Error(),
					})
					return err
				}
				skipRecords[op.RecordID] = true
				result.Errors = append(result.Errors, engine.SyncError{
					RecordID: op.RecordID,
					Message:  err.Error(),
				})
				continue
			}
			progressed = true
		}

		if !progressed {
			// Everything left is parked behind a failed record.
			return nil
		}
	}
}

// applyOperation executes one queued mutation against the provider,
// retrying transient failures in place. On success the operation is acked;
// create/update operations also persist the external id and refresh the
// sync snapshot so the record no longer reads as unsynced.
func (co *Coordinator) applyOperation(ctx context.Context, p *providerEntry, op *engine.Operation, result *engine.SyncResult) error {
	attempts := op.Attempts

	for {
		err := co.executeOp(ctx, p, op, result)
		if err == nil {
			return co.store.Ack(op.ID)
		}

		if engine.IsAuthErr(err) {
			// Not counted against the retry budget; the operation is fine,
			// the credentials are not.
			return err
		}

		if engine.IsValidationErr(err) && !engine.IsNotFoundErr(err) {
			// Retrying a rejected payload cannot succeed; park it for
			// inspection without burning the retry budget.
			if dlErr := co.store.DeadLetter(op.ID, err); dlErr != nil {
				return dlErr
			}
			return err
		}

		deadLettered, failErr := co.store.Fail(op.ID, err, co.maxAttempts)
		if failErr != nil {
			return failErr
		}
		if deadLettered {
			return fmt.Errorf("operation %s moved to dead letters after %d attempts: %w", op.ID, attempts+1, err)
		}

		attempts++
		co.sleep(backoffFor(attempts))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}

func (co *Coordinator) executeOp(ctx context.Context, p *providerEntry, op *engine.Operation, result *engine.SyncResult) error {
	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout())
	defer cancel()

	switch op.Type {
	case engine.OpCreate, engine.OpUpdate:
		if op.Payload == nil {
			return fmt.Errorf("operation %s has no payload", op.ID)
		}
		ev := *op.Payload

		// A create that already carries an external id is a retry whose
		// previous attempt reached the provider; Push upserts in that case.
		externalID, err := p.adapter.Push(callCtx, ev)
		if err != nil {
			return err
		}
		created := ev.ExternalID == ""
		ev.ExternalID = externalID

		if err := co.persistPushed(p.config.Name, &ev); err != nil {
			return err
		}
		if created {
			result.EventsCreated++
		} else {
			result.EventsUpdated++
		}
		return nil

	case engine.OpDelete:
		externalID := ""
		if op.Payload != nil {
			externalID = op.Payload.ExternalID
		}
		if externalID != "" {
			err := p.adapter.Delete(callCtx, externalID)
			if err != nil && !engine.IsNotFoundErr(err) {
				return err
			}
		}
		// Never reached the provider, or already gone there; either way the
		// deletion has converged.
		if err := co.store.DeleteSnapshot(p.config.Name, op.RecordID); err != nil {
			return err
		}
		result.EventsDeleted++
		return nil

	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// persistPushed writes the externally-assigned id back onto the canonical
// record and snapshots the pushed state as the new sync base. The local row
// may have been edited or deleted since the operation was enqueued; a
// missing row means a delete is already queued behind this push.
func (co *Coordinator) persistPushed(providerName string, pushed *engine.CalendarEvent) error {
	current, err := co.store.GetEvent(pushed.ID)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		return err
	}
	if current != nil && current.ExternalID != pushed.ExternalID {
		current.ExternalID = pushed.ExternalID
		if err := co.store.PutEvent(providerName, current); err != nil {
			return err
		}
	}
	return co.store.SaveSnapshot(providerName, pushed, time.Now())
}

// pullRemote fetches remote changes since the last completed cycle and
// reconciles them with the local store. Remote deletions are only detectable
// on a full pull, when the provider returns its complete set.
func (co *Coordinator) pullRemote(ctx context.Context, p *providerEntry, result *engine.SyncResult) error {
	since, err := co.store.LastSyncTime(p.config.Name)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout())
	remote, err := p.adapter.Pull(callCtx, since)
	cancel()
	if err != nil {
		return err
	}
	result.EventsPulled = len(remote)

	locals, err := co.store.ListEvents(p.config.Name)
	if err != nil {
		return err
	}
	localByExternal := make(map[string]*engine.CalendarEvent, len(locals))
	for i := range locals {
		if locals[i].ExternalID != "" {
			localByExternal[locals[i].ExternalID] = &locals[i]
		}
	}

	seen := make(map[string]bool, len(remote))
	for i := range remote {
		if err := ctx.Err(); err != nil {
			return err
		}
		rev := &remote[i]
		seen[rev.ExternalID] = true

		local := localByExternal[rev.ExternalID]
		if local == nil {
			if err := co.adoptRemote(p.config.Name, rev); err != nil {
				result.Errors = append(result.Errors, engine.SyncError{Message: err.Error()})
			}
			continue
		}
		if err := co.reconcileRecord(p, local, rev, result); err != nil {
			result.Errors = append(result.Errors, engine.SyncError{
				RecordID: local.ID,
				Message:  err.Error(),
			})
		}
	}

	if since.IsZero() {
		for i := range locals {
			local := &locals[i]
			if local.ExternalID == "" || seen[local.ExternalID] {
				continue
			}
			if err := co.reconcileRecord(p, local, nil, result); err != nil {
				result.Errors = append(result.Errors, engine.SyncError{
					RecordID: local.ID,
					Message:  err.Error(),
				})
			}
		}
	}

	return nil
}

// adoptRemote inserts a remote-only record into the local store and seeds
// its sync snapshot so the next cycle sees it as clean.
func (co *Coordinator) adoptRemote(providerName string, rev *engine.CalendarEvent) error {
	local := rev.Clone()
	local.ID = uuid.NewString()
	if err := co.store.PutEvent(providerName, local); err != nil {
		return err
	}
	return co.store.SaveSnapshot(providerName, local, time.Now())
}

// reconcileRecord compares one local record against its remote counterpart
// (nil when the record vanished remotely on a full pull). One-sided changes
// apply directly; two-sided divergence produces a conflict, auto-resolved
// per the provider's configured default where that is safe.
func (co *Coordinator) reconcileRecord(p *providerEntry, local, remote *engine.CalendarEvent, result *engine.SyncResult) error {
	var base *engine.CalendarEvent
	snap, err := co.store.GetSnapshot(p.config.Name, local.ID)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		return err
	}
	if snap != nil {
		base = snap.Base
	}

	if c := Detect(p.config.Name, local, remote, base); c != nil {
		return co.handleConflict(p, c, result)
	}

	localChanged := len(engine.ChangedFields(base, local)) > 0

	if remote == nil {
		// Clean local copy of a remotely-deleted record; the deletion
		// propagates.
		if localChanged {
			return nil
		}
		if err := co.store.DeleteEvent(local.ID); err != nil {
			return err
		}
		return co.store.DeleteSnapshot(p.config.Name, local.ID)
	}

	remoteChanged := len(engine.ChangedFields(base, remote)) > 0
	if !remoteChanged {
		// Local-only change, or no change at all; the outbox handles it.
		return nil
	}
	if localChanged {
		// Both changed but the detector found no divergence: the edits
		// converged. Refresh the snapshot so neither side re-syncs.
		merged := local.Clone()
		merged.LastModifiedRemote = remote.LastModifiedRemote
		return co.store.SaveSnapshot(p.config.Name, merged, time.Now())
	}

	// Remote-only change: overwrite the local copy, keeping the canonical id.
	updated := remote.Clone()
	updated.ID = local.ID
	updated.LastModifiedLocal = local.LastModifiedLocal
	if err := co.store.PutEvent(p.config.Name, updated); err != nil {
		return err
	}
	return co.store.SaveSnapshot(p.config.Name, updated, time.Now())
}

// handleConflict records a newly detected conflict and applies the
// provider's default strategy where that can run unattended. Time conflicts
// under a merge default have no field union, so they stay open for the user
// instead of failing every cycle.
func (co *Coordinator) handleConflict(p *providerEntry, c *engine.Conflict, result *engine.SyncResult) error {
	open, err := co.store.OpenConflictExists(p.config.Name, c.RecordID)
	if err != nil {
		return err
	}
	if open {
		// Already waiting on the user; re-detecting it every cycle would
		// just pile up duplicates.
		return nil
	}

	if err := co.store.SaveConflict(c); err != nil {
		return err
	}
	result.ConflictsFound++

	strategy := p.config.Default()
	if strategy == engine.Defer {
		return nil
	}
	if strategy == engine.Merge && c.Type != engine.ConflictContent {
		return nil
	}

	resolution, err := co.resolver.Resolve(c, strategy)
	if err != nil {
		if errors.Is(err, ErrMergeAmbiguous) {
			return nil
		}
		return err
	}
	if resolution.Unresolved() {
		return nil
	}
	return co.applyResolution(p.config.Name, c, strategy, resolution)
}

// applyResolution performs the write-backs a resolution calls for and closes
// the conflict. The remote write-back goes through the outbox rather than
// straight to the adapter, so a crash or offline window between resolving
// and pushing cannot lose the decision.
func (co *Coordinator) applyResolution(providerName string, c *engine.Conflict, strategy engine.Strategy, res *Resolution) error {
	now := time.Now()

	if res.DeleteLocal {
		if err := co.store.DeleteEvent(c.RecordID); err != nil {
			return err
		}
		if err := co.store.DeleteSnapshot(providerName, c.RecordID); err != nil {
			return err
		}
		return co.store.MarkConflictResolved(c.ID, strategy, now)
	}

	if res.LocalWriteback {
		if err := co.store.PutEvent(providerName, res.Reconciled); err != nil {
			return err
		}
		if err := co.store.SaveSnapshot(providerName, res.Reconciled, now); err != nil {
			return err
		}
	}

	if res.RemoteWriteback {
		opType := engine.OpUpdate
		if res.Reconciled.ExternalID == "" {
			opType = engine.OpCreate
		}
		op := &engine.Operation{
			Provider:  providerName,
			RecordID:  c.RecordID,
			Type:      opType,
			Payload:   res.Reconciled,
			CreatedAt: now,
		}
		if err := co.store.Enqueue(op); err != nil {
			return err
		}
	}

	return co.store.MarkConflictResolved(c.ID, strategy, now)
}

// ResolveConflict applies an explicit user-chosen strategy to one open
// conflict. Merge may refuse (ambiguous or still-divergent fields); the
// conflict then stays open and the error says which fields need a choice.
func (co *Coordinator) ResolveConflict(conflictID string, strategy engine.Strategy) error {
	c, err := co.store.GetConflict(conflictID)
	if err != nil {
		return err
	}
	if c.Resolved() {
		return fmt.Errorf("conflict %s is already resolved (%s)", conflictID, c.Resolution)
	}

	resolution, err := co.resolver.Resolve(c, strategy)
	if err != nil {
		return err
	}
	if resolution.Unresolved() {
		return fmt.Errorf("merge cannot auto-resolve fields %v; choose local_wins or remote_wins", resolution.UnresolvedFields)
	}
	return co.applyResolution(c.Provider, c, strategy, resolution)
}

// ResolveConflicts applies one strategy to many conflicts. Each conflict is
// independent: a failure on one never blocks the rest. Returns how many
// resolved, plus the first error encountered.
func (co *Coordinator) ResolveConflicts(conflictIDs []string, strategy engine.Strategy) (int, error) {
	resolved := 0
	var firstErr error
	for _, id := range conflictIDs {
		if err := co.ResolveConflict(id, strategy); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		resolved++
	}
	return resolved, firstErr
}

// backoffFor returns the delay before retry n (1-based), doubling each time
// up to the cap.
func backoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 9 {
		return maxBackoff
	}
	d := baseBackoff << uint(attempt-1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
