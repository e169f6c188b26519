package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"calsync/engine"
	"calsync/engine/sqlite"
)

func newSyncTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestCoordinator wires a coordinator over a temp store and one mock
// provider named "mock". Backoff sleeps are recorded instead of slept.
func newTestCoordinator(t *testing.T, conflictDefault engine.Strategy) (*Coordinator, *sqlite.Store, *engine.MockProvider, *[]time.Duration) {
	t.Helper()
	store := newSyncTestStore(t)

	co := NewCoordinator(store, NewResolver(nil))
	var sleeps []time.Duration
	co.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	mock := engine.NewMockProvider()
	co.AddProvider(engine.ProviderConfig{
		Name:            "mock",
		Type:            "mock",
		Enabled:         true,
		ConflictDefault: conflictDefault,
	}, mock)

	return co, store, mock, &sleeps
}

func queueLocalEvent(t *testing.T, store *sqlite.Store, id, title string) *engine.CalendarEvent {
	t.Helper()
	ev := testLocalEvent(id, title)
	if err := store.SaveLocalEdit("mock", ev); err != nil {
		t.Fatalf("SaveLocalEdit() error = %v", err)
	}
	op := &engine.Operation{Provider: "mock", RecordID: id, Type: engine.OpCreate, Payload: ev}
	if err := store.Enqueue(op); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	return ev
}

func testLocalEvent(id, title string) *engine.CalendarEvent {
	start := time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)
	return &engine.CalendarEvent{
		ID:        id,
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
}

// seedSynced installs an event that both sides agree on, with the snapshot
// recording it as the last common state.
func seedSynced(t *testing.T, store *sqlite.Store, mock *engine.MockProvider, id, externalID string) *engine.CalendarEvent {
	t.Helper()
	ev := testLocalEvent(id, "Synced event")
	ev.ExternalID = externalID
	if err := store.PutEvent("mock", ev); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}
	if err := store.SaveSnapshot("mock", ev, time.Now()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	remote := ev.Clone()
	remote.LastModifiedRemote = time.Now()
	mock.SetRemote(*remote)
	return ev
}

func TestSyncRefusesWhileLeaseHeld(t *testing.T) {
	co, store, _, _ := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "New event")

	// Another process is mid-cycle against the same database.
	if err := store.AcquireSyncLease("other-process"); err != nil {
		t.Fatalf("AcquireSyncLease() error = %v", err)
	}

	if _, err := co.SyncProvider(context.Background(), "mock"); !errors.Is(err, sqlite.ErrLeaseHeld) {
		t.Errorf("SyncProvider() error = %v, want ErrLeaseHeld", err)
	}
	if _, err := co.SyncAll(context.Background()); !errors.Is(err, sqlite.ErrLeaseHeld) {
		t.Errorf("SyncAll() error = %v, want ErrLeaseHeld", err)
	}

	// The refused cycle touched nothing: the queue is intact.
	count, err := store.PendingCount("mock")
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("PendingCount() = %d, want the queued create untouched", count)
	}

	// Once the other process finishes, cycles run again.
	if err := store.ReleaseSyncLease("other-process"); err != nil {
		t.Fatalf("ReleaseSyncLease() error = %v", err)
	}
	result, err := co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncProvider() after release error = %v", err)
	}
	if result.EventsCreated != 1 {
		t.Errorf("EventsCreated = %d, want 1", result.EventsCreated)
	}
}

func TestSyncPushesQueuedCreate(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "New event")

	result, err := co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	if result.EventsCreated != 1 {
		t.Errorf("EventsCreated = %d, want 1", result.EventsCreated)
	}
	if mock.RemoteCount() != 1 {
		t.Errorf("RemoteCount() = %d, want 1", mock.RemoteCount())
	}

	// The assigned external id must land on the canonical record.
	got, err := store.GetEvent("ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if got.ExternalID == "" {
		t.Error("external id was not written back after push")
	}

	// The queue drained.
	count, err := store.PendingCount("mock")
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("PendingCount() = %d, want 0", count)
	}

	// And the record no longer reads as unsynced.
	unsynced, err := store.ListUnsynced("mock")
	if err != nil {
		t.Fatalf("ListUnsynced() error = %v", err)
	}
	if len(unsynced) != 0 {
		t.Errorf("ListUnsynced() = %v, want none", unsynced)
	}
}

func TestSyncRetriesTransientThenAcksOnce(t *testing.T) {
	co, store, mock, sleeps := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "Flaky push")

	mock.FailPushTimes(3, engine.NewProviderError("Push", engine.KindTransient, "rate limited").WithStatus(429))

	result, err := co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	if mock.PushCalls != 4 {
		t.Errorf("PushCalls = %d, want 3 failures + 1 success", mock.PushCalls)
	}
	if mock.RemoteCount() != 1 {
		t.Errorf("RemoteCount() = %d, want exactly 1 (no duplicate from retries)", mock.RemoteCount())
	}
	if result.EventsCreated != 1 {
		t.Errorf("EventsCreated = %d, want 1", result.EventsCreated)
	}

	// Exponential backoff: 1s, 2s, 4s.
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, (*sleeps)[i], d)
		}
	}

	count, _ := store.PendingCount("mock")
	if count != 0 {
		t.Errorf("PendingCount() = %d, want 0 after ack", count)
	}
}

func TestSyncDeadLettersValidationRejection(t *testing.T) {
	co, store, mock, sleeps := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "Rejected payload")

	mock.FailPush(engine.NewProviderError("Push", engine.KindValidation, "missing attendee email").WithStatus(422))

	result, err := co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncProvider() error = %v (validation failures are per-record, not fatal)", err)
	}

	if mock.PushCalls != 1 {
		t.Errorf("PushCalls = %d, want 1 (no retry of a rejected payload)", mock.PushCalls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", *sleeps)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("result.Errors = %v, want the rejection recorded", result.Errors)
	}

	letters, err := store.ListDeadLetters("mock")
	if err != nil {
		t.Fatalf("ListDeadLetters() error = %v", err)
	}
	if len(letters) != 1 || letters[0].RecordID != "ev-1" {
		t.Errorf("ListDeadLetters() = %v, want the rejected create", letters)
	}

	// The cycle still completed, so the cursor advanced.
	cursor, err := store.LastSyncTime("mock")
	if err != nil {
		t.Fatalf("LastSyncTime() error = %v", err)
	}
	if cursor.IsZero() {
		t.Error("cursor should advance; a validation rejection is not fatal")
	}
}

func TestSyncAuthErrorHaltsProviderOnly(t *testing.T) {
	store := newSyncTestStore(t)
	co := NewCoordinator(store, NewResolver(nil))
	co.sleep = func(time.Duration) {}

	broken := engine.NewMockProvider()
	broken.FailPush(engine.NewProviderError("Push", engine.KindAuth, "token expired").WithStatus(401))
	co.AddProvider(engine.ProviderConfig{Name: "broken", Type: "mock", Enabled: true}, broken)

	healthy := engine.NewMockProvider()
	co.AddProvider(engine.ProviderConfig{Name: "healthy", Type: "mock", Enabled: true}, healthy)

	for _, provider := range []string{"broken", "healthy"} {
		ev := testLocalEvent("ev-"+provider, "Event for "+provider)
		if err := store.SaveLocalEdit(provider, ev); err != nil {
			t.Fatalf("SaveLocalEdit() error = %v", err)
		}
		op := &engine.Operation{Provider: provider, RecordID: ev.ID, Type: engine.OpCreate, Payload: ev}
		if err := store.Enqueue(op); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	results, err := co.SyncAll(context.Background())
	if !engine.IsAuthErr(err) {
		t.Errorf("SyncAll() error = %v, want the auth failure surfaced", err)
	}
	if len(results) != 2 {
		t.Fatalf("SyncAll() = %d results, want one per provider", len(results))
	}

	// The healthy provider synced despite the other one halting.
	if healthy.RemoteCount() != 1 {
		t.Errorf("healthy RemoteCount() = %d, want 1", healthy.RemoteCount())
	}

	// The halted provider keeps its queue and cursor for the next attempt.
	count, _ := store.PendingCount("broken")
	if count != 1 {
		t.Errorf("broken PendingCount() = %d, want 1 (not consumed)", count)
	}
	brokenCursor, _ := store.LastSyncTime("broken")
	if !brokenCursor.IsZero() {
		t.Error("broken provider's cursor must not advance on a fatal cycle")
	}
	healthyCursor, _ := store.LastSyncTime("healthy")
	if healthyCursor.IsZero() {
		t.Error("healthy provider's cursor should advance")
	}

	// Auth failures never touch the retry budget.
	if broken.PushCalls != 1 {
		t.Errorf("broken PushCalls = %d, want 1", broken.PushCalls)
	}
}

func TestSyncPullAdoptsRemoteRecords(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)

	remote := testLocalEvent("remote-origin-id", "Remote appointment")
	remote.ExternalID = "ext-77"
	remote.LastModifiedRemote = time.Now()
	mock.SetRemote(*remote)

	result, err := co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}
	if result.EventsPulled != 1 {
		t.Errorf("EventsPulled = %d, want 1", result.EventsPulled)
	}

	events, err := store.ListEvents("mock")
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("ListEvents() = %d events, want 1", len(events))
	}
	adopted := events[0]
	if adopted.ExternalID != "ext-77" || adopted.Title != "Remote appointment" {
		t.Errorf("adopted = %+v, want the remote payload", adopted)
	}
	if adopted.ID == "remote-origin-id" {
		t.Error("adopted record should get its own local id")
	}

	// Snapshot seeded: a second cycle must not flag anything.
	result, err = co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("second SyncProvider() error = %v", err)
	}
	if result.ConflictsFound != 0 {
		t.Errorf("ConflictsFound = %d on an idle cycle, want 0", result.ConflictsFound)
	}
	events, _ = store.ListEvents("mock")
	if len(events) != 1 {
		t.Errorf("second cycle duplicated the record: %d events", len(events))
	}
}

func TestSyncAppliesRemoteOnlyChange(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	seedSynced(t, store, mock, "ev-1", "ext-1")

	edited, _ := mock.Remote("ext-1")
	edited.Title = "Retitled remotely"
	edited.LastModifiedRemote = time.Now().Add(time.Minute)
	mock.SetRemote(edited)

	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	got, err := store.GetEvent("ev-1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if got.Title != "Retitled remotely" {
		t.Errorf("Title = %q, want the remote edit applied", got.Title)
	}
	if got.ID != "ev-1" {
		t.Error("canonical id must survive a remote overwrite")
	}
}

func TestSyncPropagatesRemoteDeletion(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	seedSynced(t, store, mock, "ev-1", "ext-1")
	mock.RemoveRemote("ext-1")

	// Cursor is zero, so this is a full pull; deletions are detectable.
	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	if _, err := store.GetEvent("ev-1"); !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("GetEvent() error = %v, want ErrNotFound after deletion propagated", err)
	}
}

func TestSyncDeletionSkippedOnIncrementalPull(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	seedSynced(t, store, mock, "ev-1", "ext-1")

	// Advance the cursor so the next pull is incremental.
	if err := store.SetLastSyncTime("mock", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetLastSyncTime() error = %v", err)
	}
	mock.RemoveRemote("ext-1")

	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	// An incremental pull cannot distinguish deleted from unchanged, so
	// the local copy must survive.
	if _, err := store.GetEvent("ev-1"); err != nil {
		t.Errorf("GetEvent() error = %v, want the record kept on incremental pulls", err)
	}
}

func TestSyncDetectsAndDefersConflict(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	ev := seedSynced(t, store, mock, "ev-1", "ext-1")

	// Both sides diverge from the snapshot.
	local := ev.Clone()
	local.Title = "Local title"
	if err := store.PutEvent("mock", local); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}
	remote, _ := mock.Remote("ext-1")
	remote.Title = "Remote title"
	remote.LastModifiedRemote = time.Now().Add(time.Minute)
	mock.SetRemote(remote)

	result, err := co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}
	if result.ConflictsFound != 1 {
		t.Fatalf("ConflictsFound = %d, want 1", result.ConflictsFound)
	}

	// Deferred: both copies intact, conflict open.
	got, _ := store.GetEvent("ev-1")
	if got.Title != "Local title" {
		t.Errorf("deferred conflict must not touch the local copy, got %q", got.Title)
	}
	open, err := store.ListConflicts("mock", false)
	if err != nil {
		t.Fatalf("ListConflicts() error = %v", err)
	}
	if len(open) != 1 || open[0].Type != engine.ConflictContent {
		t.Fatalf("open conflicts = %v, want one content conflict", open)
	}

	// A second cycle must not duplicate the open conflict.
	result, err = co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("second SyncProvider() error = %v", err)
	}
	open, _ = store.ListConflicts("mock", false)
	if len(open) != 1 {
		t.Errorf("open conflicts after second cycle = %d, want still 1", len(open))
	}
}

func TestSyncAutoResolvesWithRemoteWins(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.RemoteWins)
	ev := seedSynced(t, store, mock, "ev-1", "ext-1")

	local := ev.Clone()
	local.Title = "Local title"
	if err := store.PutEvent("mock", local); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}
	remote, _ := mock.Remote("ext-1")
	remote.Title = "Remote title"
	remote.LastModifiedRemote = time.Now().Add(time.Minute)
	mock.SetRemote(remote)

	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	got, _ := store.GetEvent("ev-1")
	if got.Title != "Remote title" {
		t.Errorf("Title = %q, want the remote copy adopted", got.Title)
	}

	open, _ := store.ListConflicts("mock", false)
	if len(open) != 0 {
		t.Errorf("open conflicts = %v, want auto-resolved", open)
	}
	all, _ := store.ListConflicts("mock", true)
	if len(all) != 1 || all[0].Resolution != engine.RemoteWins {
		t.Errorf("conflict history = %v, want one remote_wins resolution", all)
	}
}

func TestSyncTimeConflictNeverAutoMerges(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Merge)
	ev := seedSynced(t, store, mock, "ev-1", "ext-1")

	local := ev.Clone()
	local.StartTime = local.StartTime.Add(time.Hour)
	if err := store.PutEvent("mock", local); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}
	remote, _ := mock.Remote("ext-1")
	remote.StartTime = remote.StartTime.Add(2 * time.Hour)
	remote.LastModifiedRemote = time.Now().Add(time.Minute)
	mock.SetRemote(remote)

	result, err := co.SyncProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}
	if result.ConflictsFound != 1 {
		t.Fatalf("ConflictsFound = %d, want 1", result.ConflictsFound)
	}

	// Merge has no answer for two different time ranges; the conflict
	// stays open instead of failing the cycle.
	open, _ := store.ListConflicts("mock", false)
	if len(open) != 1 || open[0].Type != engine.ConflictTime {
		t.Errorf("open conflicts = %v, want one open time conflict", open)
	}
}

func TestResolveConflictLocalWinsPushesBack(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	ev := seedSynced(t, store, mock, "ev-1", "ext-1")

	local := ev.Clone()
	local.Title = "Local title"
	if err := store.PutEvent("mock", local); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}
	remote, _ := mock.Remote("ext-1")
	remote.Title = "Remote title"
	remote.LastModifiedRemote = time.Now().Add(time.Minute)
	mock.SetRemote(remote)

	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}
	open, _ := store.ListConflicts("mock", false)
	if len(open) != 1 {
		t.Fatalf("open conflicts = %d, want 1", len(open))
	}

	if err := co.ResolveConflict(open[0].ID, engine.LocalWins); err != nil {
		t.Fatalf("ResolveConflict() error = %v", err)
	}

	// The decision is durable: a queued push, not a direct adapter call.
	count, _ := store.PendingCount("mock")
	if count != 1 {
		t.Fatalf("PendingCount() = %d, want the writeback queued", count)
	}

	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	pushed, ok := mock.Remote("ext-1")
	if !ok {
		t.Fatal("remote record disappeared")
	}
	if pushed.Title != "Local title" {
		t.Errorf("remote Title = %q, want the local copy pushed", pushed.Title)
	}

	// Already-resolved conflicts reject a second resolution.
	if err := co.ResolveConflict(open[0].ID, engine.RemoteWins); err == nil {
		t.Error("resolving a resolved conflict should fail")
	}
}

func TestFullSyncResetsCursor(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	seedSynced(t, store, mock, "ev-1", "ext-1")

	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}
	cursor, _ := store.LastSyncTime("mock")
	if cursor.IsZero() {
		t.Fatal("cursor should be set after a clean cycle")
	}

	// Remove the remote record; an incremental pull would miss it, a full
	// sync repairs the drift.
	mock.RemoveRemote("ext-1")
	if _, err := co.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}

	if _, err := store.GetEvent("ev-1"); !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("GetEvent() error = %v, want deletion detected by the full pull", err)
	}
}

func TestSyncDirectionLocalToRemoteSkipsPull(t *testing.T) {
	store := newSyncTestStore(t)
	co := NewCoordinator(store, NewResolver(nil))
	co.sleep = func(time.Duration) {}

	mock := engine.NewMockProvider()
	co.AddProvider(engine.ProviderConfig{
		Name:          "mock",
		Type:          "mock",
		Enabled:       true,
		SyncDirection: engine.LocalToRemote,
	}, mock)

	remote := testLocalEvent("r-1", "Remote only")
	remote.ExternalID = "ext-9"
	remote.LastModifiedRemote = time.Now()
	mock.SetRemote(*remote)

	if _, err := co.SyncProvider(context.Background(), "mock"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	if mock.PullCalls != 0 {
		t.Errorf("PullCalls = %d, want 0 for local_to_remote", mock.PullCalls)
	}
	events, _ := store.ListEvents("mock")
	if len(events) != 0 {
		t.Errorf("ListEvents() = %v, want nothing adopted", events)
	}
}

func TestSyncDisabledProviderSkipped(t *testing.T) {
	store := newSyncTestStore(t)
	co := NewCoordinator(store, NewResolver(nil))

	mock := engine.NewMockProvider()
	co.AddProvider(engine.ProviderConfig{Name: "mock", Type: "mock", Enabled: false}, mock)

	results, err := co.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("SyncAll() = %v, want no cycles for disabled providers", results)
	}
	if mock.PullCalls+mock.PushCalls != 0 {
		t.Error("disabled provider must never be called")
	}
}

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{9, 256 * time.Second},
		{10, 300 * time.Second},
		{50, 300 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffFor(tt.attempt); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
