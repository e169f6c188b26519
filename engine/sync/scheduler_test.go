package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"calsync/engine"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// offlineMonitor returns a monitor that has observed an outage: its probe
// endpoint was shut down before the first check.
func offlineMonitor(t *testing.T) *Monitor {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	probeURL := server.URL
	server.Close()

	m := NewMonitor(probeURL, time.Hour)
	if status := m.CheckNow(context.Background()); status.Online {
		t.Fatalf("probe against a closed server reported online: %+v", status)
	}
	return m
}

func TestSchedulerTriggerRunsCycle(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "Queued while idle")

	monitor := NewMonitor("", 0) // no probe URL: assumed online
	s := NewScheduler(co, monitor)
	s.Start(context.Background())
	defer s.Stop()

	s.Trigger()
	waitFor(t, "the queued create to reach the provider", func() bool {
		return mock.RemoteCount() == 1
	})
	waitFor(t, "the scheduler to go idle", func() bool {
		return s.State() == StateIdle
	})

	s.Stop()
	if s.LastRun().IsZero() {
		t.Error("LastRun() is zero after a cycle ran")
	}
}

func TestSchedulerSkipsCycleWhileOffline(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "Queued offline")

	s := NewScheduler(co, offlineMonitor(t))
	s.Start(context.Background())

	s.Trigger()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	// Offline cycles are skipped entirely; the queue stays durable.
	if mock.PushCalls != 0 {
		t.Errorf("PushCalls = %d, want 0 while offline", mock.PushCalls)
	}
	count, err := store.PendingCount("mock")
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("PendingCount() = %d, want the operation kept", count)
	}
	if !s.LastRun().IsZero() {
		t.Error("LastRun() advanced for a skipped cycle")
	}
}

func TestSchedulerReconnectTriggersCatchUp(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "Queued during the outage")

	monitor := offlineMonitor(t)
	s := NewScheduler(co, monitor)
	s.Start(context.Background())
	defer s.Stop()

	// Connectivity returns; the reconnect subscription drains the queue
	// without an explicit trigger.
	revived := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer revived.Close()
	monitor.probeURL = revived.URL
	monitor.CheckNow(context.Background())

	waitFor(t, "the catch-up cycle to drain the queue", func() bool {
		return mock.RemoteCount() == 1
	})
}

func TestSchedulerDisabledAutoSyncIgnoresReconnect(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "Queued during the outage")

	monitor := offlineMonitor(t)
	s := NewScheduler(co, monitor)
	s.DisableAutoSync()
	s.Start(context.Background())
	defer s.Stop()

	revived := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer revived.Close()
	monitor.probeURL = revived.URL
	monitor.CheckNow(context.Background())

	time.Sleep(50 * time.Millisecond)
	if mock.RemoteCount() != 0 {
		t.Fatal("reconnect triggered a cycle despite auto-sync being disabled")
	}

	// An explicit trigger is the user asking; it runs regardless.
	s.Trigger()
	waitFor(t, "the explicit trigger to drain the queue", func() bool {
		return mock.RemoteCount() == 1
	})
}

func TestSchedulerEnableAutoSyncTriggersCatchUp(t *testing.T) {
	co, store, mock, _ := newTestCoordinator(t, engine.Defer)
	queueLocalEvent(t, store, "ev-1", "Queued while paused")

	s := NewScheduler(co, NewMonitor("", 0))
	s.DisableAutoSync()
	s.Start(context.Background())
	defer s.Stop()

	if s.AutoSyncEnabled() {
		t.Fatal("AutoSyncEnabled() = true after DisableAutoSync()")
	}

	// Turning auto-sync back on runs a catch-up cycle immediately rather
	// than waiting for the next interval tick.
	s.EnableAutoSync()
	if !s.AutoSyncEnabled() {
		t.Fatal("AutoSyncEnabled() = false after EnableAutoSync()")
	}
	waitFor(t, "the catch-up cycle to drain the queue", func() bool {
		return mock.RemoteCount() == 1
	})
}

func TestSchedulerIntervalPicksShortestEnabledFrequency(t *testing.T) {
	store := newSyncTestStore(t)
	co := NewCoordinator(store, NewResolver(nil))

	co.AddProvider(engine.ProviderConfig{
		Name: "slow", Type: "mock", Enabled: true, SyncFrequencyMinutes: 30,
	}, engine.NewMockProvider())
	co.AddProvider(engine.ProviderConfig{
		Name: "fast", Type: "mock", Enabled: true, SyncFrequencyMinutes: 5,
	}, engine.NewMockProvider())
	co.AddProvider(engine.ProviderConfig{
		Name: "off", Type: "mock", Enabled: false, SyncFrequencyMinutes: 1,
	}, engine.NewMockProvider())

	s := NewScheduler(co, NewMonitor("", 0))
	if s.interval != 5*time.Minute {
		t.Errorf("interval = %v, want the shortest enabled frequency (5m)", s.interval)
	}
}

func TestSchedulerTriggerCoalesces(t *testing.T) {
	co, _, _, _ := newTestCoordinator(t, engine.Defer)
	s := NewScheduler(co, NewMonitor("", 0))

	// Not started: triggers pile up against the buffer, which holds one.
	s.Trigger()
	s.Trigger()
	s.Trigger()

	if pending := len(s.triggerCh); pending != 1 {
		t.Errorf("pending triggers = %d, want a burst collapsed to 1", pending)
	}
}
