package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMonitorOptimisticBeforeProbe(t *testing.T) {
	m := NewMonitor("", 0)

	if !m.IsOnline() {
		t.Error("IsOnline() = false before any probe, want optimistic true")
	}
	status := m.Status()
	if status.ConnectionType != "assumed" {
		t.Errorf("ConnectionType = %q, want assumed", status.ConnectionType)
	}

	// Without a probe URL there is nothing to check; the status must not
	// flip to offline.
	status = m.CheckNow(context.Background())
	if !status.Online || status.ConnectionType != "assumed" {
		t.Errorf("CheckNow() without probe URL = %+v, want the assumed status unchanged", status)
	}
}

func TestCheckNowClassifiesConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	m := NewMonitor(server.URL, 0)

	status := m.CheckNow(context.Background())
	if !status.Online {
		t.Fatalf("CheckNow() against a live server = %+v, want online", status)
	}
	if status.ConnectionType != "http-probe" || status.EffectiveType != "fast" {
		t.Errorf("classification = %s/%s, want http-probe/fast", status.ConnectionType, status.EffectiveType)
	}
	if status.RoundTripTime <= 0 {
		t.Error("RoundTripTime not measured")
	}
	if status.Reason != "" {
		t.Errorf("Reason = %q, want empty while online", status.Reason)
	}

	// Kill the endpoint; the next probe flips offline with a reason.
	server.Close()
	status = m.CheckNow(context.Background())
	if status.Online {
		t.Fatalf("CheckNow() against a closed server = %+v, want offline", status)
	}
	if status.ConnectionType != "none" || status.EffectiveType != "offline" {
		t.Errorf("classification = %s/%s, want none/offline", status.ConnectionType, status.EffectiveType)
	}
	if status.Reason == "" {
		t.Error("offline status should carry a reason")
	}
	if m.IsOnline() {
		t.Error("IsOnline() = true after an offline probe")
	}
}

func TestCheckNowFlagsSlowConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	m := NewMonitor(server.URL, 0)
	m.slowThreshold = time.Nanosecond // any real round trip exceeds this

	status := m.CheckNow(context.Background())
	if !status.Online || !status.SlowConnection {
		t.Fatalf("CheckNow() = %+v, want online and slow", status)
	}
	if status.EffectiveType != "slow" {
		t.Errorf("EffectiveType = %q, want slow", status.EffectiveType)
	}
}

func TestSubscribeFiresOnTransitionsOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	m := NewMonitor(server.URL, 0)

	var changes []StatusChange
	m.Subscribe(func(c StatusChange) { changes = append(changes, c) })

	ctx := context.Background()

	// Already assumed online; a confirming probe is not a transition.
	m.CheckNow(ctx)
	if len(changes) != 0 {
		t.Fatalf("listener fired on a non-transition: %v", changes)
	}

	server.Close()
	m.CheckNow(ctx) // online -> offline
	m.CheckNow(ctx) // still offline, no event

	if len(changes) != 1 || changes[0].Online {
		t.Fatalf("changes = %v, want exactly one offline transition", changes)
	}

	// Bring connectivity back under a fresh endpoint.
	revived := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer revived.Close()
	m.probeURL = revived.URL

	m.CheckNow(ctx) // offline -> online
	if len(changes) != 2 || !changes[1].Online {
		t.Fatalf("changes = %v, want an online transition appended", changes)
	}
}

func TestMonitorStartProbesPeriodically(t *testing.T) {
	probes := make(chan struct{}, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case probes <- struct{}{}:
		default:
		}
	}))
	defer server.Close()

	m := NewMonitor(server.URL, 10*time.Millisecond)
	m.Start(context.Background())
	defer m.Stop()

	// One immediate probe plus at least one tick.
	for i := 0; i < 2; i++ {
		select {
		case <-probes:
		case <-time.After(2 * time.Second):
			t.Fatalf("probe %d never arrived", i+1)
		}
	}

	m.Stop()
	if m.Status().CheckedAt.IsZero() {
		t.Error("CheckedAt not stamped by the probe loop")
	}
}
