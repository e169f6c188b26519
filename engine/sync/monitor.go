package sync

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Default probe tuning.
const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
	DefaultSlowThreshold = 2 * time.Second
)

// NetStatus is the current connectivity classification.
type NetStatus struct {
	Online         bool
	ConnectionType string // "http-probe" while probing, "none" when offline, "assumed" before the first probe
	EffectiveType  string // "fast", "slow" or "offline"
	RoundTripTime  time.Duration
	SlowConnection bool
	Reason         string // human-readable offline reason, empty when online
	CheckedAt      time.Time
}

// StatusChange is delivered to subscribers on Online<->Offline transitions.
type StatusChange struct {
	Online bool
	At     time.Time
}

// Monitor observes connectivity by probing a well-known endpoint. It is pure
// observation: no queue or store mutation happens here. When no probe has
// run yet the monitor reports online (optimistic), letting sync attempts
// fail fast instead of blocking the user permanently.
type Monitor struct {
	probeURL      string
	interval      time.Duration
	slowThreshold time.Duration
	client        *http.Client

	mu        sync.Mutex
	status    NetStatus
	listeners []func(StatusChange)
	cancel    context.CancelFunc
}

// NewMonitor creates a monitor probing probeURL every interval. A zero
// interval uses the default.
func NewMonitor(probeURL string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		probeURL:      probeURL,
		interval:      interval,
		slowThreshold: DefaultSlowThreshold,
		client: &http.Client{
			Timeout: DefaultProbeTimeout,
		},
		status: NetStatus{
			Online:         true,
			ConnectionType: "assumed",
			EffectiveType:  "fast",
		},
	}
}

// IsOnline returns the last observed connectivity, optimistically true
// before the first probe.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.Online
}

// Status returns the full connectivity classification.
func (m *Monitor) Status() NetStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers a listener for Online<->Offline transitions.
// Listeners run on the monitor's probe goroutine and must not block; they
// should only schedule work (e.g. trigger a sync), never perform it.
func (m *Monitor) Subscribe(fn func(StatusChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start begins periodic probing until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.CheckNow(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckNow(ctx)
			}
		}
	}()
}

// Stop halts periodic probing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CheckNow performs one probe immediately and returns the new status.
// With no probe URL configured the platform signal is unavailable; the
// monitor stays optimistic and reports online.
func (m *Monitor) CheckNow(ctx context.Context) NetStatus {
	if m.probeURL == "" {
		return m.Status()
	}

	start := time.Now()
	online, reason := m.probe(ctx)
	rtt := time.Since(start)

	status := NetStatus{
		Online:         online,
		RoundTripTime:  rtt,
		SlowConnection: online && rtt >= m.slowThreshold,
		Reason:         reason,
		CheckedAt:      time.Now(),
	}
	switch {
	case !online:
		status.ConnectionType = "none"
		status.EffectiveType = "offline"
	case status.SlowConnection:
		status.ConnectionType = "http-probe"
		status.EffectiveType = "slow"
	default:
		status.ConnectionType = "http-probe"
		status.EffectiveType = "fast"
	}

	m.setStatus(status)
	return status
}

func (m *Monitor) probe(ctx context.Context) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		// Bad probe URL is a configuration problem, not an outage.
		return true, ""
	}

	resp, err := m.client.Do(req)
	if err == nil {
		resp.Body.Close()
		return true, ""
	}

	// Analyze the error to determine the offline reason.
	switch {
	case isDNSError(err):
		return false, "DNS resolution failed"
	case isConnectionRefused(err):
		return false, "Connection refused"
	case isTimeout(err):
		return false, "Connection timeout"
	case isNetworkError(err):
		return false, "Network unreachable"
	default:
		// Unknown error - assume online but endpoint issue.
		return true, ""
	}
}

func (m *Monitor) setStatus(status NetStatus) {
	m.mu.Lock()
	transition := m.status.Online != status.Online
	m.status = status
	listeners := append([]func(StatusChange){}, m.listeners...)
	m.mu.Unlock()

	if !transition {
		return
	}
	change := StatusChange{Online: status.Online, At: status.CheckedAt}
	for _, fn := range listeners {
		fn(change)
	}
}

// isNetworkError checks if error is a network error
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// isDNSError checks if error is a DNS resolution error
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefused checks if error is connection refused
func isConnectionRefused(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// isTimeout checks if error is a timeout
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}
