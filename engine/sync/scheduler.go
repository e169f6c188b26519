package sync

import (
	"context"
	"sync"
	"time"
)

// SchedulerState reports what the scheduler loop is doing right now.
type SchedulerState string

const (
	StateIdle    SchedulerState = "idle"
	StateSyncing SchedulerState = "syncing"
)

// Scheduler decides when sync cycles run: on an explicit trigger, on
// reconnect after an offline window, and on each provider's configured
// interval. All triggers funnel through one buffered channel, so a burst of
// requests collapses into a single cycle plus at most one follow-up. One
// goroutine runs cycles; overlapping syncs cannot happen.
type Scheduler struct {
	coordinator *Coordinator
	monitor     *Monitor

	triggerCh chan struct{}
	doneCh    chan struct{}

	mu       sync.Mutex
	state    SchedulerState
	auto     bool
	running  bool
	cancel   context.CancelFunc
	lastRun  time.Time
	interval time.Duration
}

// NewScheduler wires a scheduler to the coordinator that runs its cycles and
// the monitor whose reconnect transitions trigger them. The tick interval is
// the shortest enabled provider frequency; with no enabled providers the
// scheduler only reacts to explicit triggers and reconnects.
func NewScheduler(coordinator *Coordinator, monitor *Monitor) *Scheduler {
	interval := time.Duration(0)
	for _, cfg := range coordinator.Providers() {
		if !cfg.Enabled {
			continue
		}
		if interval == 0 || cfg.Frequency() < interval {
			interval = cfg.Frequency()
		}
	}

	s := &Scheduler{
		coordinator: coordinator,
		monitor:     monitor,
		triggerCh:   make(chan struct{}, 1),
		state:       StateIdle,
		auto:        true,
		interval:    interval,
	}

	monitor.Subscribe(func(change StatusChange) {
		if change.Online && s.AutoSyncEnabled() {
			// Queued offline work drains as soon as connectivity returns.
			s.Trigger()
		}
	})

	return s
}

// State returns the scheduler's current state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastRun returns when the last cycle started, zero if none has run.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// AutoSyncEnabled reports whether interval and reconnect triggers fire.
func (s *Scheduler) AutoSyncEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auto
}

// EnableAutoSync turns interval and reconnect triggering back on and
// triggers a catch-up cycle.
func (s *Scheduler) EnableAutoSync() {
	s.mu.Lock()
	s.auto = true
	s.mu.Unlock()
	s.Trigger()
}

// DisableAutoSync stops interval and reconnect triggering. Explicit Trigger
// calls still run; the user asked for those.
func (s *Scheduler) DisableAutoSync() {
	s.mu.Lock()
	s.auto = false
	s.mu.Unlock()
}

// Trigger requests a sync cycle. Non-blocking: if a request is already
// pending the new one coalesces into it. A trigger arriving mid-cycle is
// not lost; the loop drains the channel again after the running cycle
// finishes.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Start launches the scheduler loop. It returns immediately; the loop runs
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.doneCh = make(chan struct{})
	done := s.doneCh
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.loop(ctx)
	}()
}

// Stop cancels the loop and waits for any in-flight cycle's current provider
// to finish. The coordinator checks its context between providers, so a
// multi-provider cycle stops at the next boundary rather than running out.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.doneCh
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	var tickCh <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.triggerCh:
			s.runCycle(ctx)
		case <-tickCh:
			if !s.AutoSyncEnabled() {
				continue
			}
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.monitor.IsOnline() {
		// Offline: mutations keep queueing; the reconnect subscription
		// will trigger the catch-up cycle.
		return
	}

	s.mu.Lock()
	s.state = StateSyncing
	s.lastRun = time.Now()
	s.mu.Unlock()

	s.coordinator.SyncAll(ctx)

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}
