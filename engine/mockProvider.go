package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// This file contains the in-memory mock provider shared across tests. It is
// also registered as provider type "mock" so the CLI can be exercised
// without a live remote.

func init() {
	RegisterType("mock", func(config ProviderConfig) (ProviderAdapter, error) {
		return NewMockProvider(), nil
	})
}

// MockProvider implements ProviderAdapter against an in-memory event map.
// Failures can be scripted per operation, including fail-N-times-then-succeed
// sequences for retry tests.
type MockProvider struct {
	mu sync.Mutex

	events  map[string]CalendarEvent // externalID -> event
	nextID  int
	modTime time.Time // LastModifiedRemote stamped onto pushed events

	pullErr   error
	pushErr   error
	deleteErr error

	// pushFailures makes the next N Push calls fail with pushFailErr
	// before succeeding, for retry-then-ack tests.
	pushFailures int
	pushFailErr  error

	PullCalls   int
	PushCalls   int
	DeleteCalls int
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		events:  make(map[string]CalendarEvent),
		modTime: time.Now(),
	}
}

// Pull returns all events modified at or after since.
func (mp *MockProvider) Pull(ctx context.Context, since time.Time) ([]CalendarEvent, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.PullCalls++
	if mp.pullErr != nil {
		return nil, mp.pullErr
	}

	var out []CalendarEvent
	for _, ev := range mp.events {
		if since.IsZero() || !ev.LastModifiedRemote.Before(since) {
			out = append(out, *ev.Clone())
		}
	}
	return out, nil
}

// Push creates or updates an event. Create assigns a deterministic external
// id; pushing an event that already carries one updates in place. Pushing an
// unknown external id re-creates under the same id, so a retried create that
// already landed stays a single remote record.
func (mp *MockProvider) Push(ctx context.Context, event CalendarEvent) (string, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.PushCalls++
	if mp.pushFailures > 0 {
		mp.pushFailures--
		if mp.pushFailErr != nil {
			return "", mp.pushFailErr
		}
		return "", NewProviderError("Push", KindTransient, "scripted failure")
	}
	if mp.pushErr != nil {
		return "", mp.pushErr
	}

	externalID := event.ExternalID
	if externalID == "" {
		// Idempotency guard: a retried create for the same local record
		// must not produce a duplicate.
		for id, ev := range mp.events {
			if ev.ID == event.ID {
				externalID = id
				break
			}
		}
	}
	if externalID == "" {
		mp.nextID++
		externalID = fmt.Sprintf("ext-%d", mp.nextID)
	}

	stored := *event.Clone()
	stored.ExternalID = externalID
	stored.LastModifiedRemote = mp.modTime
	mp.events[externalID] = stored
	return externalID, nil
}

// Delete removes an event. Deleting an unknown id returns a 404-shaped
// error, which callers tolerate.
func (mp *MockProvider) Delete(ctx context.Context, externalID string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.DeleteCalls++
	if mp.deleteErr != nil {
		return mp.deleteErr
	}

	if _, ok := mp.events[externalID]; !ok {
		return NewProviderError("Delete", KindValidation, "event not found").WithStatus(404)
	}
	delete(mp.events, externalID)
	return nil
}

// SetRemote seeds or replaces a remote event directly, bypassing Push
// accounting. Used by tests to simulate out-of-band remote edits.
func (mp *MockProvider) SetRemote(ev CalendarEvent) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.events[ev.ExternalID] = *ev.Clone()
}

// RemoveRemote deletes a remote event out-of-band, simulating a deletion on
// the provider side.
func (mp *MockProvider) RemoveRemote(externalID string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	delete(mp.events, externalID)
}

// Remote returns a copy of the stored event, if present.
func (mp *MockProvider) Remote(externalID string) (CalendarEvent, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	ev, ok := mp.events[externalID]
	return ev, ok
}

// RemoteCount returns how many events the mock currently holds.
func (mp *MockProvider) RemoteCount() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.events)
}

// SetModTime controls the LastModifiedRemote stamped onto pushed events.
func (mp *MockProvider) SetModTime(t time.Time) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.modTime = t
}

// FailPull makes every Pull return err until cleared with nil.
func (mp *MockProvider) FailPull(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.pullErr = err
}

// FailPush makes every Push return err until cleared with nil.
func (mp *MockProvider) FailPush(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.pushErr = err
}

// FailPushTimes makes the next n Push calls fail with err, then succeed.
func (mp *MockProvider) FailPushTimes(n int, err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.pushFailures = n
	mp.pushFailErr = err
}

// FailDelete makes every Delete return err until cleared with nil.
func (mp *MockProvider) FailDelete(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.deleteErr = err
}
