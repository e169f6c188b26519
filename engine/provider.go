package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProviderAdapter is the contract every external calendar or EHR system
// implements. A new provider is added purely by implementing these three
// methods and registering a constructor; the coordinator, detector and
// resolver never change.
//
// Pull must be safe to call repeatedly with the same since value (idempotent
// read). Push of an event with an ExternalID performs an update; with an
// empty ExternalID it creates and returns the new external id, which the
// caller persists onto the canonical record. Delete of an already-gone
// external id is tolerated.
type ProviderAdapter interface {
	Pull(ctx context.Context, since time.Time) ([]CalendarEvent, error)
	Push(ctx context.Context, event CalendarEvent) (string, error)
	Delete(ctx context.Context, externalID string) error
}

// SyncDirection controls which way a provider's changes flow.
type SyncDirection string

const (
	Bidirectional SyncDirection = "bidirectional"
	LocalToRemote SyncDirection = "local_to_remote"
	RemoteToLocal SyncDirection = "remote_to_local"
)

// ProviderConfig describes one configured external system. Mutated by user
// settings; drives the scheduler cadence and the coordinator's conflict
// defaults per provider.
type ProviderConfig struct {
	Name                 string        `json:"name,omitempty"`
	Type                 string        `json:"type" validate:"required"`
	Enabled              bool          `json:"enabled"`
	SyncDirection        SyncDirection `json:"sync_direction,omitempty" validate:"omitempty,oneof=bidirectional local_to_remote remote_to_local"`
	SyncFrequencyMinutes int           `json:"sync_frequency_minutes,omitempty" validate:"omitempty,min=1"`
	ConflictDefault      Strategy      `json:"conflict_default,omitempty" validate:"omitempty,oneof=local_wins remote_wins merge defer"`

	// Connection details. Which of these a provider needs is type-specific.
	URL        string `json:"url,omitempty"`
	CalendarID string `json:"calendar_id,omitempty"`
	Username   string `json:"username,omitempty"`
	APIToken   string `json:"api_token,omitempty"`

	// TimeoutSeconds bounds each remote call. Zero means the default 30s.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Direction returns the configured direction, defaulting to bidirectional.
func (c ProviderConfig) Direction() SyncDirection {
	if c.SyncDirection == "" {
		return Bidirectional
	}
	return c.SyncDirection
}

// Default returns the configured conflict strategy, defaulting to defer so
// nothing is auto-resolved unless the user opted in.
func (c ProviderConfig) Default() Strategy {
	if c.ConflictDefault == "" {
		return Defer
	}
	return c.ConflictDefault
}

// Frequency returns the sync cadence, defaulting to 15 minutes.
func (c ProviderConfig) Frequency() time.Duration {
	if c.SyncFrequencyMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.SyncFrequencyMinutes) * time.Minute
}

// Timeout returns the per-call timeout, defaulting to 30 seconds.
func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AdapterConstructor is a function that creates an adapter from its config.
type AdapterConstructor func(config ProviderConfig) (ProviderAdapter, error)

// Registry holds registered adapter constructors keyed by provider type.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]AdapterConstructor
}

var globalRegistry = &Registry{
	constructors: make(map[string]AdapterConstructor),
}

// RegisterType registers an adapter constructor for a provider type.
// Provider packages call this from init().
func RegisterType(providerType string, constructor AdapterConstructor) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.constructors[providerType] = constructor
}

// GetTypeConstructor returns the constructor for a provider type.
func GetTypeConstructor(providerType string) (AdapterConstructor, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	constructor, ok := globalRegistry.constructors[providerType]
	if !ok {
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
	return constructor, nil
}

// NewAdapter builds an adapter for the given provider config.
func NewAdapter(config ProviderConfig) (ProviderAdapter, error) {
	constructor, err := GetTypeConstructor(config.Type)
	if err != nil {
		return nil, err
	}
	return constructor(config)
}

// RegisteredTypes returns the provider types known to the registry.
func RegisteredTypes() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	types := make([]string, 0, len(globalRegistry.constructors))
	for t := range globalRegistry.constructors {
		types = append(types, t)
	}
	return types
}
