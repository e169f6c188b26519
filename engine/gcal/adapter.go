package gcal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"calsync/engine"
	"calsync/internal/credentials"
)

func init() {
	// Register the Google Calendar adapter for config type "gcal"
	engine.RegisterType("gcal", NewAdapter)
}

// Adapter implements engine.ProviderAdapter for Google Calendar
type Adapter struct {
	config     engine.ProviderConfig
	apiClient  *APIClient
	calendarID string
}

// NewAdapter creates a Calendar adapter from its config. The API token is
// resolved with priority keyring > environment > config file.
func NewAdapter(config engine.ProviderConfig) (engine.ProviderAdapter, error) {
	token, err := resolveToken(config)
	if err != nil {
		return nil, err
	}

	calendarID := config.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	return &Adapter{
		config:     config,
		apiClient:  NewAPIClient(token, config.URL, config.Timeout()),
		calendarID: calendarID,
	}, nil
}

// resolveToken retrieves the API token with priority:
// 1. Keyring (username hint defaults to "token")
// 2. Environment variable (CALSYNC_<PROVIDER_NAME>_PASSWORD)
// 3. Config file (api_token field)
func resolveToken(config engine.ProviderConfig) (string, error) {
	if config.Name != "" {
		resolver := credentials.NewResolver()

		// The API token is stored as the "password"; username is a hint.
		username := config.Username
		if username == "" {
			username = "token"
		}

		creds, err := resolver.Resolve(config.Name, username, "", nil)
		if err == nil && creds.Password != "" {
			return creds.Password, nil
		}
	}

	if config.APIToken != "" {
		return config.APIToken, nil
	}

	return "", fmt.Errorf("calendar API token not found (tried: keyring, environment variables, config)\n"+
		"Set it with: calsync credentials set %s token --prompt\n"+
		"Or add 'api_token' to your config file", config.Name)
}

// Pull fetches events updated since the given time; a zero time fetches the
// calendar's complete event set. Cancelled events are reported as deletions
// by omission, so they are filtered out here.
func (a *Adapter) Pull(ctx context.Context, since time.Time) ([]engine.CalendarEvent, error) {
	apiEvents, err := a.apiClient.ListEvents(ctx, a.calendarID, since)
	if err != nil {
		return nil, err
	}

	events := make([]engine.CalendarEvent, 0, len(apiEvents))
	for i := range apiEvents {
		if apiEvents[i].Status == "cancelled" {
			continue
		}
		events = append(events, toEvent(&apiEvents[i]))
	}

	return events, nil
}

// Push creates the event remotely when it has no external id, otherwise
// updates it in place. Returns the external id either way.
//
// Creates carry a client-derived event id so a retried create after a lost
// response lands on the same resource instead of duplicating it. The API
// answers 409 when the id already exists, which means the earlier attempt
// succeeded.
func (a *Adapter) Push(ctx context.Context, event engine.CalendarEvent) (string, error) {
	apiEvent := fromEvent(&event)

	if event.ExternalID == "" {
		apiEvent.ID = deriveEventID(event.ID)
		created, err := a.apiClient.CreateEvent(ctx, a.calendarID, apiEvent)
		if err != nil {
			var provErr *engine.ProviderError
			if errors.As(err, &provErr) && provErr.StatusCode == http.StatusConflict {
				return apiEvent.ID, nil
			}
			return "", err
		}
		return created.ID, nil
	}

	updated, err := a.apiClient.UpdateEvent(ctx, a.calendarID, event.ExternalID, apiEvent)
	if err != nil {
		return "", err
	}
	return updated.ID, nil
}

// deriveEventID maps a local record id to a stable remote event id. The API
// only accepts ids in lowercase base32hex (characters 0-9 and a-v); a sha256
// hex digest stays inside that alphabet.
func deriveEventID(recordID string) string {
	sum := sha256.Sum256([]byte(recordID))
	return hex.EncodeToString(sum[:])
}

// Delete removes the event remotely. Deleting an already-gone event is not
// an error; the deletion has converged.
func (a *Adapter) Delete(ctx context.Context, externalID string) error {
	err := a.apiClient.DeleteEvent(ctx, a.calendarID, externalID)
	if err != nil && engine.IsNotFoundErr(err) {
		return nil
	}
	return err
}
