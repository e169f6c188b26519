package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"calsync/engine"
)

const (
	// Google Calendar REST API v3 base URL
	APIBaseURL = "https://www.googleapis.com/calendar/v3"
)

// APIClient handles HTTP communication with the Google Calendar REST API
type APIClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewAPIClient creates a new Calendar API client. An empty baseURL uses the
// public endpoint; tests point it at an httptest server.
func NewAPIClient(apiToken, baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = APIBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIEvent represents an event resource on the wire
type APIEvent struct {
	ID          string        `json:"id,omitempty"`
	Status      string        `json:"status,omitempty"` // "confirmed" or "cancelled"
	Summary     string        `json:"summary"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Start       *EventTime    `json:"start,omitempty"`
	End         *EventTime    `json:"end,omitempty"`
	Attendees   []APIAttendee `json:"attendees,omitempty"`
	Updated     string        `json:"updated,omitempty"` // RFC3339
}

// EventTime represents a start or end time
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"` // RFC3339
	Date     string `json:"date,omitempty"`     // YYYY-MM-DD for all-day events
}

// APIAttendee represents one attendee on an event
type APIAttendee struct {
	Email string `json:"email"`
}

// eventList is the response envelope for event listing
type eventList struct {
	Items         []APIEvent `json:"items"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}

// doRequest performs an HTTP request with authentication
func (c *APIClient) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, engine.NewProviderError(method+" "+endpoint, engine.KindTransient, "request failed").WithError(err)
	}

	return resp, nil
}

// apiError drains the response body and wraps the status in a classified
// provider error.
func apiError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return engine.NewProviderError(operation, engine.KindFromStatus(resp.StatusCode),
		fmt.Sprintf("API error (status %d)", resp.StatusCode)).
		WithStatus(resp.StatusCode).
		WithBody(string(body))
}

// ListEvents retrieves events from a calendar, optionally only those updated
// after updatedMin. Pagination is followed until the listing is exhausted.
func (c *APIClient) ListEvents(ctx context.Context, calendarID string, updatedMin time.Time) ([]APIEvent, error) {
	var events []APIEvent
	pageToken := ""

	for {
		query := url.Values{}
		if !updatedMin.IsZero() {
			query.Set("updatedMin", updatedMin.UTC().Format(time.RFC3339))
		}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		endpoint := "/calendars/" + url.PathEscape(calendarID) + "/events"
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}

		resp, err := c.doRequest(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			defer func() { _ = resp.Body.Close() }()
			return nil, apiError("list events", resp)
		}

		var page eventList
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		events = append(events, page.Items...)
		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateEvent creates a new event and returns the stored resource
func (c *APIClient) CreateEvent(ctx context.Context, calendarID string, event APIEvent) (*APIEvent, error) {
	endpoint := "/calendars/" + url.PathEscape(calendarID) + "/events"
	resp, err := c.doRequest(ctx, "POST", endpoint, event)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apiError("create event", resp)
	}

	var created APIEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &created, nil
}

// UpdateEvent replaces an existing event
func (c *APIClient) UpdateEvent(ctx context.Context, calendarID, eventID string, event APIEvent) (*APIEvent, error) {
	endpoint := "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
	resp, err := c.doRequest(ctx, "PUT", endpoint, event)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("update event", resp)
	}

	var updated APIEvent
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &updated, nil
}

// DeleteEvent removes an event
func (c *APIClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	endpoint := "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
	resp, err := c.doRequest(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("delete event", resp)
	}

	return nil
}
