package gcal

import (
	"time"

	"calsync/engine"
)

// toEvent converts a wire event to a calsync CalendarEvent. The canonical
// local ID is left empty; the caller matches or assigns it.
func toEvent(apiEvent *APIEvent) engine.CalendarEvent {
	ev := engine.CalendarEvent{
		ExternalID:  apiEvent.ID,
		Title:       apiEvent.Summary,
		Description: apiEvent.Description,
		Location:    apiEvent.Location,
	}

	ev.StartTime = parseEventTime(apiEvent.Start)
	ev.EndTime = parseEventTime(apiEvent.End)

	for _, a := range apiEvent.Attendees {
		if a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}

	if apiEvent.Updated != "" {
		if updated, err := time.Parse(time.RFC3339, apiEvent.Updated); err == nil {
			ev.LastModifiedRemote = updated
		}
	}

	return ev
}

// fromEvent converts a calsync CalendarEvent to its wire representation.
// The external id is carried by the request path, not the body.
func fromEvent(ev *engine.CalendarEvent) APIEvent {
	apiEvent := APIEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
	}

	if !ev.StartTime.IsZero() {
		apiEvent.Start = &EventTime{DateTime: ev.StartTime.UTC().Format(time.RFC3339)}
	}
	if !ev.EndTime.IsZero() {
		apiEvent.End = &EventTime{DateTime: ev.EndTime.UTC().Format(time.RFC3339)}
	}

	for _, email := range ev.Attendees {
		apiEvent.Attendees = append(apiEvent.Attendees, APIAttendee{Email: email})
	}

	return apiEvent
}

func parseEventTime(et *EventTime) time.Time {
	if et == nil {
		return time.Time{}
	}
	if et.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, et.DateTime); err == nil {
			return t
		}
	}
	if et.Date != "" {
		if t, err := time.Parse("2006-01-02", et.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
