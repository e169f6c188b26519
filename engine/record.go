package engine

import (
	"sort"
	"time"
)

// Field names used in conflict reports and merge policies.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
	FieldAttendees   = "attendees"
)

// TimeFields are the fields whose divergence classifies a Time conflict.
var TimeFields = []string{FieldStartTime, FieldEndTime}

// ContentFields are the fields whose divergence classifies a Content conflict.
var ContentFields = []string{FieldTitle, FieldDescription, FieldLocation, FieldAttendees}

// CalendarEvent is the provider-agnostic canonical shape of a synchronized
// appointment. The local store is authoritative for ID-keyed state until a
// record is synced; the provider is authoritative for ExternalID-keyed state
// until a local edit occurs.
type CalendarEvent struct {
	ID                 string    `json:"id"`                    // local identifier
	ExternalID         string    `json:"external_id,omitempty"` // provider identifier, empty until first push
	Title              string    `json:"title"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Description        string    `json:"description,omitempty"`
	Location           string    `json:"location,omitempty"`
	Attendees          []string  `json:"attendees,omitempty"`
	LastModifiedLocal  time.Time `json:"last_modified_local,omitempty"`
	LastModifiedRemote time.Time `json:"last_modified_remote,omitempty"`
}

// Clone returns a deep copy of the event.
func (e *CalendarEvent) Clone() *CalendarEvent {
	if e == nil {
		return nil
	}
	c := *e
	if e.Attendees != nil {
		c.Attendees = append([]string(nil), e.Attendees...)
	}
	return &c
}

// FieldEqual compares a single canonical field between two events.
// Times are compared at second precision since the store persists Unix
// seconds. Attendees are compared as a set.
func (e *CalendarEvent) FieldEqual(other *CalendarEvent, field string) bool {
	switch field {
	case FieldTitle:
		return e.Title == other.Title
	case FieldDescription:
		return e.Description == other.Description
	case FieldLocation:
		return e.Location == other.Location
	case FieldStartTime:
		return e.StartTime.Unix() == other.StartTime.Unix()
	case FieldEndTime:
		return e.EndTime.Unix() == other.EndTime.Unix()
	case FieldAttendees:
		return attendeesEqual(e.Attendees, other.Attendees)
	}
	return true
}

// ChangedFields returns the canonical fields on which cur differs from base.
// A nil base means everything present on cur counts as changed.
func ChangedFields(base, cur *CalendarEvent) []string {
	all := append(append([]string{}, TimeFields...), ContentFields...)
	if base == nil {
		return all
	}

	var changed []string
	for _, field := range all {
		if !base.FieldEqual(cur, field) {
			changed = append(changed, field)
		}
	}
	return changed
}

// SortedAttendees returns a sorted copy of the attendee list.
func (e *CalendarEvent) SortedAttendees() []string {
	out := append([]string(nil), e.Attendees...)
	sort.Strings(out)
	return out
}

func attendeesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// UnionAttendees merges two attendee lists as a set, preserving sorted order.
func UnionAttendees(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for _, at := range a {
		seen[at] = true
	}
	for _, at := range b {
		seen[at] = true
	}
	out := make([]string, 0, len(seen))
	for at := range seen {
		out = append(out, at)
	}
	sort.Strings(out)
	return out
}
