package engine

import (
	"reflect"
	"testing"
	"time"
)

func sampleEvent() *CalendarEvent {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &CalendarEvent{
		ID:          "ev-1",
		ExternalID:  "remote-1",
		Title:       "Planning",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Description: "Quarterly planning",
		Location:    "Room 4",
		Attendees:   []string{"a@example.com", "b@example.com"},
	}
}

func TestClone(t *testing.T) {
	original := sampleEvent()
	clone := original.Clone()

	if !reflect.DeepEqual(original, clone) {
		t.Errorf("Clone() = %+v, want %+v", clone, original)
	}

	clone.Attendees[0] = "changed@example.com"
	if original.Attendees[0] != "a@example.com" {
		t.Error("mutating the clone's attendees should not affect the original")
	}

	var nilEvent *CalendarEvent
	if nilEvent.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestFieldEqual(t *testing.T) {
	base := sampleEvent()

	tests := []struct {
		name   string
		mutate func(*CalendarEvent)
		field  string
		want   bool
	}{
		{
			name:   "identical titles",
			mutate: func(e *CalendarEvent) {},
			field:  FieldTitle,
			want:   true,
		},
		{
			name:   "different titles",
			mutate: func(e *CalendarEvent) { e.Title = "Renamed" },
			field:  FieldTitle,
			want:   false,
		},
		{
			name:   "start differs by sub-second only",
			mutate: func(e *CalendarEvent) { e.StartTime = e.StartTime.Add(500 * time.Millisecond) },
			field:  FieldStartTime,
			want:   true,
		},
		{
			name:   "start differs by a minute",
			mutate: func(e *CalendarEvent) { e.StartTime = e.StartTime.Add(time.Minute) },
			field:  FieldStartTime,
			want:   false,
		},
		{
			name:   "attendee order is irrelevant",
			mutate: func(e *CalendarEvent) { e.Attendees = []string{"b@example.com", "a@example.com"} },
			field:  FieldAttendees,
			want:   true,
		},
		{
			name:   "attendee added",
			mutate: func(e *CalendarEvent) { e.Attendees = append(e.Attendees, "c@example.com") },
			field:  FieldAttendees,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.mutate(other)
			if got := base.FieldEqual(other, tt.field); got != tt.want {
				t.Errorf("FieldEqual(%s) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestChangedFields(t *testing.T) {
	base := sampleEvent()

	t.Run("no changes", func(t *testing.T) {
		if fields := ChangedFields(base, base.Clone()); len(fields) != 0 {
			t.Errorf("ChangedFields() = %v, want none", fields)
		}
	})

	t.Run("title and location changed", func(t *testing.T) {
		cur := base.Clone()
		cur.Title = "Renamed"
		cur.Location = "Room 5"

		fields := ChangedFields(base, cur)
		want := map[string]bool{FieldTitle: true, FieldLocation: true}
		if len(fields) != len(want) {
			t.Fatalf("ChangedFields() = %v, want title and location", fields)
		}
		for _, f := range fields {
			if !want[f] {
				t.Errorf("unexpected changed field %s", f)
			}
		}
	})

	t.Run("nil base counts everything", func(t *testing.T) {
		fields := ChangedFields(nil, base)
		if len(fields) != len(TimeFields)+len(ContentFields) {
			t.Errorf("ChangedFields(nil, cur) = %v, want all fields", fields)
		}
	})
}

func TestUnionAttendees(t *testing.T) {
	got := UnionAttendees(
		[]string{"a@example.com", "b@example.com"},
		[]string{"b@example.com", "c@example.com"},
	)

	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnionAttendees() = %v, want %v", got, want)
	}
}
