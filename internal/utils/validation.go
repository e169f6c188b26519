package utils

import (
	"fmt"
	"time"
)

// ParseDateFlag parses a date string in ISO format (YYYY-MM-DD).
// Returns nil for empty strings (used to clear dates).
func ParseDateFlag(dateStr string) (*time.Time, error) {
	if dateStr == "" {
		return nil, nil
	}

	parsedDate, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date format '%s': expected YYYY-MM-DD (e.g., 2026-01-31)", dateStr)
	}

	return &parsedDate, nil
}

// ParseTimeFlag parses a timestamp in ISO date or RFC3339 format.
func ParseTimeFlag(timeStr string) (*time.Time, error) {
	if timeStr == "" {
		return nil, nil
	}

	if parsed, err := time.Parse(time.RFC3339, timeStr); err == nil {
		return &parsed, nil
	}
	return ParseDateFlag(timeStr)
}

// ValidateEventTimes checks that an event's start and end are consistent.
// A zero end time is allowed (open-ended event).
func ValidateEventTimes(start, end time.Time) error {
	if start.IsZero() {
		return fmt.Errorf("event start time is required")
	}
	if !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end time (%s) cannot be before start time (%s)",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}
