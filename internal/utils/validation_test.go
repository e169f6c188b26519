package utils

import (
	"testing"
	"time"
)

func TestParseDateFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *time.Time
		wantErr bool
	}{
		{
			name:  "empty string clears the date",
			input: "",
			want:  nil,
		},
		{
			name:  "valid ISO date",
			input: "2026-01-15",
		},
		{
			name:    "invalid format",
			input:   "15/01/2026",
			wantErr: true,
		},
		{
			name:    "not a date",
			input:   "tomorrow",
			wantErr: true,
		},
		{
			name:    "invalid day",
			input:   "2026-02-30",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateFlag(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDateFlag(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDateFlag(%q) error = %v, want nil", tt.input, err)
			}

			if tt.input == "" {
				if got != nil {
					t.Errorf("ParseDateFlag(%q) = %v, want nil", tt.input, got)
				}
				return
			}

			if got == nil {
				t.Fatalf("ParseDateFlag(%q) = nil, want a time", tt.input)
			}
			if got.Format("2006-01-02") != tt.input {
				t.Errorf("ParseDateFlag(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.input)
			}
		})
	}
}

func TestParseTimeFlag(t *testing.T) {
	t.Run("RFC3339 timestamp", func(t *testing.T) {
		got, err := ParseTimeFlag("2026-01-15T09:30:00Z")
		if err != nil {
			t.Fatalf("ParseTimeFlag() error = %v", err)
		}
		want := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("ParseTimeFlag() = %v, want %v", got, want)
		}
	})

	t.Run("plain date falls back to ISO parsing", func(t *testing.T) {
		got, err := ParseTimeFlag("2026-01-15")
		if err != nil {
			t.Fatalf("ParseTimeFlag() error = %v", err)
		}
		if got == nil || got.Format("2006-01-02") != "2026-01-15" {
			t.Errorf("ParseTimeFlag() = %v, want 2026-01-15", got)
		}
	})

	t.Run("empty returns nil", func(t *testing.T) {
		got, err := ParseTimeFlag("")
		if err != nil || got != nil {
			t.Errorf("ParseTimeFlag(\"\") = %v, %v; want nil, nil", got, err)
		}
	})
}

func TestValidateEventTimes(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{
			name:  "end after start",
			start: start,
			end:   start.Add(time.Hour),
		},
		{
			name:  "open-ended event",
			start: start,
		},
		{
			name:  "zero-length event",
			start: start,
			end:   start,
		},
		{
			name:    "end before start",
			start:   start,
			end:     start.Add(-time.Minute),
			wantErr: true,
		},
		{
			name:    "missing start",
			end:     start,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEventTimes(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEventTimes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
