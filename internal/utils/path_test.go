package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home directory: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare tilde", "~", home},
		{"database path", "~/.local/share/calsync/calsync.db", filepath.Join(home, ".local/share/calsync/calsync.db")},
		{"policy dir", "~/.config/calsync/policies", filepath.Join(home, ".config/calsync/policies")},
		{"env var", "$HOME/.config/calsync/config.yaml", filepath.Join(home, ".config/calsync/config.yaml")},
		{"absolute path unchanged", "/var/lib/calsync/calsync.db", "/var/lib/calsync/calsync.db"},
		{"relative path unchanged", "data/calsync.db", "data/calsync.db"},
		{"tilde mid-path unchanged", "/srv/~backup/calsync.db", "/srv/~backup/calsync.db"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandPathEnvThenTilde(t *testing.T) {
	// A variable may itself hold a tilde path; both expansions apply.
	t.Setenv("CALSYNC_DATA", "~/calsync-data")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home directory: %v", err)
	}

	got, err := ExpandPath("$CALSYNC_DATA/calsync.db")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if want := filepath.Join(home, "calsync-data/calsync.db"); got != want {
		t.Errorf("ExpandPath() = %q, want %q", got, want)
	}
}
