package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves ~ and environment variables in a configured path, so
// config values like "~/.local/share/calsync/calsync.db" or "$HOME/.config/
// calsync/policies" work as written. Paths without either pass through
// unchanged.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	path = os.ExpandEnv(path)

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}

	return path, nil
}
