package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// BackgroundLogger writes to a log file instead of the terminal. Detached
// sync processes have no stdout worth writing to, but their outcomes still
// need to land somewhere debuggable.
type BackgroundLogger struct {
	file   *os.File
	logger *log.Logger
}

// NewBackgroundLogger opens (or creates) the background sync log in the
// system temp directory.
func NewBackgroundLogger() (*BackgroundLogger, error) {
	path := filepath.Join(os.TempDir(), "calsync-background.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open background log %s: %w", path, err)
	}

	return &BackgroundLogger{
		file:   file,
		logger: log.New(file, "", log.LstdFlags),
	}, nil
}

func (b *BackgroundLogger) Printf(format string, args ...interface{}) {
	b.logger.Printf(format, args...)
}

// Path returns the log file location.
func (b *BackgroundLogger) Path() string {
	return b.file.Name()
}

func (b *BackgroundLogger) Close() error {
	return b.file.Close()
}
