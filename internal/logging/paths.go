package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.semidx/logs, or a temp-dir equivalent when the
// home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".semidx", "logs")
	}
	return filepath.Join(home, ".semidx", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "semidx.log")
}
