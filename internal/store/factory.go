package store

import (
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string
	Driver  string
	Logger  *slog.Logger
}

// Open builds the ChunkStore named by opts.Backend.
func Open(opts Options) (ChunkStore, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(opts.Path, opts.Driver, opts.Logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown storage backend %q", opts.Backend), nil).
			WithSuggestion("use \"sqlite\" or \"memory\"")
	}
}
