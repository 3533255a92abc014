package settings

import (
	"fmt"
	"log/slog"
)

// Settings backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config holds settings store initialization parameters.
type Config struct {
	Backend    string `json:"backend,omitempty"`
	Path       string `json:"path,omitempty"`
	SyncWrites bool   `json:"sync_writes,omitempty"`
}

// DefaultConfig keeps settings in memory for the life of the process.
func DefaultConfig() Config {
	return Config{Backend: BackendMemory}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.SyncWrites {
		c.SyncWrites = true
	}
}

// NewStore creates the Store described by cfg. The memory backend is an
// in-memory Badger database.
func NewStore(cfg *Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewBadgerStore("", false, logger)
	case BackendFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("failed to create settings store: %w", ErrMissingPath)
		}
		return NewFileStore(cfg.Path), nil
	case BackendBadger:
		if cfg.Path == "" {
			return nil, fmt.Errorf("failed to create settings store: %w", ErrMissingPath)
		}
		return NewBadgerStore(cfg.Path, cfg.SyncWrites, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
