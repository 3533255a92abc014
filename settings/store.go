// Package settings persists per-conversation retention state: the
// retention count, the last processed length and the reconciliation cache.
//
// Store is the raw key-value boundary with file and Badger backends. Cache
// is the typed, session-scoped view the driver reads and writes; it only
// performs I/O on Load and Flush.
package settings

import "context"

// Store reads and writes raw records. Implementations do not cache.
type Store interface {
	// List returns every key in the store.
	List(ctx context.Context) ([]string, error)
	// Load returns entries for keys. A missing key fails with ErrKeyNotFound.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save creates or overwrites entries.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Close releases the backend.
	Close() error
}

// Entry is a raw key-value pair.
type Entry struct {
	Key   string
	Value []byte
}
