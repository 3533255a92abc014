package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Cache is the session-scoped, typed view of conversation records. Get and
// Set never perform I/O; Load reads through to the store and Flush writes
// dirty records back. All methods are safe for concurrent use.
type Cache struct {
	store   Store
	records map[string]Record
	dirty   map[string]bool
	removed map[string]bool
	// gen counts the Sets and Deletes of each conversation. Flush clears a
	// dirty or removed mark only when gen still equals what it wrote.
	gen map[string]uint64
	mu  sync.RWMutex
}

// NewCache creates a Cache backed by store.
func NewCache(store Store) *Cache {
	return &Cache{
		store:   store,
		records: make(map[string]Record),
		dirty:   make(map[string]bool),
		removed: make(map[string]bool),
		gen:     make(map[string]uint64),
	}
}

// Bootstrap loads every conversation record in the store. Records that fail
// to decode are skipped.
func (c *Cache) Bootstrap(ctx context.Context) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap index: %w", err)
	}

	var toLoad []string
	for _, key := range keys {
		if strings.HasPrefix(key, NamespaceConversations+"/") {
			toLoad = append(toLoad, key)
		}
	}
	if len(toLoad) == 0 {
		return nil
	}

	entries, err := c.store.Load(ctx, toLoad...)
	if err != nil {
		return fmt.Errorf("bootstrap load: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		id, _ := ConversationID(e.Key)
		if _, ok := c.records[id]; ok {
			continue
		}
		if r, err := DecodeRecord(e.Value); err == nil {
			c.records[id] = r
		}
	}
	return nil
}

// Load returns the record of a conversation, reading it from the store on
// first access. A conversation without a record gets the zero Record, which
// is not marked dirty. A record that cannot be decoded also yields the zero
// Record, together with an error wrapping ErrCorruptRecord; the zero Record
// is cached so the next Flush overwrites the corrupt bytes once it is set.
func (c *Cache) Load(ctx context.Context, conversationID string) (Record, error) {
	if r, ok := c.Get(conversationID); ok {
		return r, nil
	}

	key := Key(conversationID)
	entries, err := c.store.Load(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w", conversationID, err)
	}

	r, decodeErr := DecodeRecord(entries[0].Value)
	if decodeErr != nil {
		r = Record{}
	}

	c.mu.Lock()
	if existing, ok := c.records[conversationID]; ok {
		r, decodeErr = existing, nil
	} else {
		c.records[conversationID] = r
	}
	c.mu.Unlock()

	if decodeErr != nil {
		return r.Clone(), fmt.Errorf("load %s: %w", conversationID, decodeErr)
	}
	return r.Clone(), nil
}

// Get returns a cached record without I/O.
func (c *Cache) Get(conversationID string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.records[conversationID]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// Set replaces a conversation's record and marks it dirty.
func (c *Cache) Set(conversationID string, r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[conversationID] = r.Clone()
	c.dirty[conversationID] = true
	delete(c.removed, conversationID)
	c.gen[conversationID]++
}

// Delete drops a conversation's record; Flush removes it from the store.
func (c *Cache) Delete(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.records, conversationID)
	delete(c.dirty, conversationID)
	c.removed[conversationID] = true
	c.gen[conversationID]++
}

// Dirty reports whether a conversation has unflushed changes.
func (c *Cache) Dirty(conversationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty[conversationID] || c.removed[conversationID]
}

// Conversations returns the IDs of all cached records, sorted.
func (c *Cache) Conversations() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush writes dirty records and deletions to the store. A Set or Delete
// that lands while the store is being written keeps its mark, so the next
// Flush writes it.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	var toSave []Entry
	saved := make(map[string]uint64)
	for id := range c.dirty {
		r, ok := c.records[id]
		if !ok {
			continue
		}
		data, err := EncodeRecord(r)
		if err != nil {
			c.mu.RUnlock()
			return fmt.Errorf("flush encode %s: %w", id, err)
		}
		toSave = append(toSave, Entry{Key: Key(id), Value: data})
		saved[id] = c.gen[id]
	}
	var toDelete []string
	deleted := make(map[string]uint64)
	for id := range c.removed {
		toDelete = append(toDelete, Key(id))
		deleted[id] = c.gen[id]
	}
	c.mu.RUnlock()

	if len(toSave) > 0 {
		if err := c.store.Save(ctx, toSave...); err != nil {
			return fmt.Errorf("flush save: %w", err)
		}
	}
	if len(toDelete) > 0 {
		if err := c.store.Delete(ctx, toDelete...); err != nil {
			return fmt.Errorf("flush delete: %w", err)
		}
	}

	c.mu.Lock()
	for id, gen := range saved {
		if c.gen[id] == gen {
			delete(c.dirty, id)
		}
	}
	for id, gen := range deleted {
		if c.gen[id] == gen {
			delete(c.removed, id)
		}
	}
	c.mu.Unlock()

	return nil
}
