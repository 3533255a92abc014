package reconcile

import (
	"sync"

	"github.com/tailored-agentic-units/retention/retention"
	"github.com/tailored-agentic-units/retention/session"
)

// Conversation is the reconciliation context of one open conversation: its
// sequence, retention count and cache. Each conversation owns its state;
// nothing is shared between conversations.
type Conversation struct {
	id         string
	seq        session.Session
	n          int
	cache      retention.Cache
	lastLength int
	mu         sync.RWMutex
}

// ID returns the conversation ID.
func (c *Conversation) ID() string {
	return c.id
}

// Session returns the conversation's message sequence.
func (c *Conversation) Session() session.Session {
	return c.seq
}

// Setting returns the current retention count. Zero means no retention.
func (c *Conversation) Setting() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}

// Cache returns a copy of the current reconciliation cache.
func (c *Conversation) Cache() retention.Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Clone()
}

// LastProcessedLength returns the sequence length seen by the last pass.
func (c *Conversation) LastProcessedLength() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastLength
}

func (c *Conversation) state() (int, retention.Cache, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n, c.cache, c.lastLength
}

func (c *Conversation) commit(cache retention.Cache, length int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = cache
	c.lastLength = length
}

func (c *Conversation) setN(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = n
}

func (c *Conversation) reset(n int, cache retention.Cache, length int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = n
	c.cache = cache
	c.lastLength = length
}
