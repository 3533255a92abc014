// Package session holds the ordered message sequence of a conversation and
// the accessors the retention engine uses to read and write visibility.
package session

import (
	"github.com/tailored-agentic-units/retention/core/protocol"
)

// Session holds an ordered sequence of conversation messages. Positions are
// the identity of a message within a session. A position may be a hole (no
// message), which readers and writers treat as a no-op. Implementations
// must be safe for concurrent use.
type Session interface {
	// ID returns the unique session identifier.
	ID() string
	// Len returns the number of positions, holes included.
	Len() int
	// At returns the message at index. The second result is false for holes
	// and out-of-range indices.
	At(index int) (protocol.Message, bool)
	// SetHidden writes the visibility of the message at index. Returns false
	// when there is no message at index.
	SetHidden(index int, hidden bool) bool
	// HideRange sets the visibility of every message in [start, end) and
	// returns how many messages changed. The range is clamped to the sequence.
	HideRange(start, end int, hidden bool) int
	// AddMessage appends a message to the conversation history.
	AddMessage(msg protocol.Message)
	// DeleteMessage removes the position at index, shifting later positions
	// down by one. Returns false when index is out of range.
	DeleteMessage(index int) bool
	// Load replaces the whole sequence. Nil entries become holes.
	Load(msgs []*protocol.Message)
	// Messages returns a defensive copy of the present messages in order.
	Messages() []protocol.Message
	// Visible returns a defensive copy of the present, non-hidden messages.
	Visible() []protocol.Message
	// Clear resets the conversation history.
	Clear()
}
