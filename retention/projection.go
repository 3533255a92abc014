// Package retention computes the visibility partition of a chat sequence
// under a retention count N: the last N messages stay visible, everything
// before them is hidden, and user-authored messages are never hidden.
//
// The package is pure. It reads a Projection of the live sequence and a
// Cache of what it assigned last time, and returns the Transitions needed to
// reach the target partition together with the replacement Cache. Applying
// transitions to the host sequence and to the screen is the caller's job.
//
//	p := retention.Project(seq)
//	res := retention.ComputeFull(p, 10, prev)
//	for _, t := range res.Transitions {
//		seq.SetHidden(t.Index, t.Hidden)
//	}
package retention

import "github.com/tailored-agentic-units/retention/core/protocol"

// Flag describes one position of a Projection.
type Flag = byte

const (
	// FlagHidden marks a message that is currently hidden.
	FlagHidden Flag = 1 << iota
	// FlagProtected marks a message exempt from automatic hiding.
	FlagProtected
	// FlagMissing marks a hole: the position exists but holds no message.
	FlagMissing
)

// Projection is the minimal per-position view of a sequence: visibility,
// protection and presence, one byte per position. It carries no message
// content and is safe to serialize across a compute boundary.
type Projection []byte

// Sequence is the read side of a host message sequence.
type Sequence interface {
	Len() int
	At(index int) (protocol.Message, bool)
}

// Project builds the Projection of seq.
func Project(seq Sequence) Projection {
	n := seq.Len()
	p := make(Projection, n)
	for i := range n {
		msg, ok := seq.At(i)
		if !ok {
			p[i] = FlagMissing
			continue
		}
		p[i] = FlagOf(msg)
	}
	return p
}

// FlagOf returns the projection flag for a single message.
func FlagOf(msg protocol.Message) Flag {
	var f Flag
	if msg.Hidden {
		f |= FlagHidden
	}
	if msg.Protected() {
		f |= FlagProtected
	}
	return f
}

// Hidden reports whether the message at i is currently hidden.
func (p Projection) Hidden(i int) bool {
	return p[i]&FlagHidden != 0
}

// Protected reports whether the message at i is protected.
func (p Projection) Protected(i int) bool {
	return p[i]&FlagProtected != 0
}

// Missing reports whether position i is a hole.
func (p Projection) Missing(i int) bool {
	return p[i]&FlagMissing != 0
}

// HiddenCount returns the number of present, hidden messages.
func (p Projection) HiddenCount() int {
	count := 0
	for _, f := range p {
		if f&FlagMissing == 0 && f&FlagHidden != 0 {
			count++
		}
	}
	return count
}

// Apply returns a copy of p with transitions written onto it. Transitions
// that point at holes or outside the projection are ignored.
func (p Projection) Apply(transitions []Transition) Projection {
	out := make(Projection, len(p))
	copy(out, p)
	for _, t := range transitions {
		if t.Index < 0 || t.Index >= len(out) || out.Missing(t.Index) {
			continue
		}
		if t.Hidden {
			out[t.Index] |= FlagHidden
		} else {
			out[t.Index] &^= FlagHidden
		}
	}
	return out
}

// Transition is a single required visibility change. A batch of transitions
// has no ordering between positions.
type Transition struct {
	Index  int  `cbor:"i" json:"index"`
	Hidden bool `cbor:"h" json:"hidden"`
}

// Indices returns the positions touched by transitions, in batch order.
func Indices(transitions []Transition) []int {
	indices := make([]int, len(transitions))
	for i, t := range transitions {
		indices[i] = t.Index
	}
	return indices
}
