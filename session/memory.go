package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/retention/core/protocol"
)

type memorySession struct {
	id       string
	messages []*protocol.Message
	mu       sync.RWMutex
}

// NewMemorySession creates a Session backed by an in-memory slice.
// The session is assigned a unique UUIDv7 identifier.
func NewMemorySession(msgs ...protocol.Message) Session {
	s := &memorySession{
		id:       uuid.Must(uuid.NewV7()).String(),
		messages: make([]*protocol.Message, 0, len(msgs)),
	}
	for _, msg := range msgs {
		s.messages = append(s.messages, &msg)
	}
	return s
}

func (s *memorySession) ID() string {
	return s.id
}

func (s *memorySession) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *memorySession) At(index int) (protocol.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.messages) || s.messages[index] == nil {
		return protocol.Message{}, false
	}
	return *s.messages[index], true
}

func (s *memorySession) SetHidden(index int, hidden bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.messages) || s.messages[index] == nil {
		return false
	}
	s.messages[index].Hidden = hidden
	return true
}

func (s *memorySession) HideRange(start, end int, hidden bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	start = max(start, 0)
	end = min(end, len(s.messages))

	changed := 0
	for i := start; i < end; i++ {
		msg := s.messages[i]
		if msg == nil || msg.Hidden == hidden {
			continue
		}
		msg.Hidden = hidden
		changed++
	}
	return changed
}

func (s *memorySession) AddMessage(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, &msg)
}

func (s *memorySession) DeleteMessage(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.messages) {
		return false
	}
	s.messages = append(s.messages[:index], s.messages[index+1:]...)
	return true
}

func (s *memorySession) Load(msgs []*protocol.Message) {
	copied := make([]*protocol.Message, len(msgs))
	for i, msg := range msgs {
		if msg == nil {
			continue
		}
		m := *msg
		copied[i] = &m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = copied
}

func (s *memorySession) Messages() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]protocol.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg != nil {
			copied = append(copied, *msg)
		}
	}
	return copied
}

func (s *memorySession) Visible() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visible []protocol.Message
	for _, msg := range s.messages {
		if msg != nil && !msg.Hidden {
			visible = append(visible, *msg)
		}
	}
	return visible
}

func (s *memorySession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
