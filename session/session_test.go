package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/retention/core/protocol"
	"github.com/tailored-agentic-units/retention/session"
)

func newSession(n int) session.Session {
	s := session.NewMemorySession()
	for i := range n {
		s.AddMessage(protocol.NewMessage(protocol.RoleAssistant, fmt.Sprintf("msg %d", i)))
	}
	return s
}

func TestNew(t *testing.T) {
	s := session.NewMemorySession()

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Messages())
}

func TestNew_WithMessages(t *testing.T) {
	s := session.NewMemorySession(
		protocol.NewMessage(protocol.RoleUser, "a"),
		protocol.NewMessage(protocol.RoleAssistant, "b"),
	)

	require.Equal(t, 2, s.Len())
	msg, ok := s.At(1)
	require.True(t, ok)
	assert.Equal(t, "b", msg.Content)
}

func TestSession_ID_Unique(t *testing.T) {
	s1 := session.NewMemorySession()
	s2 := session.NewMemorySession()

	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestSession_ID_Stable(t *testing.T) {
	s := session.NewMemorySession()
	assert.Equal(t, s.ID(), s.ID())
}

func TestSession_At_OutOfRange(t *testing.T) {
	s := newSession(2)

	for _, index := range []int{-1, 2, 100} {
		_, ok := s.At(index)
		assert.False(t, ok, "At(%d)", index)
	}
}

func TestSession_SetHidden(t *testing.T) {
	s := newSession(3)

	require.True(t, s.SetHidden(1, true))

	msg, _ := s.At(1)
	assert.True(t, msg.Hidden)

	other, _ := s.At(0)
	assert.False(t, other.Hidden)
}

func TestSession_SetHidden_Holes(t *testing.T) {
	s := session.NewMemorySession()
	s.Load([]*protocol.Message{
		{Role: protocol.RoleAssistant, Content: "a"},
		nil,
		{Role: protocol.RoleAssistant, Content: "c"},
	})

	assert.False(t, s.SetHidden(1, true), "hole should be a no-op")
	assert.False(t, s.SetHidden(5, true), "out of range should be a no-op")
	assert.True(t, s.SetHidden(2, true))
	assert.Equal(t, 3, s.Len())
}

func TestSession_HideRange(t *testing.T) {
	tests := []struct {
		name        string
		start, end  int
		hidden      bool
		wantChanged int
		wantHidden  []bool
	}{
		{name: "prefix", start: 0, end: 3, hidden: true, wantChanged: 3, wantHidden: []bool{true, true, true, false, false}},
		{name: "clamped", start: -4, end: 99, hidden: true, wantChanged: 5, wantHidden: []bool{true, true, true, true, true}},
		{name: "empty range", start: 3, end: 3, hidden: true, wantChanged: 0, wantHidden: []bool{false, false, false, false, false}},
		{name: "unhide nothing", start: 0, end: 5, hidden: false, wantChanged: 0, wantHidden: []bool{false, false, false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(5)

			changed := s.HideRange(tt.start, tt.end, tt.hidden)
			assert.Equal(t, tt.wantChanged, changed)

			for i, want := range tt.wantHidden {
				msg, _ := s.At(i)
				assert.Equal(t, want, msg.Hidden, "index %d", i)
			}
		})
	}
}

func TestSession_HideRange_SkipsHoles(t *testing.T) {
	s := session.NewMemorySession()
	s.Load([]*protocol.Message{
		{Role: protocol.RoleAssistant},
		nil,
		{Role: protocol.RoleAssistant},
	})

	assert.Equal(t, 2, s.HideRange(0, 3, true))
}

func TestSession_DeleteMessage(t *testing.T) {
	s := newSession(3)

	require.True(t, s.DeleteMessage(1))
	require.Equal(t, 2, s.Len())

	msg, _ := s.At(1)
	assert.Equal(t, "msg 2", msg.Content)

	assert.False(t, s.DeleteMessage(7))
}

func TestSession_Load_Copies(t *testing.T) {
	original := &protocol.Message{Role: protocol.RoleAssistant, Content: "a"}
	s := session.NewMemorySession()
	s.Load([]*protocol.Message{original})

	original.Hidden = true

	msg, _ := s.At(0)
	assert.False(t, msg.Hidden, "Load should not alias caller messages")
}

func TestSession_Messages_SkipsHoles(t *testing.T) {
	s := session.NewMemorySession()
	s.Load([]*protocol.Message{
		{Role: protocol.RoleUser, Content: "a"},
		nil,
		{Role: protocol.RoleAssistant, Content: "c"},
	})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
}

func TestSession_Visible(t *testing.T) {
	s := newSession(4)
	s.HideRange(0, 2, true)

	visible := s.Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "msg 2", visible[0].Content)
	assert.Equal(t, "msg 3", visible[1].Content)
}

func TestSession_Messages_DefensiveCopy(t *testing.T) {
	s := session.NewMemorySession()
	s.AddMessage(protocol.NewMessage(protocol.RoleUser, "hello"))
	s.AddMessage(protocol.NewMessage(protocol.RoleAssistant, "hi"))

	msgs := s.Messages()
	msgs[0] = protocol.NewMessage(protocol.RoleSystem, "tampered")
	msgs[1].Hidden = true

	original := s.Messages()
	require.Len(t, original, 2)
	assert.Equal(t, protocol.RoleUser, original[0].Role)
	assert.False(t, original[1].Hidden)
}

func TestSession_Clear_ThenAdd(t *testing.T) {
	s := session.NewMemorySession()
	s.AddMessage(protocol.NewMessage(protocol.RoleUser, "first"))
	s.Clear()
	assert.Equal(t, 0, s.Len())

	s.AddMessage(protocol.NewMessage(protocol.RoleUser, "second"))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "second", msgs[0].Content)
}

func TestSession_Concurrent_AddAndWrite(t *testing.T) {
	s := newSession(10)
	const n = 100

	var wg sync.WaitGroup
	wg.Add(3 * n)
	for i := range n {
		go func() {
			defer wg.Done()
			s.AddMessage(protocol.NewMessage(protocol.RoleUser, "msg"))
		}()
		go func() {
			defer wg.Done()
			s.SetHidden(i%10, true)
		}()
		go func() {
			defer wg.Done()
			_ = s.Messages()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10+n, s.Len())
}
