// Package protocol defines the conversation message types shared by the
// session, retention and reconcile packages.
package protocol

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in a conversation.
//
// Hidden is the only attribute the retention engine mutates. A hidden
// message stays in the sequence but is excluded from the prompt the host
// builds. Messages authored by the user are protected and are never hidden
// by the retention policy.
type Message struct {
	Role    Role   `json:"role"`
	Content any    `json:"content"`
	Name    string `json:"name,omitempty"`
	Hidden  bool   `json:"hidden,omitempty"`
}

// NewMessage creates a visible Message with the given role and content.
//
// Example:
//
//	msg := protocol.NewMessage(protocol.RoleUser, "Hello, world!")
func NewMessage(role Role, content any) Message {
	return Message{Role: role, Content: content}
}

// Protected reports whether the message is exempt from automatic hiding.
func (m Message) Protected() bool {
	return m.Role == RoleUser
}

