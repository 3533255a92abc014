package session

import "github.com/tailored-agentic-units/retention/core/protocol"

// Config holds session initialization parameters.
type Config struct {
	// Seed messages loaded into a new session, mainly for simulations and
	// tests. A nil entry is a hole.
	Seed []*SeedMessage `json:"seed,omitempty"`
}

// SeedMessage is the config form of a message. Protected seeds become user
// messages; the rest are assistant messages.
type SeedMessage struct {
	Content   string `json:"content"`
	Protected bool   `json:"protected,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
}

// DefaultConfig returns the default session configuration (empty session).
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if len(source.Seed) > 0 {
		c.Seed = source.Seed
	}
}

// New creates a Session from configuration. Currently returns an in-memory
// session loaded with the configured seed.
func New(cfg *Config) (Session, error) {
	s := NewMemorySession()
	if len(cfg.Seed) == 0 {
		return s, nil
	}
	s.Load(cfg.messages())
	return s, nil
}

func (c *Config) messages() []*protocol.Message {
	msgs := make([]*protocol.Message, len(c.Seed))
	for i, seed := range c.Seed {
		if seed == nil {
			continue
		}
		role := protocol.RoleAssistant
		if seed.Protected {
			role = protocol.RoleUser
		}
		msgs[i] = &protocol.Message{Role: role, Content: seed.Content, Hidden: seed.Hidden}
	}
	return msgs
}
