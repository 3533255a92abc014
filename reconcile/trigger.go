package reconcile

import (
	"fmt"
	"strings"
)

// Trigger is the event that starts a reconciliation pass. Values are ordered
// by precedence: when debounced triggers coalesce, the highest wins.
type Trigger int

const (
	// TriggerAppended: messages were added at the end of the sequence.
	TriggerAppended Trigger = iota + 1
	// TriggerDeleted: one or more messages were removed.
	TriggerDeleted
	// TriggerBulkLoaded: the sequence was replaced or reloaded wholesale.
	TriggerBulkLoaded
	// TriggerSettingChanged: the retention count changed.
	TriggerSettingChanged
	// TriggerConversationChanged: the active conversation switched.
	TriggerConversationChanged
)

func (t Trigger) String() string {
	switch t {
	case TriggerAppended:
		return "appended"
	case TriggerDeleted:
		return "deleted"
	case TriggerBulkLoaded:
		return "bulk_loaded"
	case TriggerSettingChanged:
		return "setting_changed"
	case TriggerConversationChanged:
		return "conversation_changed"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// ParseTrigger parses the String form of a trigger.
func ParseTrigger(s string) (Trigger, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for t := TriggerAppended; t <= TriggerConversationChanged; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTrigger, s)
}

func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Trigger) UnmarshalText(text []byte) error {
	parsed, err := ParseTrigger(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Valid reports whether t is a defined trigger.
func (t Trigger) Valid() bool {
	return t >= TriggerAppended && t <= TriggerConversationChanged
}

// merge returns the trigger that wins when t and other coalesce.
func (t Trigger) merge(other Trigger) Trigger {
	return max(t, other)
}

// Strategy names how a pass computed its transitions.
type Strategy string

const (
	StrategyFull        Strategy = "full"
	StrategyIncremental Strategy = "incremental"
	StrategyRange       Strategy = "range"
)
