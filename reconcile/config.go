package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/tailored-agentic-units/retention/compute"
	"github.com/tailored-agentic-units/retention/core/config"
	"github.com/tailored-agentic-units/retention/session"
	"github.com/tailored-agentic-units/retention/settings"
)

const defaultDebounce = 100 * time.Millisecond

// Config holds initialization parameters for the driver and its subsystems.
// Each subsystem section delegates to that subsystem's constructor.
type Config struct {
	Session  session.Config  `json:"session"`
	Settings settings.Config `json:"settings"`
	Compute  compute.Config  `json:"compute"`
	// Debounce is the quiet period that coalesces Notify calls.
	Debounce config.Duration `json:"debounce,omitempty"`
	// Observer names a registered observer; empty uses slog.
	Observer string `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Session:  session.DefaultConfig(),
		Settings: settings.DefaultConfig(),
		Compute:  compute.DefaultConfig(),
		Debounce: config.Duration(defaultDebounce),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Session.Merge(&source.Session)
	c.Settings.Merge(&source.Settings)
	c.Compute.Merge(&source.Compute)

	if source.Debounce > 0 {
		c.Debounce = source.Debounce
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, which may contain comments and
// trailing commas, merges it with defaults, and returns the result.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
