package compute

import (
	"fmt"
	"time"

	"github.com/tailored-agentic-units/retention/core/config"
	"github.com/tailored-agentic-units/retention/observability"
)

// Compute modes.
const (
	ModeLocal  = "local"
	ModeWorker = "worker"
	ModeRemote = "remote"
)

// Config selects and tunes the compute provider.
type Config struct {
	Mode             string          `json:"mode,omitempty"`
	Codec            string          `json:"codec,omitempty"`
	URL              string          `json:"url,omitempty"`
	Workers          int             `json:"workers,omitempty"`
	Timeout          config.Duration `json:"timeout,omitempty"`
	OffloadThreshold int             `json:"offload_threshold,omitempty"`
}

// DefaultConfig computes locally. Offloading modes use the CBOR codec, one
// worker and a two second timeout.
func DefaultConfig() Config {
	return Config{
		Mode:    ModeLocal,
		Codec:   CodecCBOR,
		Workers: 1,
		Timeout: config.Duration(defaultTimeout),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Mode != "" {
		c.Mode = source.Mode
	}
	if source.Codec != "" {
		c.Codec = source.Codec
	}
	if source.URL != "" {
		c.URL = source.URL
	}
	if source.Workers > 0 {
		c.Workers = source.Workers
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if source.OffloadThreshold > 0 {
		c.OffloadThreshold = source.OffloadThreshold
	}
}

// New creates the provider described by cfg. Offloading modes are wrapped
// in Offloaded so a failed attempt falls back to local computation.
func New(cfg *Config, observer observability.Observer) (Provider, error) {
	if cfg.Mode == ModeLocal || cfg.Mode == "" {
		return NewLocal(), nil
	}

	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute provider: %w", err)
	}

	var primary Provider
	switch cfg.Mode {
	case ModeWorker:
		primary = NewWorker(codec, cfg.Workers)
	case ModeRemote:
		if cfg.URL == "" {
			return nil, fmt.Errorf("failed to create compute provider: %w", ErrMissingURL)
		}
		primary = NewRemote(nil, cfg.URL, codec)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, cfg.Mode)
	}

	return NewOffloaded(primary,
		WithTimeout(time.Duration(cfg.Timeout)),
		WithThreshold(cfg.OffloadThreshold),
		WithObserver(observer),
	), nil
}
