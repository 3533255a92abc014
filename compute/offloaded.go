package compute

import (
	"context"
	"errors"
	"time"

	"github.com/tailored-agentic-units/retention/observability"
)

const defaultTimeout = 2 * time.Second

// Offloaded sends requests to a primary provider and falls back to Local
// when the attempt fails or outlives its timeout. Both paths run the same
// computation, so the caller cannot tell them apart by result.
type Offloaded struct {
	primary   Provider
	local     *Local
	timeout   time.Duration
	threshold int
	observer  observability.Observer
	stats     Stats
}

// Option configures an Offloaded provider.
type Option func(*Offloaded)

// WithTimeout bounds each offloaded attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Offloaded) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithThreshold computes projections shorter than n locally without
// offloading.
func WithThreshold(n int) Option {
	return func(o *Offloaded) {
		o.threshold = n
	}
}

// WithObserver sets the observer for fallback and completion events.
func WithObserver(observer observability.Observer) Option {
	return func(o *Offloaded) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// NewOffloaded wraps primary with a timeout and a local fallback.
func NewOffloaded(primary Provider, opts ...Option) *Offloaded {
	o := &Offloaded{
		primary:  primary,
		local:    NewLocal(),
		timeout:  defaultTimeout,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Offloaded) Name() string { return "offloaded/" + o.primary.Name() }

// Stats returns a snapshot of the counters.
func (o *Offloaded) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}

func (o *Offloaded) Compute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if len(req.Projection) < o.threshold {
		o.stats.recordLocal()
		return o.local.Compute(ctx, req)
	}

	start := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := o.primary.Compute(attemptCtx, req)
	if err == nil {
		o.stats.recordOffloaded()
		o.observer.OnEvent(ctx, observability.Event{
			Type:      EventComplete,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    "compute.Offloaded",
			Data: map[string]any{
				"provider":    o.primary.Name(),
				"length":      len(req.Projection),
				"transitions": len(res.Transitions),
				"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			},
		})
		return res, nil
	}

	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	o.stats.recordFallback(timedOut)
	o.observer.OnEvent(ctx, observability.Event{
		Type:      EventFallback,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "compute.Offloaded",
		Data: map[string]any{
			"provider":  o.primary.Name(),
			"timed_out": timedOut,
			"error":     err.Error(),
		},
	})

	return o.local.Compute(ctx, req)
}

// Close closes the primary provider.
func (o *Offloaded) Close() error {
	return o.primary.Close()
}
