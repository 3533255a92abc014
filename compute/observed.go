package compute

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/retention/observability"
)

// Observed reports every computation of the wrapped provider. The serve
// command wraps its handler's provider with it so each remote request shows
// up in the event stream.
type Observed struct {
	provider Provider
	observer observability.Observer
}

// Observe wraps provider so each Compute call emits EventServed, or
// EventFailed when it returns an error.
func Observe(provider Provider, observer observability.Observer) *Observed {
	return &Observed{provider: provider, observer: observer}
}

func (o *Observed) Name() string { return o.provider.Name() }

func (o *Observed) Compute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	res, err := o.provider.Compute(ctx, req)

	length := 0
	if req != nil {
		length = len(req.Projection)
	}

	if err != nil {
		o.observer.OnEvent(ctx, observability.Event{
			Type:      EventFailed,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "compute.Observed",
			Data: map[string]any{
				"provider": o.provider.Name(),
				"length":   length,
				"error":    err.Error(),
			},
		})
		return nil, err
	}

	o.observer.OnEvent(ctx, observability.Event{
		Type:      EventServed,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "compute.Observed",
		Data: map[string]any{
			"provider":    o.provider.Name(),
			"length":      length,
			"transitions": len(res.Transitions),
			"overrides":   res.OverrideCount,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		},
	})
	return res, nil
}

func (o *Observed) Close() error { return o.provider.Close() }
