// Package compute runs full reconciliations behind a serialization boundary.
//
// A Provider receives only the projection of a sequence, the target
// retention count and the previous cache, and returns the transitions and
// the replacement cache. Local computes in the caller's goroutine, Worker on
// background goroutines fed with encoded frames, and Remote over Connect.
// Offloaded wraps an offloading provider with a timeout and a local fallback,
// so callers always receive a result.
package compute

import (
	"context"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/retention/retention"
)

// Request is the input of a full reconciliation.
type Request struct {
	Projection retention.Projection `cbor:"projection" json:"projection"`
	TargetN    int                  `cbor:"target_n" json:"target_n"`
	Previous   retention.Cache      `cbor:"previous" json:"previous"`
}

// Response is the outcome of a full reconciliation.
type Response struct {
	Transitions     []retention.Transition `cbor:"transitions,omitempty" json:"transitions,omitempty"`
	Cache           retention.Cache        `cbor:"cache" json:"cache"`
	ComputeDuration time.Duration          `cbor:"compute_duration" json:"compute_duration"`
	OverrideCount   int                    `cbor:"override_count" json:"override_count"`
}

// Provider computes full reconciliations.
type Provider interface {
	Name() string
	Compute(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// Validate reports whether the request can be computed.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := retention.ValidateRetention(r.TargetN); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Run computes req in the calling goroutine.
func Run(req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res := retention.ComputeFull(req.Projection, req.TargetN, req.Previous)
	return &Response{
		Transitions:     res.Transitions,
		Cache:           res.Cache,
		ComputeDuration: res.Duration,
		OverrideCount:   len(res.Overrides),
	}, nil
}
