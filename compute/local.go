package compute

import "context"

// Local computes in the caller's goroutine. It never fails for a valid
// request and ignores cancellation: once a pass starts it runs to the end.
type Local struct{}

// NewLocal creates a Local provider.
func NewLocal() *Local {
	return &Local{}
}

func (*Local) Name() string { return "local" }

func (*Local) Compute(ctx context.Context, req *Request) (*Response, error) {
	return Run(req)
}

func (*Local) Close() error { return nil }
