package compute

import "github.com/tailored-agentic-units/retention/observability"

// Compute event types.
const (
	// EventComplete: Offloaded got a result from its primary provider.
	EventComplete observability.EventType = "compute.complete"
	// EventFallback: Offloaded fell back to local computation.
	EventFallback observability.EventType = "compute.fallback"
	// EventServed: an Observed provider finished a computation.
	EventServed observability.EventType = "compute.served"
	// EventFailed: an Observed provider returned an error.
	EventFailed observability.EventType = "compute.failed"
)
