package reconcile

import "errors"

var (
	// ErrPersist wraps settings persistence failures. Transitions of the
	// failed pass have already been applied to the sequence.
	ErrPersist = errors.New("failed to persist reconciliation state")

	// ErrPresent wraps presentation refresh failures.
	ErrPresent = errors.New("failed to refresh presentation")

	// ErrClosed is returned by a Driver used after Close.
	ErrClosed = errors.New("driver closed")

	// ErrUnknownTrigger is returned for trigger values outside the defined set.
	ErrUnknownTrigger = errors.New("unknown trigger")
)
