package retention

import "errors"

// ErrInvalidRetention is returned for retention counts that are negative or
// not integers. Callers keep their previous valid count.
var ErrInvalidRetention = errors.New("invalid retention count")
