package settings

import "errors"

// Sentinel errors for store and record operations.
var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrLoadFailed     = errors.New("load failed")
	ErrSaveFailed     = errors.New("save failed")
	ErrCorruptRecord  = errors.New("corrupt settings record")
	ErrUnknownBackend = errors.New("unknown settings backend")
	ErrMissingPath    = errors.New("settings backend requires a path")
)
