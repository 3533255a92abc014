package compute

import "errors"

var (
	// ErrInvalidRequest is returned for requests no provider can compute.
	ErrInvalidRequest = errors.New("invalid compute request")

	// ErrClosed is returned by providers used after Close.
	ErrClosed = errors.New("compute provider closed")

	// ErrRemote wraps failures of the remote compute service.
	ErrRemote = errors.New("remote compute failed")

	// ErrUnknownMode is returned by New for an unrecognized Config.Mode.
	ErrUnknownMode = errors.New("unknown compute mode")

	// ErrMissingURL is returned by New for remote mode without a URL.
	ErrMissingURL = errors.New("remote compute url not configured")

	// ErrUnknownCodec is returned for an unrecognized codec name.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrUnsupportedType is returned by codecs asked to encode or decode a
	// value other than a Request or Response.
	ErrUnsupportedType = errors.New("unsupported message type")
)
