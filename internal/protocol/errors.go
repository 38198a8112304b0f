package protocol

import "errors"

var (
	// ErrConnectionUnavailable means the responder could not be reached.
	ErrConnectionUnavailable = errors.New("responder isn't available, run wydyd")
	// ErrHandshakeFailed means the peer did not echo the magic token.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrPresenceMismatch means a presence probe was not echoed.
	ErrPresenceMismatch = errors.New("presence check failed")
	// ErrInvalidResponseCode means the peer sent a byte outside the closed set.
	ErrInvalidResponseCode = errors.New("invalid response code")
	// ErrSelectionCancelled means the operator left the menu without choosing.
	ErrSelectionCancelled = errors.New("selection cancelled")
	// ErrMalformed covers non-UTF-8 text, embedded newlines and bad numbers.
	ErrMalformed = errors.New("malformed field")
)
