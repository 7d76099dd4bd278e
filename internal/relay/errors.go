package relay

import "errors"

// Sentinel errors for relay operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownField is returned when a command topic names a field the
	// relay cannot map to a command.
	ErrUnknownField = errors.New("relay: unknown command field")

	// ErrBadPayload is returned when a command payload cannot be decoded
	// into the value the field expects.
	ErrBadPayload = errors.New("relay: malformed command payload")
)
