package engine

import "errors"

// Engine errors.
var (
	// ErrUnknownDevice indicates a merge or lookup against a device the
	// engine is not tracking.
	ErrUnknownDevice = errors.New("engine: unknown device")

	// ErrUnknownZone indicates a merge against a zone the device's
	// features do not list.
	ErrUnknownZone = errors.New("engine: unknown zone")

	// ErrMalformedEvent indicates an unparseable UDP datagram. Dropped and
	// counted, never surfaced to subscribers.
	ErrMalformedEvent = errors.New("engine: malformed event")

	// ErrDeviceExists indicates AddDevice for an already-tracked device.
	ErrDeviceExists = errors.New("engine: device already tracked")

	// ErrUnknownGroup indicates a group operation against a group the
	// coordinator is not tracking.
	ErrUnknownGroup = errors.New("engine: unknown group")

	// ErrNotRunning indicates an operation that requires a started engine.
	ErrNotRunning = errors.New("engine: not running")
)
