package musiccast

import "errors"

// Domain errors.
var (
	// ErrUnknownZone indicates a zone ID the device's features do not list.
	ErrUnknownZone = errors.New("musiccast: unknown zone")

	// ErrUnsupportedCommand indicates a command the target zone's feature
	// set does not support.
	ErrUnsupportedCommand = errors.New("musiccast: command not supported by zone")

	// ErrVolumeOutOfRange indicates a volume outside the zone's advertised
	// [min, max] range.
	ErrVolumeOutOfRange = errors.New("musiccast: volume out of range")

	// ErrInvalidInput indicates an input name the zone does not offer.
	ErrInvalidInput = errors.New("musiccast: input not available on zone")

	// ErrInvalidSoundProgram indicates a sound program the zone does not
	// offer.
	ErrInvalidSoundProgram = errors.New("musiccast: sound program not available on zone")

	// ErrInvalidCommand indicates a structurally invalid command value.
	ErrInvalidCommand = errors.New("musiccast: invalid command")
)
