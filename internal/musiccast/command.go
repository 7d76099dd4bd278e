package musiccast

import "fmt"

// CommandKind enumerates the commands a zone accepts.
type CommandKind string

// Command kinds.
const (
	CmdSetPower        CommandKind = "set_power"
	CmdSetVolume       CommandKind = "set_volume"
	CmdVolumeUp        CommandKind = "volume_up"
	CmdVolumeDown      CommandKind = "volume_down"
	CmdSetMute         CommandKind = "set_mute"
	CmdSetInput        CommandKind = "set_input"
	CmdSetSoundProgram CommandKind = "set_sound_program"
	CmdSetPlayback     CommandKind = "set_playback"
	CmdSetSleep        CommandKind = "set_sleep"
)

// Command is a typed control request for one zone. Build commands with the
// constructors below and validate against the zone's features before
// sending.
type Command struct {
	Kind   CommandKind
	ZoneID string

	Power        PowerState
	Volume       int
	Step         int
	Mute         bool
	Input        string
	SoundProgram string
	Playback     PlaybackState
	Sleep        int
}

// SetPower builds a power command.
func SetPower(zoneID string, p PowerState) Command {
	return Command{Kind: CmdSetPower, ZoneID: zoneID, Power: p}
}

// SetVolume builds an absolute volume command.
func SetVolume(zoneID string, v int) Command {
	return Command{Kind: CmdSetVolume, ZoneID: zoneID, Volume: v}
}

// VolumeUp builds a relative volume increase command. A step of zero uses
// the device's own default step.
func VolumeUp(zoneID string, step int) Command {
	return Command{Kind: CmdVolumeUp, ZoneID: zoneID, Step: step}
}

// VolumeDown builds a relative volume decrease command. A step of zero
// uses the device's own default step.
func VolumeDown(zoneID string, step int) Command {
	return Command{Kind: CmdVolumeDown, ZoneID: zoneID, Step: step}
}

// SetMute builds a mute command.
func SetMute(zoneID string, on bool) Command {
	return Command{Kind: CmdSetMute, ZoneID: zoneID, Mute: on}
}

// SetInput builds an input-select command.
func SetInput(zoneID, input string) Command {
	return Command{Kind: CmdSetInput, ZoneID: zoneID, Input: input}
}

// SetSoundProgram builds a sound-program select command.
func SetSoundProgram(zoneID, program string) Command {
	return Command{Kind: CmdSetSoundProgram, ZoneID: zoneID, SoundProgram: program}
}

// SetPlayback builds a playback transport command.
func SetPlayback(zoneID string, p PlaybackState) Command {
	return Command{Kind: CmdSetPlayback, ZoneID: zoneID, Playback: p}
}

// SetSleep builds a sleep timer command. Minutes of zero cancels the timer.
func SetSleep(zoneID string, minutes int) Command {
	return Command{Kind: CmdSetSleep, ZoneID: zoneID, Sleep: minutes}
}

// Validate checks the command against the zone's advertised capabilities
// and value ranges.
func (c Command) Validate(z ZoneFeatures) error {
	if c.ZoneID == "" {
		return fmt.Errorf("%w: empty zone", ErrInvalidCommand)
	}

	switch c.Kind {
	case CmdSetPower:
		if !z.Has(CapPower) {
			return fmt.Errorf("%w: %s on zone %s", ErrUnsupportedCommand, c.Kind, z.ID)
		}
		if c.Power != PowerOn && c.Power != PowerStandby {
			return fmt.Errorf("%w: power %q", ErrInvalidCommand, c.Power)
		}
	case CmdSetVolume:
		if !z.Has(CapVolume) {
			return fmt.Errorf("%w: %s on zone %s", ErrUnsupportedCommand, c.Kind, z.ID)
		}
		if err := z.ValidateVolume(c.Volume); err != nil {
			return err
		}
	case CmdVolumeUp, CmdVolumeDown:
		if !z.Has(CapVolume) {
			return fmt.Errorf("%w: %s on zone %s", ErrUnsupportedCommand, c.Kind, z.ID)
		}
		if c.Step < 0 {
			return fmt.Errorf("%w: step %d", ErrInvalidCommand, c.Step)
		}
	case CmdSetMute:
		if !z.Has(CapMute) {
			return fmt.Errorf("%w: %s on zone %s", ErrUnsupportedCommand, c.Kind, z.ID)
		}
	case CmdSetInput:
		if !z.HasInput(c.Input) {
			return fmt.Errorf("%w: %q on zone %s", ErrInvalidInput, c.Input, z.ID)
		}
	case CmdSetSoundProgram:
		if !z.Has(CapSoundProgram) {
			return fmt.Errorf("%w: %s on zone %s", ErrUnsupportedCommand, c.Kind, z.ID)
		}
		if !z.HasSoundProgram(c.SoundProgram) {
			return fmt.Errorf("%w: %q on zone %s", ErrInvalidSoundProgram, c.SoundProgram, z.ID)
		}
	case CmdSetPlayback:
		switch c.Playback {
		case PlaybackPlay, PlaybackPause, PlaybackStop:
		default:
			return fmt.Errorf("%w: playback %q", ErrInvalidCommand, c.Playback)
		}
	case CmdSetSleep:
		if !z.Has(CapSleep) {
			return fmt.Errorf("%w: %s on zone %s", ErrUnsupportedCommand, c.Kind, z.ID)
		}
		if c.Sleep < 0 || c.Sleep > 120 {
			return fmt.Errorf("%w: sleep %d minutes", ErrInvalidCommand, c.Sleep)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, c.Kind)
	}

	return nil
}
