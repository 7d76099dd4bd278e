package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

// deviceStatus is the device-level state payload. Zone state lives on the
// per-zone topics, so it is deliberately excluded here.
type deviceStatus struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	ModelName string `json:"model_name,omitempty"`
	Reachable bool   `json:"reachable"`
	GroupID   string `json:"group_id,omitempty"`
}

func marshalZone(zone musiccast.ZoneSnapshot) ([]byte, error) {
	return json.Marshal(zone)
}

func marshalDevice(dev musiccast.DeviceSnapshot) ([]byte, error) {
	return json.Marshal(deviceStatus{
		ID:        dev.ID,
		Host:      dev.Host,
		ModelName: dev.ModelName,
		Reachable: dev.Reachable,
		GroupID:   dev.GroupID,
	})
}

func marshalGroup(grp musiccast.GroupSnapshot) ([]byte, error) {
	return json.Marshal(grp)
}

// parseCommand maps a command field and payload onto a typed zone command.
//
// Payloads are JSON values: `"on"`, `42`, `true`. Bare words like `on` or
// `up`, common when publishing from shell tools, are accepted as strings.
func parseCommand(zoneID, field string, payload []byte) (musiccast.Command, error) {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		raw = string(bytes.TrimSpace(payload))
	}

	switch field {
	case "power":
		s, ok := raw.(string)
		if !ok {
			return musiccast.Command{}, fmt.Errorf("%w: power wants a string, got %T", ErrBadPayload, raw)
		}
		return musiccast.SetPower(zoneID, musiccast.PowerState(s)), nil

	case "volume":
		switch v := raw.(type) {
		case float64:
			return musiccast.SetVolume(zoneID, int(v)), nil
		case string:
			// "up" and "down" move by the device's default step; "up:3"
			// names an explicit step.
			word, step, err := parseVolumeWord(v)
			if err != nil {
				return musiccast.Command{}, err
			}
			if word == "up" {
				return musiccast.VolumeUp(zoneID, step), nil
			}
			return musiccast.VolumeDown(zoneID, step), nil
		default:
			return musiccast.Command{}, fmt.Errorf("%w: volume wants a number or up/down, got %T", ErrBadPayload, raw)
		}

	case "mute":
		switch v := raw.(type) {
		case bool:
			return musiccast.SetMute(zoneID, v), nil
		case string:
			// Accept bare true/false published without JSON quoting.
			switch v {
			case "true":
				return musiccast.SetMute(zoneID, true), nil
			case "false":
				return musiccast.SetMute(zoneID, false), nil
			}
			return musiccast.Command{}, fmt.Errorf("%w: mute %q", ErrBadPayload, v)
		default:
			return musiccast.Command{}, fmt.Errorf("%w: mute wants a bool, got %T", ErrBadPayload, raw)
		}

	case "sound_program":
		s, ok := raw.(string)
		if !ok || s == "" {
			return musiccast.Command{}, fmt.Errorf("%w: sound_program wants a non-empty string", ErrBadPayload)
		}
		return musiccast.SetSoundProgram(zoneID, s), nil

	case "input":
		s, ok := raw.(string)
		if !ok || s == "" {
			return musiccast.Command{}, fmt.Errorf("%w: input wants a non-empty string", ErrBadPayload)
		}
		return musiccast.SetInput(zoneID, s), nil

	case "playback":
		s, ok := raw.(string)
		if !ok {
			return musiccast.Command{}, fmt.Errorf("%w: playback wants a string, got %T", ErrBadPayload, raw)
		}
		return musiccast.SetPlayback(zoneID, musiccast.PlaybackState(s)), nil

	case "sleep":
		v, ok := raw.(float64)
		if !ok {
			return musiccast.Command{}, fmt.Errorf("%w: sleep wants minutes as a number, got %T", ErrBadPayload, raw)
		}
		return musiccast.SetSleep(zoneID, int(v)), nil

	default:
		return musiccast.Command{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// parseVolumeWord splits a relative volume payload into direction and step.
func parseVolumeWord(v string) (string, int, error) {
	word, rest, found := strings.Cut(v, ":")
	if word != "up" && word != "down" {
		return "", 0, fmt.Errorf("%w: volume %q", ErrBadPayload, v)
	}
	if !found {
		return word, 0, nil
	}
	step, err := strconv.Atoi(rest)
	if err != nil || step < 1 {
		return "", 0, fmt.Errorf("%w: volume step %q", ErrBadPayload, rest)
	}
	return word, step, nil
}
