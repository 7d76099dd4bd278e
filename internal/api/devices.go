package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vigonotion/musiccast-core/internal/engine"
	"github.com/vigonotion/musiccast-core/internal/musiccast"
	"github.com/vigonotion/musiccast-core/internal/musiccast/transport"
)

// addDeviceRequest is the request body for POST /devices.
type addDeviceRequest struct {
	Host string `json:"host"`
}

// zoneCommandRequest is the request body for POST /devices/{id}/zones/{zone}/command.
//
// Value is interpreted per command: a string for set_power, set_input,
// set_sound_program, and set_playback, a number for set_volume and
// set_sleep, a boolean for set_mute, and an optional step number for
// volume_up and volume_down.
type zoneCommandRequest struct {
	Command string          `json:"command"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// handleListDevices returns all tracked devices with their current state.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": snap.Devices,
		"count":   len(snap.Devices),
	})
}

// handleAddDevice starts tracking a new device by host address.
//
// The engine probes the device synchronously, so the response carries the
// discovered device ID on success.
func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Host == "" {
		writeBadRequest(w, "host is required")
		return
	}

	deviceID, err := s.engine.AddDevice(r.Context(), req.Host)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrDeviceExists):
			writeConflict(w, "device already tracked")
		case errors.Is(err, transport.ErrTransport):
			writeError(w, http.StatusBadGateway, ErrCodeUpstream, "device did not respond: "+err.Error())
		default:
			s.logger.Error("add device failed", "host", req.Host, "error", err)
			writeInternalError(w, "failed to add device")
		}
		return
	}

	s.logger.Info("device added via API", "device_id", deviceID, "host", req.Host)

	if dev, ok := s.engine.Snapshot().Device(deviceID); ok {
		writeJSON(w, http.StatusCreated, dev)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": deviceID})
}

// handleGetDevice returns one device's current state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, ok := s.engine.Snapshot().Device(id)
	if !ok {
		writeNotFound(w, "device not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleRemoveDevice stops tracking a device.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.RemoveDevice(id); err != nil {
		if errors.Is(err, engine.ErrUnknownDevice) {
			writeNotFound(w, "device not found: "+id)
			return
		}
		s.logger.Error("remove device failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to remove device")
		return
	}

	s.logger.Info("device removed via API", "device_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetZone returns one zone's current state.
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	zoneID := chi.URLParam(r, "zone")

	dev, ok := s.engine.Snapshot().Device(id)
	if !ok {
		writeNotFound(w, "device not found: "+id)
		return
	}
	zone, ok := dev.Zone(zoneID)
	if !ok {
		writeNotFound(w, "zone not found: "+zoneID)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// handleZoneCommand validates and dispatches a control command to a zone.
//
// Commands are accepted (202) once the device confirms them; the resulting
// state change arrives asynchronously via the engine's change feed.
func (s *Server) handleZoneCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	zoneID := chi.URLParam(r, "zone")

	var req zoneCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	cmd, err := buildCommand(zoneID, req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.engine.Send(r.Context(), id, cmd); err != nil {
		switch {
		case errors.Is(err, engine.ErrUnknownDevice):
			writeNotFound(w, "device not found: "+id)
		case errors.Is(err, engine.ErrUnknownZone), errors.Is(err, musiccast.ErrUnknownZone):
			writeNotFound(w, "zone not found: "+zoneID)
		case errors.Is(err, musiccast.ErrInvalidCommand),
			errors.Is(err, musiccast.ErrUnsupportedCommand),
			errors.Is(err, musiccast.ErrVolumeOutOfRange),
			errors.Is(err, musiccast.ErrInvalidInput),
			errors.Is(err, musiccast.ErrInvalidSoundProgram):
			writeBadRequest(w, err.Error())
		case errors.Is(err, transport.ErrTransport):
			writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
		default:
			s.logger.Error("zone command failed", "device_id", id, "zone_id", zoneID, "command", req.Command, "error", err)
			writeInternalError(w, "command dispatch failed")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"command": req.Command,
	})
}

// buildCommand converts an API request into a typed zone command. Value type
// errors surface here; capability errors surface from the engine's validation.
func buildCommand(zoneID string, req zoneCommandRequest) (musiccast.Command, error) {
	switch musiccast.CommandKind(req.Command) {
	case musiccast.CmdSetPower:
		v, err := stringValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.SetPower(zoneID, musiccast.PowerState(v)), nil

	case musiccast.CmdSetVolume:
		v, err := intValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.SetVolume(zoneID, v), nil

	case musiccast.CmdVolumeUp:
		step, err := optionalIntValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.VolumeUp(zoneID, step), nil

	case musiccast.CmdVolumeDown:
		step, err := optionalIntValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.VolumeDown(zoneID, step), nil

	case musiccast.CmdSetMute:
		var on bool
		if err := json.Unmarshal(req.Value, &on); err != nil {
			return musiccast.Command{}, errors.New("value must be a boolean")
		}
		return musiccast.SetMute(zoneID, on), nil

	case musiccast.CmdSetInput:
		v, err := stringValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.SetInput(zoneID, v), nil

	case musiccast.CmdSetSoundProgram:
		v, err := stringValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.SetSoundProgram(zoneID, v), nil

	case musiccast.CmdSetPlayback:
		v, err := stringValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.SetPlayback(zoneID, musiccast.PlaybackState(v)), nil

	case musiccast.CmdSetSleep:
		v, err := intValue(req.Value)
		if err != nil {
			return musiccast.Command{}, err
		}
		return musiccast.SetSleep(zoneID, v), nil

	default:
		return musiccast.Command{}, errors.New("unknown command: " + req.Command)
	}
}

// stringValue decodes a JSON string value.
func stringValue(raw json.RawMessage) (string, error) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", errors.New("value must be a string")
	}
	if v == "" {
		return "", errors.New("value must not be empty")
	}
	return v, nil
}

// intValue decodes a JSON number value, rejecting fractions.
func intValue(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, errors.New("value must be a number")
	}
	v := int(f)
	if float64(v) != f {
		return 0, errors.New("value must be an integer, got " + strconv.FormatFloat(f, 'f', -1, 64))
	}
	return v, nil
}

// optionalIntValue decodes an optional JSON number value, zero when absent.
func optionalIntValue(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	return intValue(raw)
}
