package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

// Logger is the minimal logging interface engine components need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// fieldValue is one field's current value plus the merge metadata that
// drives the last-writer-wins rule.
type fieldValue struct {
	value  any
	at     time.Time
	source musiccast.Source
}

type zoneState struct {
	id       string
	name     string
	features musiccast.ZoneFeatures
	fields   map[musiccast.Field]fieldValue
}

type deviceState struct {
	info      musiccast.DeviceInfo
	features  musiccast.Features
	reachable bool
	groupID   string
	zones     map[string]*zoneState
	zoneOrder []string
}

// Store is the authoritative in-memory model of all tracked devices. It is
// the single writer-serialization point: every mutation is atomic at the
// granularity of one field-level delta, and every read returns a snapshot
// frozen at the moment of the read.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*deviceState
	order   []string
	logger  Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		devices: make(map[string]*deviceState),
		logger:  noopLogger{},
	}
}

// SetLogger attaches a logger.
func (s *Store) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// AddDevice registers a device and its zones. Devices start unreachable
// until their first successful poll.
func (s *Store) AddDevice(info musiccast.DeviceInfo, features musiccast.Features, zoneNames map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[info.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, info.ID)
	}

	dev := &deviceState{
		info:     info,
		features: features,
		zones:    make(map[string]*zoneState, len(features.Zones)),
	}
	for _, zf := range features.Zones {
		dev.zones[zf.ID] = &zoneState{
			id:       zf.ID,
			name:     zoneNames[zf.ID],
			features: zf,
			fields:   make(map[musiccast.Field]fieldValue),
		}
		dev.zoneOrder = append(dev.zoneOrder, zf.ID)
	}

	s.devices[info.ID] = dev
	s.order = append(s.order, info.ID)
	return nil
}

// RemoveDevice deletes a device and all its state.
func (s *Store) RemoveDevice(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[deviceID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	delete(s.devices, deviceID)
	for i, id := range s.order {
		if id == deviceID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether the device is tracked.
func (s *Store) Has(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.devices[deviceID]
	return ok
}

// ResolveHost returns the ID of the tracked device with the given host.
func (s *Store) ResolveHost(host string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, dev := range s.devices {
		if dev.info.Host == host {
			return id, true
		}
	}
	return "", false
}

// Info returns a tracked device's identity.
func (s *Store) Info(deviceID string) (musiccast.DeviceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceID]
	if !ok {
		return musiccast.DeviceInfo{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return dev.info, nil
}

// ZoneInputs returns each zone's currently selected input, keyed by zone
// ID. Zones that have not reported an input yet are absent.
func (s *Store) ZoneInputs(deviceID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(dev.zones))
	for id, z := range dev.zones {
		if fv, ok := z.fields[musiccast.FieldInput]; ok {
			if v, ok := fv.value.(string); ok {
				out[id] = v
			}
		}
	}
	return out
}

// Features returns the capability report of a tracked device.
func (s *Store) Features(deviceID string) (musiccast.Features, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceID]
	if !ok {
		return musiccast.Features{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return dev.features, nil
}

// UpdateFeatures replaces a device's capability report after a firmware
// function change. Zones present in the new report keep their state; new
// zones start empty; vanished zones are dropped.
func (s *Store) UpdateFeatures(deviceID string, features musiccast.Features) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	dev.features = features
	zones := make(map[string]*zoneState, len(features.Zones))
	var order []string
	for _, zf := range features.Zones {
		if existing, ok := dev.zones[zf.ID]; ok {
			existing.features = zf
			zones[zf.ID] = existing
		} else {
			zones[zf.ID] = &zoneState{
				id:       zf.ID,
				features: zf,
				fields:   make(map[musiccast.Field]fieldValue),
			}
		}
		order = append(order, zf.ID)
	}
	dev.zones = zones
	dev.zoneOrder = order
	return nil
}

// Merge applies a field-level delta from one source. For each field the
// delta is accepted only if it is not older than the stored value, with
// last-writer-wins by receipt time; an exact timestamp tie is resolved in
// favour of push over poll. Returns the fields whose value actually
// changed, so callers can suppress no-op notifications.
func (s *Store) Merge(deviceID, zoneID string, delta musiccast.Delta, source musiccast.Source, receivedAt time.Time) ([]musiccast.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	zone, ok := dev.zones[zoneID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownZone, deviceID, zoneID)
	}

	var changed []musiccast.Field
	for field, value := range delta {
		if field == musiccast.FieldVolume {
			v, ok := value.(int)
			if !ok || zone.features.ValidateVolume(v) != nil {
				// A value outside the advertised range is a defect in the
				// report, not a state change. Keep the prior value.
				s.logger.Warn("rejecting out-of-range volume",
					"device", deviceID, "zone", zoneID, "volume", value,
					"min", zone.features.VolumeMin, "max", zone.features.VolumeMax)
				continue
			}
		}

		existing, ok := zone.fields[field]
		if ok && !wins(source, receivedAt, existing) {
			continue
		}
		zone.fields[field] = fieldValue{value: value, at: receivedAt, source: source}
		if !ok || existing.value != value {
			changed = append(changed, field)
		}
	}

	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })
	return changed, nil
}

// wins reports whether an incoming (source, receipt time) pair supersedes
// the stored field. Poll and push carry equal authority; recency decides,
// and an exact tie prefers push because a datagram reflects a device-side
// change the poll cycle has not observed yet.
func wins(source musiccast.Source, at time.Time, existing fieldValue) bool {
	if at.After(existing.at) {
		return true
	}
	if at.Equal(existing.at) {
		return source == musiccast.SourcePush && existing.source == musiccast.SourcePoll
	}
	return false
}

// SetReachable flips the device-level reachability flag. Returns true when
// the flag actually changed.
func (s *Store) SetReachable(deviceID string, reachable bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if dev.reachable == reachable {
		return false, nil
	}
	dev.reachable = reachable
	return true, nil
}

// SetGroupID records which group a device currently belongs to. Empty
// means none.
func (s *Store) SetGroupID(deviceID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	dev.groupID = groupID
	return nil
}

// Snapshot returns immutable copies of every tracked device, frozen at the
// moment of the call.
func (s *Store) Snapshot() []musiccast.DeviceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]musiccast.DeviceSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.devices[id].snapshot())
	}
	return out
}

func (d *deviceState) snapshot() musiccast.DeviceSnapshot {
	ds := musiccast.DeviceSnapshot{
		ID:        d.info.ID,
		Host:      d.info.Host,
		ModelName: d.info.ModelName,
		Reachable: d.reachable,
		GroupID:   d.groupID,
		Zones:     make([]musiccast.ZoneSnapshot, 0, len(d.zoneOrder)),
	}
	for _, zid := range d.zoneOrder {
		ds.Zones = append(ds.Zones, d.zones[zid].snapshot())
	}
	return ds
}

func (z *zoneState) snapshot() musiccast.ZoneSnapshot {
	zs := musiccast.ZoneSnapshot{
		ID:         z.id,
		Name:       z.name,
		VolumeMin:  z.features.VolumeMin,
		VolumeMax:  z.features.VolumeMax,
		VolumeStep: z.features.VolumeStep,
		Inputs:     append([]string(nil), z.features.Inputs...),
	}

	for field, fv := range z.fields {
		if fv.at.After(zs.LastUpdatedAt) {
			zs.LastUpdatedAt = fv.at
			zs.LastSource = fv.source
		}

		switch field {
		case musiccast.FieldPower:
			if v, ok := fv.value.(musiccast.PowerState); ok {
				zs.Power = &v
			}
		case musiccast.FieldVolume:
			if v, ok := fv.value.(int); ok {
				zs.Volume = &v
			}
		case musiccast.FieldMute:
			if v, ok := fv.value.(bool); ok {
				zs.Mute = &v
			}
		case musiccast.FieldInput:
			if v, ok := fv.value.(string); ok {
				zs.Input = &v
			}
		case musiccast.FieldSoundProgram:
			if v, ok := fv.value.(string); ok {
				zs.SoundProgram = &v
			}
		case musiccast.FieldSleep:
			if v, ok := fv.value.(int); ok {
				zs.Sleep = &v
			}
		case musiccast.FieldPlayback:
			if v, ok := fv.value.(musiccast.PlaybackState); ok {
				zs.Playback = &v
			}
		case musiccast.FieldArtist:
			if v, ok := fv.value.(string); ok {
				zs.Artist = &v
			}
		case musiccast.FieldAlbum:
			if v, ok := fv.value.(string); ok {
				zs.Album = &v
			}
		case musiccast.FieldTrack:
			if v, ok := fv.value.(string); ok {
				zs.Track = &v
			}
		case musiccast.FieldAlbumartURL:
			if v, ok := fv.value.(string); ok {
				zs.AlbumartURL = &v
			}
		}
	}

	return zs
}
