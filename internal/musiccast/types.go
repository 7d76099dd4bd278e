package musiccast

import "time"

// DeviceInfo holds the identity a device reports via getDeviceInfo and
// getNetworkStatus. The device ID is the stable identity; the host is how
// we reach it and may change across DHCP leases.
type DeviceInfo struct {
	ID            string `json:"device_id"`
	Host          string `json:"host"`
	ModelName     string `json:"model_name"`
	SystemVersion string `json:"system_version"`
	APIVersion    string `json:"api_version"`
	NetworkName   string `json:"network_name"`
}

// Source identifies where a state delta originated.
type Source string

// Source constants. A poll result and a push event carry equal authority;
// recency decides conflicts.
const (
	SourcePoll Source = "poll"
	SourcePush Source = "push"
)

// Field names a single mutable attribute of a zone. Deltas are keyed by
// Field so the store can merge and diff at field granularity.
type Field string

// Zone state fields.
const (
	FieldPower        Field = "power"
	FieldVolume       Field = "volume"
	FieldMute         Field = "mute"
	FieldInput        Field = "input"
	FieldSoundProgram Field = "sound_program"
	FieldSleep        Field = "sleep"

	FieldPlayback    Field = "playback"
	FieldArtist      Field = "artist"
	FieldAlbum       Field = "album"
	FieldTrack       Field = "track"
	FieldAlbumartURL Field = "albumart_url"
)

// Delta is a partial zone update: only the fields present are merged,
// absent fields are untouched.
type Delta map[Field]any

// PowerState is a zone power value.
type PowerState string

// PowerState constants.
const (
	PowerOn      PowerState = "on"
	PowerStandby PowerState = "standby"
)

// PlaybackState is a playback transport value.
type PlaybackState string

// PlaybackState constants.
const (
	PlaybackPlay  PlaybackState = "play"
	PlaybackPause PlaybackState = "pause"
	PlaybackStop  PlaybackState = "stop"
)

// GroupRole is a device's role within a multi-room group.
type GroupRole string

// GroupRole constants. The device protocol calls the leader "server".
const (
	RoleServer GroupRole = "server"
	RoleClient GroupRole = "client"
	RoleNone   GroupRole = "none"
)

// NullGroupID is the sentinel group ID devices report when they are not
// part of any group.
const NullGroupID = "00000000000000000000000000000000"

// GroupView is one device's belief about its group membership, as returned
// by getDistributionInfo. Views from a leader and its clients may disagree
// transiently; the engine's group coordinator reconciles them.
type GroupView struct {
	GroupID    string    `json:"group_id"`
	GroupName  string    `json:"group_name"`
	Role       GroupRole `json:"role"`
	ServerZone string    `json:"server_zone"`
	// ClientHosts lists the client device addresses the leader is
	// distributing to. Only meaningful when Role is RoleServer.
	ClientHosts []string `json:"client_hosts"`
}

// InGroup reports whether the view describes actual group membership.
func (v GroupView) InGroup() bool {
	return v.GroupID != "" && v.GroupID != NullGroupID && v.Role != RoleNone
}

// Snapshot is an immutable point-in-time copy of all tracked state. It is
// safe to retain and read from any goroutine; the engine never mutates a
// snapshot after handing it out.
type Snapshot struct {
	Devices []DeviceSnapshot `json:"devices"`
	Groups  []GroupSnapshot  `json:"groups"`
	TakenAt time.Time        `json:"taken_at"`
}

// Device returns the snapshot of the device with the given ID, if present.
func (s Snapshot) Device(id string) (DeviceSnapshot, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceSnapshot{}, false
}

// Group returns the snapshot of the group with the given ID, if present.
func (s Snapshot) Group(id string) (GroupSnapshot, bool) {
	for _, g := range s.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return GroupSnapshot{}, false
}

// DeviceSnapshot is the frozen state of one device.
type DeviceSnapshot struct {
	ID        string         `json:"id"`
	Host      string         `json:"host"`
	ModelName string         `json:"model_name"`
	Reachable bool           `json:"reachable"`
	GroupID   string         `json:"group_id,omitempty"`
	Zones     []ZoneSnapshot `json:"zones"`
}

// Zone returns the snapshot of the named zone, if present.
func (d DeviceSnapshot) Zone(id string) (ZoneSnapshot, bool) {
	for _, z := range d.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return ZoneSnapshot{}, false
}

// ZoneSnapshot is the frozen state of one zone. Pointer fields are nil
// until the device has reported a value — "unknown" is never defaulted.
type ZoneSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	Power        *PowerState    `json:"power,omitempty"`
	Volume       *int           `json:"volume,omitempty"`
	Mute         *bool          `json:"mute,omitempty"`
	Input        *string        `json:"input,omitempty"`
	SoundProgram *string        `json:"sound_program,omitempty"`
	Sleep        *int           `json:"sleep,omitempty"`
	Playback     *PlaybackState `json:"playback,omitempty"`
	Artist       *string        `json:"artist,omitempty"`
	Album        *string        `json:"album,omitempty"`
	Track        *string        `json:"track,omitempty"`
	AlbumartURL  *string        `json:"albumart_url,omitempty"`

	VolumeMin  int      `json:"volume_min"`
	VolumeMax  int      `json:"volume_max"`
	VolumeStep int      `json:"volume_step"`
	Inputs     []string `json:"inputs,omitempty"`

	// LastUpdatedAt and LastSource describe the most recent accepted delta
	// for any field of this zone.
	LastUpdatedAt time.Time `json:"last_updated_at"`
	LastSource    Source    `json:"last_source,omitempty"`
}

// GroupSnapshot is the frozen, reconciled view of one multi-room group.
type GroupSnapshot struct {
	ID       string        `json:"id"`
	Name     string        `json:"name,omitempty"`
	LeaderID string        `json:"leader_id"`
	Members  []GroupMember `json:"members"`
}

// GroupMember is one device's membership entry within a group. Pending
// members are clients whose membership the leader has not (yet) confirmed;
// they are dropped after one unconfirmed reconciliation cycle.
type GroupMember struct {
	DeviceID string    `json:"device_id"`
	Role     GroupRole `json:"role"`
	Pending  bool      `json:"pending,omitempty"`
}
