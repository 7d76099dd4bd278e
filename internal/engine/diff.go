package engine

import "github.com/vigonotion/musiccast-core/internal/musiccast"

// Resource classifies what a Diff refers to.
type Resource string

// Diff resources.
const (
	// ResourceZone covers per-zone state fields (power, volume, playback...).
	ResourceZone Resource = "zone"
	// ResourceDevice covers device-level flags, currently reachability.
	ResourceDevice Resource = "device"
	// ResourceGroup covers multi-room group membership changes.
	ResourceGroup Resource = "group"
)

// Device-level pseudo fields reported in Diff.ChangedFields.
const (
	FieldReachable musiccast.Field = "reachable"
	FieldMembers   musiccast.Field = "members"
	FieldRemoved   musiccast.Field = "removed"
)

// Diff records one observed logical change: which resource changed and
// which of its fields. Exactly one Diff is produced per observed change no
// matter how many underlying datagrams or polls reported it.
type Diff struct {
	Resource Resource `json:"resource"`

	// DeviceID is set for zone and device diffs, and for group diffs that
	// concern one member.
	DeviceID string `json:"device_id,omitempty"`
	ZoneID   string `json:"zone_id,omitempty"`
	GroupID  string `json:"group_id,omitempty"`

	ChangedFields []musiccast.Field `json:"changed_fields"`
}

// Has reports whether the diff includes the given changed field.
func (d Diff) Has(f musiccast.Field) bool {
	for _, c := range d.ChangedFields {
		if c == f {
			return true
		}
	}
	return false
}

// Notification pairs a Diff with the snapshot taken after the merge that
// produced it.
type Notification struct {
	Diff     Diff
	Snapshot musiccast.Snapshot
}
