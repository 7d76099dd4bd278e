package engine

import (
	"encoding/json"
	"fmt"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

// Refetch names a sub-resource an event flagged as changed without
// carrying its values, so the reconciler must fetch it immediately.
type Refetch string

// Refetch targets.
const (
	RefetchZoneStatus   Refetch = "zone_status"
	RefetchPlayInfo     Refetch = "play_info"
	RefetchDistribution Refetch = "distribution"
	RefetchFeatures     Refetch = "features"
)

// Event is one parsed change notice from a UDP datagram. Value-carrying
// fields arrive in Delta; flagged sub-resources arrive in Refetch. ZoneID
// is empty for device-level events.
type Event struct {
	ZoneID  string
	Delta   musiccast.Delta
	Refetch []Refetch
}

// eventMessage is a fully parsed datagram: the reporting device plus the
// events it carried.
type eventMessage struct {
	DeviceID string
	Events   []Event
}

// zoneEventBody is one zone section of a notification datagram. Pointer
// fields distinguish "absent" from a zero value; events carry deltas only.
type zoneEventBody struct {
	Power         *string `json:"power"`
	Volume        *int    `json:"volume"`
	Mute          *bool   `json:"mute"`
	Input         *string `json:"input"`
	StatusUpdated bool    `json:"status_updated"`
}

type netusbEventBody struct {
	PlayInfoUpdated bool `json:"play_info_updated"`
}

type distEventBody struct {
	DistInfoUpdated bool `json:"dist_info_updated"`
}

type systemEventBody struct {
	FuncStatusUpdated bool `json:"func_status_updated"`
}

// zoneSections are the datagram keys that address a zone.
var zoneSections = []string{"main", "zone2", "zone3", "zone4"}

// parseDatagram turns one UDP payload into events. Unknown sections and
// fields are ignored for forward compatibility with newer firmware; a
// payload that is not a JSON object at all is a malformed event.
func parseDatagram(data []byte) (eventMessage, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return eventMessage{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var msg eventMessage
	if raw, ok := sections["device_id"]; ok {
		// Best effort; a datagram without device_id resolves by sender IP.
		_ = json.Unmarshal(raw, &msg.DeviceID)
	}

	for _, zone := range zoneSections {
		raw, ok := sections[zone]
		if !ok {
			continue
		}
		var body zoneEventBody
		if err := json.Unmarshal(raw, &body); err != nil {
			continue
		}

		ev := Event{ZoneID: zone, Delta: musiccast.Delta{}}
		if body.Power != nil {
			ev.Delta[musiccast.FieldPower] = musiccast.PowerState(*body.Power)
		}
		if body.Volume != nil {
			ev.Delta[musiccast.FieldVolume] = *body.Volume
		}
		if body.Mute != nil {
			ev.Delta[musiccast.FieldMute] = *body.Mute
		}
		if body.Input != nil {
			ev.Delta[musiccast.FieldInput] = *body.Input
		}
		if body.StatusUpdated {
			ev.Refetch = append(ev.Refetch, RefetchZoneStatus)
		}
		if len(ev.Delta) > 0 || len(ev.Refetch) > 0 {
			msg.Events = append(msg.Events, ev)
		}
	}

	if raw, ok := sections["netusb"]; ok {
		var body netusbEventBody
		if err := json.Unmarshal(raw, &body); err == nil && body.PlayInfoUpdated {
			msg.Events = append(msg.Events, Event{Refetch: []Refetch{RefetchPlayInfo}})
		}
	}

	if raw, ok := sections["dist"]; ok {
		var body distEventBody
		if err := json.Unmarshal(raw, &body); err == nil && body.DistInfoUpdated {
			msg.Events = append(msg.Events, Event{Refetch: []Refetch{RefetchDistribution}})
		}
	}

	if raw, ok := sections["system"]; ok {
		var body systemEventBody
		if err := json.Unmarshal(raw, &body); err == nil && body.FuncStatusUpdated {
			msg.Events = append(msg.Events, Event{Refetch: []Refetch{RefetchFeatures}})
		}
	}

	return msg, nil
}
