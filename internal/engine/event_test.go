package engine

import (
	"errors"
	"testing"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

func TestParseDatagramZoneValues(t *testing.T) {
	data := []byte(`{
		"device_id": "AABBCCDDEEFF",
		"main": {"power": "on", "volume": 42, "mute": false},
		"zone2": {"input": "net_radio"}
	}`)

	msg, err := parseDatagram(data)
	if err != nil {
		t.Fatalf("parseDatagram() error = %v", err)
	}
	if msg.DeviceID != "AABBCCDDEEFF" {
		t.Errorf("DeviceID = %q", msg.DeviceID)
	}
	if len(msg.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(msg.Events))
	}

	main := msg.Events[0]
	if main.ZoneID != "main" {
		t.Errorf("ZoneID = %q, want main", main.ZoneID)
	}
	if main.Delta[musiccast.FieldPower] != musiccast.PowerOn {
		t.Errorf("power = %v", main.Delta[musiccast.FieldPower])
	}
	if main.Delta[musiccast.FieldVolume] != 42 {
		t.Errorf("volume = %v", main.Delta[musiccast.FieldVolume])
	}
	if main.Delta[musiccast.FieldMute] != false {
		t.Errorf("mute = %v", main.Delta[musiccast.FieldMute])
	}
	if _, ok := main.Delta[musiccast.FieldInput]; ok {
		t.Error("absent input field appeared in delta")
	}

	z2 := msg.Events[1]
	if z2.ZoneID != "zone2" || z2.Delta[musiccast.FieldInput] != "net_radio" {
		t.Errorf("zone2 event = %+v", z2)
	}
}

func TestParseDatagramRefetchFlags(t *testing.T) {
	data := []byte(`{
		"device_id": "AABBCCDDEEFF",
		"main": {"status_updated": true},
		"netusb": {"play_info_updated": true, "play_time": 31},
		"dist": {"dist_info_updated": true},
		"system": {"func_status_updated": true}
	}`)

	msg, err := parseDatagram(data)
	if err != nil {
		t.Fatalf("parseDatagram() error = %v", err)
	}

	var got []Refetch
	for _, ev := range msg.Events {
		got = append(got, ev.Refetch...)
	}
	want := map[Refetch]bool{
		RefetchZoneStatus:   false,
		RefetchPlayInfo:     false,
		RefetchDistribution: false,
		RefetchFeatures:     false,
	}
	for _, r := range got {
		want[r] = true
	}
	for r, seen := range want {
		if !seen {
			t.Errorf("refetch %q not raised", r)
		}
	}
}

func TestParseDatagramIgnoresUnknownSections(t *testing.T) {
	data := []byte(`{
		"device_id": "AABBCCDDEEFF",
		"clock": {"settings_updated": true},
		"some_future_section": {"x": 1},
		"main": {"volume": 9, "future_field": "y"}
	}`)

	msg, err := parseDatagram(data)
	if err != nil {
		t.Fatalf("parseDatagram() error = %v", err)
	}
	if len(msg.Events) != 1 {
		t.Fatalf("events = %d, want 1 (unknown sections ignored)", len(msg.Events))
	}
	if msg.Events[0].Delta[musiccast.FieldVolume] != 9 {
		t.Errorf("volume = %v", msg.Events[0].Delta[musiccast.FieldVolume])
	}
}

func TestParseDatagramMalformed(t *testing.T) {
	for _, data := range []string{"", "not json", `[1,2,3]`, `"just a string"`} {
		if _, err := parseDatagram([]byte(data)); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("parseDatagram(%q) error = %v, want ErrMalformedEvent", data, err)
		}
	}
}

func TestParseDatagramEmptyObject(t *testing.T) {
	msg, err := parseDatagram([]byte(`{"device_id": "X"}`))
	if err != nil {
		t.Fatalf("parseDatagram() error = %v", err)
	}
	if len(msg.Events) != 0 {
		t.Errorf("events = %d, want 0", len(msg.Events))
	}
}
