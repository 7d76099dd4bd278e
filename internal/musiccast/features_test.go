package musiccast

import (
	"errors"
	"testing"
)

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in     string
		want   Capability
		wantOK bool
	}{
		{"power", CapPower, true},
		{"volume", CapVolume, true},
		{"mute", CapMute, true},
		{"sound_program", CapSoundProgram, true},
		{"link_control", CapLinkControl, true},
		{"surr_decoder_type", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCapability(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseCapability(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFeaturesZone(t *testing.T) {
	f := Features{
		Zones: []ZoneFeatures{
			{ID: "main", VolumeMax: 100},
			{ID: "zone2", VolumeMax: 60},
		},
	}

	z, err := f.Zone("zone2")
	if err != nil {
		t.Fatalf("Zone(zone2) error = %v", err)
	}
	if z.VolumeMax != 60 {
		t.Errorf("Zone(zone2).VolumeMax = %d, want 60", z.VolumeMax)
	}

	if _, err := f.Zone("zone4"); !errors.Is(err, ErrUnknownZone) {
		t.Errorf("Zone(zone4) error = %v, want ErrUnknownZone", err)
	}

	ids := f.ZoneIDs()
	if len(ids) != 2 || ids[0] != "main" || ids[1] != "zone2" {
		t.Errorf("ZoneIDs() = %v, want [main zone2]", ids)
	}
}

func TestNetUSBInput(t *testing.T) {
	f := Features{
		PlayInfoTypes: map[string]string{
			"spotify": "netusb",
			"tuner":   "tuner",
			"audio1":  "none",
		},
	}

	if !f.NetUSBInput("spotify") {
		t.Error("NetUSBInput(spotify) = false, want true")
	}
	if f.NetUSBInput("tuner") || f.NetUSBInput("audio1") || f.NetUSBInput("hdmi1") {
		t.Error("non-netusb inputs reported as netusb")
	}

	var empty Features
	if empty.NetUSBInput("spotify") {
		t.Error("NetUSBInput on empty features = true, want false")
	}
}

func TestGroupViewInGroup(t *testing.T) {
	tests := []struct {
		name string
		view GroupView
		want bool
	}{
		{"server in group", GroupView{GroupID: "d9c6f0ad", Role: RoleServer}, true},
		{"client in group", GroupView{GroupID: "d9c6f0ad", Role: RoleClient}, true},
		{"null group id", GroupView{GroupID: NullGroupID, Role: RoleServer}, false},
		{"empty group id", GroupView{Role: RoleClient}, false},
		{"role none", GroupView{GroupID: "d9c6f0ad", Role: RoleNone}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.view.InGroup(); got != tt.want {
				t.Errorf("InGroup() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotLookups(t *testing.T) {
	snap := Snapshot{
		Devices: []DeviceSnapshot{
			{ID: "dev-a", Zones: []ZoneSnapshot{{ID: "main"}, {ID: "zone2"}}},
			{ID: "dev-b"},
		},
		Groups: []GroupSnapshot{{ID: "grp-1", LeaderID: "dev-a"}},
	}

	d, ok := snap.Device("dev-a")
	if !ok {
		t.Fatal("Device(dev-a) not found")
	}
	if _, ok := d.Zone("zone2"); !ok {
		t.Error("Zone(zone2) not found on dev-a")
	}
	if _, ok := d.Zone("zone3"); ok {
		t.Error("Zone(zone3) unexpectedly found")
	}
	if _, ok := snap.Device("dev-c"); ok {
		t.Error("Device(dev-c) unexpectedly found")
	}
	if g, ok := snap.Group("grp-1"); !ok || g.LeaderID != "dev-a" {
		t.Errorf("Group(grp-1) = (%+v, %v), want leader dev-a", g, ok)
	}
}
