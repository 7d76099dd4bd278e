package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

func testFeatures() musiccast.Features {
	return musiccast.Features{
		HasNetUSB:       true,
		HasDistribution: true,
		PlayInfoTypes: map[string]string{
			"net_radio": "netusb",
			"spotify":   "netusb",
			"audio1":    "none",
		},
		Zones: []musiccast.ZoneFeatures{
			{
				ID:           "main",
				Capabilities: []musiccast.Capability{musiccast.CapPower, musiccast.CapVolume, musiccast.CapMute},
				VolumeMin:    0,
				VolumeMax:    100,
				VolumeStep:   1,
				Inputs:       []string{"net_radio", "spotify"},
			},
			{
				ID:           "zone2",
				Capabilities: []musiccast.Capability{musiccast.CapPower, musiccast.CapVolume},
				VolumeMax:    60,
			},
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	info := musiccast.DeviceInfo{ID: "dev-1", Host: "192.168.1.10", ModelName: "WX-030"}
	if err := s.AddDevice(info, testFeatures(), map[string]string{"main": "Kitchen"}); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	return s
}

// mergeSeq is one timed delta application.
type mergeSeq struct {
	volume int
	source musiccast.Source
	at     time.Time
}

func TestMergeLastWriterWinsCommutative(t *testing.T) {
	t0 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	seq := []mergeSeq{
		{volume: 20, source: musiccast.SourcePoll, at: t0},
		{volume: 25, source: musiccast.SourcePush, at: t0.Add(50 * time.Millisecond)},
		{volume: 22, source: musiccast.SourcePoll, at: t0.Add(20 * time.Millisecond)},
	}

	// Any application order must converge on the latest write: volume 25.
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		s := newTestStore(t)
		for _, i := range order {
			m := seq[i]
			if _, err := s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: m.volume}, m.source, m.at); err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
		}

		snap := s.Snapshot()
		zone, _ := snap[0].Zone("main")
		if zone.Volume == nil || *zone.Volume != 25 {
			t.Errorf("order %v: volume = %v, want 25", order, zone.Volume)
		}
	}
}

func TestMergeTiePrefersPush(t *testing.T) {
	s := newTestStore(t)
	at := time.Now()

	if _, err := s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: 10}, musiccast.SourcePoll, at); err != nil {
		t.Fatal(err)
	}
	changed, err := s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: 15}, musiccast.SourcePush, at)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0] != musiccast.FieldVolume {
		t.Fatalf("changed = %v, want [volume]", changed)
	}

	// The reverse tie must not clobber the push value.
	changed, err = s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: 10}, musiccast.SourcePoll, at)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Errorf("poll at equal timestamp overrode push: changed = %v", changed)
	}
}

func TestMergeIdenticalValueNoChange(t *testing.T) {
	s := newTestStore(t)
	t0 := time.Now()

	changed, err := s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldPower: musiccast.PowerOn}, musiccast.SourcePoll, t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 {
		t.Fatalf("first merge changed = %v, want [power]", changed)
	}

	changed, err = s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldPower: musiccast.PowerOn}, musiccast.SourcePush, t0.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Errorf("identical value reported as change: %v", changed)
	}
}

func TestMergeUnknownDevice(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Merge("dev-9", "main", musiccast.Delta{musiccast.FieldMute: true}, musiccast.SourcePush, time.Now())
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("error = %v, want ErrUnknownDevice", err)
	}

	if _, err := s.Merge("dev-1", "zone9", musiccast.Delta{musiccast.FieldMute: true}, musiccast.SourcePush, time.Now()); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("error = %v, want ErrUnknownZone", err)
	}
}

func TestMergeRejectsOutOfRangeVolume(t *testing.T) {
	s := newTestStore(t)
	t0 := time.Now()

	if _, err := s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: 40}, musiccast.SourcePoll, t0); err != nil {
		t.Fatal(err)
	}

	// Out of range: the volume field is dropped, other fields still merge.
	changed, err := s.Merge("dev-1", "main", musiccast.Delta{
		musiccast.FieldVolume: 500,
		musiccast.FieldMute:   true,
	}, musiccast.SourcePush, t0.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0] != musiccast.FieldMute {
		t.Fatalf("changed = %v, want [mute]", changed)
	}

	snap := s.Snapshot()
	zone, _ := snap[0].Zone("main")
	if zone.Volume == nil || *zone.Volume != 40 {
		t.Errorf("volume = %v, want prior value 40", zone.Volume)
	}
}

func TestSetReachable(t *testing.T) {
	s := newTestStore(t)

	changed, err := s.SetReachable("dev-1", true)
	if err != nil || !changed {
		t.Fatalf("SetReachable(true) = (%v, %v), want (true, nil)", changed, err)
	}
	changed, _ = s.SetReachable("dev-1", true)
	if changed {
		t.Error("repeated SetReachable(true) reported a change")
	}
	changed, _ = s.SetReachable("dev-1", false)
	if !changed {
		t.Error("SetReachable(false) did not report a change")
	}

	if _, err := s.SetReachable("dev-9", true); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("error = %v, want ErrUnknownDevice", err)
	}
}

func TestSnapshotIsFrozen(t *testing.T) {
	s := newTestStore(t)
	t0 := time.Now()

	s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: 30}, musiccast.SourcePoll, t0)
	snap := s.Snapshot()

	s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: 50}, musiccast.SourcePoll, t0.Add(time.Second))

	zone, _ := snap[0].Zone("main")
	if zone.Volume == nil || *zone.Volume != 30 {
		t.Errorf("earlier snapshot mutated: volume = %v, want 30", zone.Volume)
	}

	// Unreported fields stay explicitly unknown.
	if zone.Power != nil {
		t.Errorf("power = %v, want nil for never-reported field", *zone.Power)
	}
	if zone.LastSource != musiccast.SourcePoll {
		t.Errorf("LastSource = %q, want poll", zone.LastSource)
	}
}

func TestUpdateFeaturesKeepsZoneState(t *testing.T) {
	s := newTestStore(t)
	s.Merge("dev-1", "main", musiccast.Delta{musiccast.FieldVolume: 30}, musiccast.SourcePoll, time.Now())

	f := testFeatures()
	f.Zones = f.Zones[:1] // zone2 vanished
	f.Zones[0].VolumeMax = 120
	if err := s.UpdateFeatures("dev-1", f); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if len(snap[0].Zones) != 1 {
		t.Fatalf("zones = %d, want 1", len(snap[0].Zones))
	}
	zone := snap[0].Zones[0]
	if zone.Volume == nil || *zone.Volume != 30 {
		t.Errorf("volume = %v, want retained 30", zone.Volume)
	}
	if zone.VolumeMax != 120 {
		t.Errorf("VolumeMax = %d, want 120", zone.VolumeMax)
	}
}

func TestRemoveDevice(t *testing.T) {
	s := newTestStore(t)

	if err := s.RemoveDevice("dev-1"); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}
	if s.Has("dev-1") {
		t.Error("device still tracked after removal")
	}
	if err := s.RemoveDevice("dev-1"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("second removal error = %v, want ErrUnknownDevice", err)
	}
}

func TestResolveHost(t *testing.T) {
	s := newTestStore(t)

	if id, ok := s.ResolveHost("192.168.1.10"); !ok || id != "dev-1" {
		t.Errorf("ResolveHost = (%q, %v), want (dev-1, true)", id, ok)
	}
	if _, ok := s.ResolveHost("192.168.1.99"); ok {
		t.Error("unknown host resolved")
	}
}
