package musiccast

import "fmt"

// Capability is a single zone function advertised in a device's feature
// report (the func_list of getFeatures).
type Capability string

// Zone capabilities. This is a closed set: discovery maps the device's
// func_list entries onto it and ignores entries we do not model.
const (
	CapPower        Capability = "power"
	CapVolume       Capability = "volume"
	CapMute         Capability = "mute"
	CapSoundProgram Capability = "sound_program"
	CapToneControl  Capability = "tone_control"
	CapEqualizer    Capability = "equalizer"
	CapSleep        Capability = "sleep"
	CapLinkControl  Capability = "link_control"
	CapLinkAudio    Capability = "link_audio_delay"
)

var knownCapabilities = map[string]Capability{
	"power":            CapPower,
	"volume":           CapVolume,
	"mute":             CapMute,
	"sound_program":    CapSoundProgram,
	"tone_control":     CapToneControl,
	"equalizer":        CapEqualizer,
	"sleep":            CapSleep,
	"link_control":     CapLinkControl,
	"link_audio_delay": CapLinkAudio,
}

// ParseCapability maps a func_list entry to a Capability. The second return
// is false for entries outside the modelled set.
func ParseCapability(s string) (Capability, bool) {
	c, ok := knownCapabilities[s]
	return c, ok
}

// ZoneFeatures describes what one zone can do, as reported at discovery.
type ZoneFeatures struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	Capabilities []Capability `json:"capabilities"`

	VolumeMin  int `json:"volume_min"`
	VolumeMax  int `json:"volume_max"`
	VolumeStep int `json:"volume_step"`

	Inputs        []string `json:"inputs,omitempty"`
	SoundPrograms []string `json:"sound_programs,omitempty"`
}

// Has reports whether the zone advertises the given capability.
func (z ZoneFeatures) Has(c Capability) bool {
	for _, have := range z.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// HasInput reports whether the zone offers the named input.
func (z ZoneFeatures) HasInput(input string) bool {
	for _, in := range z.Inputs {
		if in == input {
			return true
		}
	}
	return false
}

// HasSoundProgram reports whether the zone offers the named sound program.
func (z ZoneFeatures) HasSoundProgram(program string) bool {
	for _, p := range z.SoundPrograms {
		if p == program {
			return true
		}
	}
	return false
}

// ValidateVolume checks v against the zone's advertised range.
func (z ZoneFeatures) ValidateVolume(v int) error {
	if v < z.VolumeMin || v > z.VolumeMax {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrVolumeOutOfRange, v, z.VolumeMin, z.VolumeMax)
	}
	return nil
}

// Features is a device's full capability report.
type Features struct {
	Zones []ZoneFeatures `json:"zones"`

	// HasNetUSB reports whether the device exposes network/USB playback
	// sources (and therefore playback metadata).
	HasNetUSB bool `json:"has_netusb"`
	// HasDistribution reports whether the device supports multi-room link.
	HasDistribution bool `json:"has_distribution"`

	// PlayInfoTypes maps input IDs onto the feed that describes their
	// playback ("netusb", "tuner", "cd" or "none"), from the device's
	// system input list.
	PlayInfoTypes map[string]string `json:"play_info_types,omitempty"`
}

// NetUSBInput reports whether the named input's playback metadata comes
// from the netusb play info feed.
func (f Features) NetUSBInput(input string) bool {
	return f.PlayInfoTypes[input] == "netusb"
}

// Zone returns the features of the named zone.
func (f Features) Zone(id string) (ZoneFeatures, error) {
	for _, z := range f.Zones {
		if z.ID == id {
			return z, nil
		}
	}
	return ZoneFeatures{}, fmt.Errorf("%w: %q", ErrUnknownZone, id)
}

// ZoneIDs returns the IDs of all reported zones, in report order.
func (f Features) ZoneIDs() []string {
	ids := make([]string, 0, len(f.Zones))
	for _, z := range f.Zones {
		ids = append(ids, z.ID)
	}
	return ids
}
