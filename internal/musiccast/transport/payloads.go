package transport

import (
	"encoding/json"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

// responseCoder is implemented by every response body so get() can check
// the embedded response_code uniformly.
type responseCoder interface {
	responseCode() int
}

// baseBody is embedded in every response payload.
type baseBody struct {
	ResponseCode int `json:"response_code"`
}

func (b *baseBody) responseCode() int { return b.ResponseCode }

type deviceInfoBody struct {
	baseBody
	ModelName     string `json:"model_name"`
	Destination   string `json:"destination"`
	DeviceID      string `json:"device_id"`
	// Firmware versions arrive as JSON numbers (e.g. 2.62) on most models
	// and strings on a few, so decode them loosely.
	SystemVersion json.Number `json:"system_version"`
	APIVersion    json.Number `json:"api_version"`
}

type networkStatusBody struct {
	baseBody
	NetworkName string `json:"network_name"`
}

type featuresBody struct {
	baseBody
	System struct {
		ZoneNum   int      `json:"zone_num"`
		FuncList  []string `json:"func_list"`
		InputList []struct {
			ID                 string `json:"id"`
			DistributionEnable bool   `json:"distribution_enable"`
			PlayInfoType       string `json:"play_info_type"`
		} `json:"input_list"`
	} `json:"system"`
	Zone []struct {
		ID               string   `json:"id"`
		FuncList         []string `json:"func_list"`
		InputList        []string `json:"input_list"`
		SoundProgramList []string `json:"sound_program_list"`
		RangeStep        []struct {
			ID   string `json:"id"`
			Min  int    `json:"min"`
			Max  int    `json:"max"`
			Step int    `json:"step"`
		} `json:"range_step"`
	} `json:"zone"`
	NetUSB       *struct{} `json:"netusb"`
	Distribution *struct {
		Version float64 `json:"version"`
	} `json:"distribution"`
}

func (b *featuresBody) toFeatures() musiccast.Features {
	f := musiccast.Features{
		HasNetUSB:       b.NetUSB != nil,
		HasDistribution: b.Distribution != nil,
		Zones:           make([]musiccast.ZoneFeatures, 0, len(b.Zone)),
	}

	if len(b.System.InputList) > 0 {
		f.PlayInfoTypes = make(map[string]string, len(b.System.InputList))
		for _, in := range b.System.InputList {
			f.PlayInfoTypes[in.ID] = in.PlayInfoType
		}
	}

	for _, z := range b.Zone {
		zf := musiccast.ZoneFeatures{
			ID:            z.ID,
			Inputs:        z.InputList,
			SoundPrograms: z.SoundProgramList,
		}
		for _, fn := range z.FuncList {
			if c, ok := musiccast.ParseCapability(fn); ok {
				zf.Capabilities = append(zf.Capabilities, c)
			}
		}
		for _, rs := range z.RangeStep {
			if rs.ID == "volume" {
				zf.VolumeMin = rs.Min
				zf.VolumeMax = rs.Max
				zf.VolumeStep = rs.Step
			}
		}
		f.Zones = append(f.Zones, zf)
	}

	return f
}

type nameTextBody struct {
	baseBody
	ZoneList []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"zone_list"`
	InputList []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"input_list"`
}

type zoneStatusBody struct {
	baseBody
	Power        string `json:"power"`
	Sleep        int    `json:"sleep"`
	Volume       int    `json:"volume"`
	Mute         bool   `json:"mute"`
	MaxVolume    int    `json:"max_volume"`
	Input        string `json:"input"`
	SoundProgram string `json:"sound_program"`
}

// ZoneStatus is one zone's polled state.
type ZoneStatus struct {
	Power        musiccast.PowerState
	Sleep        int
	Volume       int
	Mute         bool
	Input        string
	SoundProgram string
}

func (b *zoneStatusBody) toStatus() ZoneStatus {
	return ZoneStatus{
		Power:        musiccast.PowerState(b.Power),
		Sleep:        b.Sleep,
		Volume:       b.Volume,
		Mute:         b.Mute,
		Input:        b.Input,
		SoundProgram: b.SoundProgram,
	}
}

// Delta converts the polled status into a field delta for the store.
func (s ZoneStatus) Delta() musiccast.Delta {
	return musiccast.Delta{
		musiccast.FieldPower:        s.Power,
		musiccast.FieldVolume:       s.Volume,
		musiccast.FieldMute:         s.Mute,
		musiccast.FieldInput:        s.Input,
		musiccast.FieldSoundProgram: s.SoundProgram,
		musiccast.FieldSleep:        s.Sleep,
	}
}

type playInfoBody struct {
	baseBody
	Input       string `json:"input"`
	Playback    string `json:"playback"`
	PlayTime    int    `json:"play_time"`
	TotalTime   int    `json:"total_time"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Track       string `json:"track"`
	AlbumartURL string `json:"albumart_url"`
}

// PlayInfo is the network/USB playback metadata.
type PlayInfo struct {
	Input       string
	Playback    musiccast.PlaybackState
	PlayTime    int
	TotalTime   int
	Artist      string
	Album       string
	Track       string
	AlbumartURL string
}

func (b *playInfoBody) toPlayInfo() PlayInfo {
	return PlayInfo{
		Input:       b.Input,
		Playback:    musiccast.PlaybackState(b.Playback),
		PlayTime:    b.PlayTime,
		TotalTime:   b.TotalTime,
		Artist:      b.Artist,
		Album:       b.Album,
		Track:       b.Track,
		AlbumartURL: b.AlbumartURL,
	}
}

// Delta converts the playback metadata into a field delta for the store.
func (p PlayInfo) Delta() musiccast.Delta {
	return musiccast.Delta{
		musiccast.FieldPlayback:    p.Playback,
		musiccast.FieldArtist:      p.Artist,
		musiccast.FieldAlbum:       p.Album,
		musiccast.FieldTrack:       p.Track,
		musiccast.FieldAlbumartURL: p.AlbumartURL,
	}
}

// serverInfoRequest is the setServerInfo body. An empty group ID cancels
// the device's server role.
type serverInfoRequest struct {
	GroupID    string   `json:"group_id"`
	Zone       string   `json:"zone,omitempty"`
	Type       string   `json:"type,omitempty"`
	ClientList []string `json:"client_list,omitempty"`
}

// clientInfoRequest is the setClientInfo body. An empty group ID releases
// the device's client role.
type clientInfoRequest struct {
	GroupID         string `json:"group_id"`
	Zone            string `json:"zone,omitempty"`
	ServerIPAddress string `json:"server_ip_address,omitempty"`
}

type distributionInfoBody struct {
	baseBody
	GroupID    string `json:"group_id"`
	GroupName  string `json:"group_name"`
	Role       string `json:"role"`
	ServerZone string `json:"server_zone"`
	ClientList []struct {
		IPAddress string `json:"ip_address"`
		DataType  string `json:"data_type"`
	} `json:"client_list"`
}

func (b *distributionInfoBody) toGroupView() musiccast.GroupView {
	v := musiccast.GroupView{
		GroupID:    b.GroupID,
		GroupName:  b.GroupName,
		Role:       musiccast.GroupRole(b.Role),
		ServerZone: b.ServerZone,
	}
	if v.Role == "" {
		v.Role = musiccast.RoleNone
	}
	for _, c := range b.ClientList {
		v.ClientHosts = append(v.ClientHosts, c.IPAddress)
	}
	return v
}
