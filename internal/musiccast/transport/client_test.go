package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	host := strings.TrimPrefix(srv.URL, "http://")
	c, err := New(Config{Host: host, UDPPort: 41100})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClientSendsSubscriptionHeaders(t *testing.T) {
	var gotName, gotPort string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotName = r.Header.Get("X-AppName")
		gotPort = r.Header.Get("X-AppPort")
		w.Write([]byte(`{"response_code":0,"model_name":"RX-A2080","device_id":"AABBCCDDEEFF","system_version":2.62,"api_version":2.12}`))
	})

	info, err := c.GetDeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("GetDeviceInfo() error = %v", err)
	}
	if gotName != "MusicCast/1.0" {
		t.Errorf("X-AppName = %q, want MusicCast/1.0", gotName)
	}
	if gotPort != "41100" {
		t.Errorf("X-AppPort = %q, want 41100", gotPort)
	}
	if info.ID != "AABBCCDDEEFF" || info.ModelName != "RX-A2080" {
		t.Errorf("DeviceInfo = %+v", info)
	}
	if info.SystemVersion != "2.62" {
		t.Errorf("SystemVersion = %q, want 2.62", info.SystemVersion)
	}
}

func TestClientResponseCodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"response_code":4}`))
	})

	_, err := c.GetZoneStatus(context.Background(), "main")
	if !errors.Is(err, ErrResponseCode) {
		t.Fatalf("error = %v, want ErrResponseCode", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, should also match ErrTransport", err)
	}

	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a *ResponseError", err)
	}
	if re.Code != 4 {
		t.Errorf("Code = %d, want 4", re.Code)
	}
	if !strings.Contains(re.Error(), "invalid parameter") {
		t.Errorf("Error() = %q, want code name included", re.Error())
	}
}

func TestClientHTTPStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetDistributionInfo(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if errors.Is(err, ErrResponseCode) {
		t.Fatal("HTTP failure must not match ErrResponseCode")
	}
}

func TestGetFeaturesMapping(t *testing.T) {
	const body = `{
		"response_code": 0,
		"system": {
			"zone_num": 2,
			"func_list": ["wired_lan", "wireless_lan"],
			"input_list": [
				{"id": "net_radio", "distribution_enable": true, "play_info_type": "netusb"},
				{"id": "spotify", "distribution_enable": true, "play_info_type": "netusb"},
				{"id": "tuner", "distribution_enable": true, "play_info_type": "tuner"},
				{"id": "audio1", "distribution_enable": true, "play_info_type": "none"}
			]
		},
		"zone": [
			{
				"id": "main",
				"func_list": ["power", "volume", "mute", "sleep", "surr_decoder_type"],
				"input_list": ["net_radio", "spotify", "mc_link"],
				"sound_program_list": ["stereo", "surround"],
				"range_step": [{"id": "volume", "min": 0, "max": 161, "step": 1}]
			},
			{
				"id": "zone2",
				"func_list": ["power", "volume"],
				"input_list": ["main_sync"],
				"range_step": [{"id": "volume", "min": 0, "max": 80, "step": 2}]
			}
		],
		"netusb": {},
		"distribution": {"version": 2.0}
	}`

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	})

	f, err := c.GetFeatures(context.Background())
	if err != nil {
		t.Fatalf("GetFeatures() error = %v", err)
	}

	if !f.HasNetUSB || !f.HasDistribution {
		t.Errorf("HasNetUSB = %v, HasDistribution = %v, want both true", f.HasNetUSB, f.HasDistribution)
	}
	if len(f.Zones) != 2 {
		t.Fatalf("len(Zones) = %d, want 2", len(f.Zones))
	}

	main := f.Zones[0]
	if !main.Has(musiccast.CapSleep) {
		t.Error("main zone missing sleep capability")
	}
	// surr_decoder_type is outside the modelled set and must be dropped.
	if len(main.Capabilities) != 4 {
		t.Errorf("main capabilities = %v, want 4 modelled entries", main.Capabilities)
	}
	if main.VolumeMax != 161 {
		t.Errorf("main VolumeMax = %d, want 161", main.VolumeMax)
	}
	if !main.HasInput("mc_link") {
		t.Error("main zone missing mc_link input")
	}
	if !f.NetUSBInput("spotify") {
		t.Error("spotify must map onto the netusb play info type")
	}
	if f.NetUSBInput("tuner") || f.NetUSBInput("audio1") {
		t.Error("non-netusb inputs must not map onto netusb")
	}

	z2 := f.Zones[1]
	if z2.Has(musiccast.CapMute) {
		t.Error("zone2 must not report mute")
	}
	if z2.VolumeStep != 2 {
		t.Errorf("zone2 VolumeStep = %d, want 2", z2.VolumeStep)
	}
}

func TestGetZoneStatusDelta(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/YamahaExtendedControl/v1/zone2/") {
			t.Errorf("path = %q, want zone2 prefix", r.URL.Path)
		}
		w.Write([]byte(`{"response_code":0,"power":"on","volume":25,"mute":false,"input":"net_radio","sound_program":"stereo","sleep":0}`))
	})

	st, err := c.GetZoneStatus(context.Background(), "zone2")
	if err != nil {
		t.Fatalf("GetZoneStatus() error = %v", err)
	}

	d := st.Delta()
	if d[musiccast.FieldVolume] != 25 {
		t.Errorf("delta volume = %v, want 25", d[musiccast.FieldVolume])
	}
	if d[musiccast.FieldPower] != musiccast.PowerOn {
		t.Errorf("delta power = %v, want on", d[musiccast.FieldPower])
	}
}

func TestGetDistributionInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"response_code": 0,
			"group_id": "9a1b2c3d4e5f60718293a4b5c6d7e8f9",
			"group_name": "Downstairs",
			"role": "server",
			"server_zone": "main",
			"client_list": [{"ip_address": "192.168.1.21", "data_type": "base"}]
		}`))
	})

	v, err := c.GetDistributionInfo(context.Background())
	if err != nil {
		t.Fatalf("GetDistributionInfo() error = %v", err)
	}
	if v.Role != musiccast.RoleServer || !v.InGroup() {
		t.Errorf("view = %+v, want in-group server", v)
	}
	if len(v.ClientHosts) != 1 || v.ClientHosts[0] != "192.168.1.21" {
		t.Errorf("ClientHosts = %v", v.ClientHosts)
	}
}

func TestCommandEndpoint(t *testing.T) {
	tests := []struct {
		name string
		cmd  musiccast.Command
		want string
	}{
		{"power", musiccast.SetPower("main", musiccast.PowerOn), "main/setPower?power=on"},
		{"volume", musiccast.SetVolume("main", 42), "main/setVolume?volume=42"},
		{"volume up", musiccast.VolumeUp("zone2", 0), "zone2/setVolume?volume=up"},
		{"volume up with step", musiccast.VolumeUp("zone2", 2), "zone2/setVolume?step=2&volume=up"},
		{"volume down with step", musiccast.VolumeDown("main", 5), "main/setVolume?step=5&volume=down"},
		{"sound program", musiccast.SetSoundProgram("main", "munich"), "main/setSoundProgram?program=munich"},
		{"mute", musiccast.SetMute("main", true), "main/setMute?enable=true"},
		{"input", musiccast.SetInput("main", "net_radio"), "main/setInput?input=net_radio"},
		{"playback", musiccast.SetPlayback("main", musiccast.PlaybackPause), "netusb/setPlayback?playback=pause"},
		{"sleep", musiccast.SetSleep("main", 90), "main/setSleep?sleep=90"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := commandEndpoint(tt.cmd)
			if err != nil {
				t.Fatalf("commandEndpoint() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("commandEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := commandEndpoint(musiccast.Command{Kind: "reboot", ZoneID: "main"}); err == nil {
		t.Error("unknown command kind must fail")
	}
}

func TestSend(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Write([]byte(`{"response_code":0}`))
	})

	if err := c.Send(context.Background(), musiccast.SetVolume("main", 30)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	want := "/YamahaExtendedControl/v1/main/setVolume?volume=30"
	if gotPath != want {
		t.Errorf("request = %q, want %q", gotPath, want)
	}
}

func TestDistributionSetup(t *testing.T) {
	type call struct {
		method string
		path   string
		body   string
	}
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		calls = append(calls, call{r.Method, path, string(b)})
		w.Write([]byte(`{"response_code":0}`))
	})

	gid := "9a1b2c3d4e5f60718293a4b5c6d7e8f9"
	ctx := context.Background()
	if err := c.SetServerInfo(ctx, gid, "main", "add", []string{"192.168.1.21"}); err != nil {
		t.Fatalf("SetServerInfo() error = %v", err)
	}
	if err := c.StartDistribution(ctx, 1); err != nil {
		t.Fatalf("StartDistribution() error = %v", err)
	}
	if err := c.SetClientInfo(ctx, gid, "main", "192.168.1.10"); err != nil {
		t.Fatalf("SetClientInfo() error = %v", err)
	}
	if err := c.StopDistribution(ctx); err != nil {
		t.Fatalf("StopDistribution() error = %v", err)
	}

	if len(calls) != 4 {
		t.Fatalf("calls = %d, want 4", len(calls))
	}

	srv := calls[0]
	if srv.method != http.MethodPost || srv.path != "/YamahaExtendedControl/v1/dist/setServerInfo" {
		t.Errorf("server info call = %s %s", srv.method, srv.path)
	}
	var srvBody map[string]any
	if err := json.Unmarshal([]byte(srv.body), &srvBody); err != nil {
		t.Fatalf("server info body: %v", err)
	}
	if srvBody["group_id"] != gid || srvBody["zone"] != "main" || srvBody["type"] != "add" {
		t.Errorf("server info body = %v", srvBody)
	}

	if calls[1].method != http.MethodGet || calls[1].path != "/YamahaExtendedControl/v1/dist/startDistribution?num=1" {
		t.Errorf("start call = %s %s", calls[1].method, calls[1].path)
	}

	cli := calls[2]
	if cli.method != http.MethodPost || cli.path != "/YamahaExtendedControl/v1/dist/setClientInfo" {
		t.Errorf("client info call = %s %s", cli.method, cli.path)
	}
	var cliBody map[string]any
	if err := json.Unmarshal([]byte(cli.body), &cliBody); err != nil {
		t.Fatalf("client info body: %v", err)
	}
	if cliBody["group_id"] != gid || cliBody["server_ip_address"] != "192.168.1.10" {
		t.Errorf("client info body = %v", cliBody)
	}

	if calls[3].method != http.MethodGet || calls[3].path != "/YamahaExtendedControl/v1/dist/stopDistribution" {
		t.Errorf("stop call = %s %s", calls[3].method, calls[3].path)
	}
}
