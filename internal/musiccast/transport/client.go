package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

const (
	basePath    = "/YamahaExtendedControl/v1"
	appName     = "MusicCast/1.0"
	defaultPort = 80
)

// Logger is the minimal logging interface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config holds client settings for one device.
type Config struct {
	// Host is the device address (IP or hostname), without scheme or port.
	Host string

	// UDPPort is advertised to the device via X-AppPort so it streams UDP
	// event notifications back to us. Zero omits the header and the device
	// sends no events.
	UDPPort int

	// Timeout bounds each request. Zero means 5 seconds.
	Timeout time.Duration

	// HTTPClient overrides the underlying client. Used by tests.
	HTTPClient *http.Client
}

// Client talks Extended Control v1 to a single device. It is safe for
// concurrent use.
type Client struct {
	base    string
	udpPort int
	http    *http.Client
	logger  Logger
}

// New creates a client for the device at cfg.Host.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrTransport)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:    "http://" + cfg.Host + basePath,
		udpPort: cfg.UDPPort,
		http:    httpClient,
		logger:  noopLogger{},
	}, nil
}

// SetLogger attaches a logger. Safe to call before first use only.
func (c *Client) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// get performs a GET against endpoint (path under the API base, already
// carrying any query string) and decodes the JSON body into out. out must
// embed a response_code field via responseCoder.
func (c *Client) get(ctx context.Context, endpoint string, out responseCoder) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %v", ErrTransport, endpoint, err)
	}
	return c.do(req, endpoint, out)
}

// post performs a POST with a JSON body against endpoint and decodes the
// response like get. The distribution setup endpoints are the only ones
// the protocol serves over POST.
func (c *Client) post(ctx context.Context, endpoint string, payload any, out responseCoder) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrTransport, endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %v", ErrTransport, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out responseCoder) error {
	// The event-subscription handshake: devices that see these headers
	// start pushing UDP notifications to the advertised port.
	req.Header.Set("X-AppName", appName)
	if c.udpPort > 0 {
		req.Header.Set("X-AppPort", strconv.Itoa(c.udpPort))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: http status %d", ErrTransport, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, endpoint, err)
	}

	if code := out.responseCode(); code != 0 {
		return &ResponseError{Endpoint: endpoint, Code: code}
	}

	c.logger.Debug("request ok", "endpoint", endpoint)
	return nil
}

// GetDeviceInfo fetches the device's identity.
func (c *Client) GetDeviceInfo(ctx context.Context) (musiccast.DeviceInfo, error) {
	var body deviceInfoBody
	if err := c.get(ctx, "system/getDeviceInfo", &body); err != nil {
		return musiccast.DeviceInfo{}, err
	}
	return musiccast.DeviceInfo{
		ID:            body.DeviceID,
		ModelName:     body.ModelName,
		SystemVersion: body.SystemVersion.String(),
		APIVersion:    body.APIVersion.String(),
	}, nil
}

// GetNetworkStatus fetches the device's network name.
func (c *Client) GetNetworkStatus(ctx context.Context) (string, error) {
	var body networkStatusBody
	if err := c.get(ctx, "system/getNetworkStatus", &body); err != nil {
		return "", err
	}
	return body.NetworkName, nil
}

// GetFeatures fetches and maps the device's capability report.
func (c *Client) GetFeatures(ctx context.Context) (musiccast.Features, error) {
	var body featuresBody
	if err := c.get(ctx, "system/getFeatures", &body); err != nil {
		return musiccast.Features{}, err
	}
	return body.toFeatures(), nil
}

// NameText carries the human-readable names of zones and inputs.
type NameText struct {
	Zones  map[string]string
	Inputs map[string]string
}

// GetNameText fetches zone and input display names.
func (c *Client) GetNameText(ctx context.Context) (NameText, error) {
	var body nameTextBody
	if err := c.get(ctx, "system/getNameText", &body); err != nil {
		return NameText{}, err
	}

	nt := NameText{
		Zones:  make(map[string]string, len(body.ZoneList)),
		Inputs: make(map[string]string, len(body.InputList)),
	}
	for _, z := range body.ZoneList {
		nt.Zones[z.ID] = z.Text
	}
	for _, in := range body.InputList {
		nt.Inputs[in.ID] = in.Text
	}
	return nt, nil
}

// GetZoneStatus fetches the current state of one zone.
func (c *Client) GetZoneStatus(ctx context.Context, zoneID string) (ZoneStatus, error) {
	var body zoneStatusBody
	if err := c.get(ctx, url.PathEscape(zoneID)+"/getStatus", &body); err != nil {
		return ZoneStatus{}, err
	}
	return body.toStatus(), nil
}

// GetPlayInfo fetches the network/USB playback metadata.
func (c *Client) GetPlayInfo(ctx context.Context) (PlayInfo, error) {
	var body playInfoBody
	if err := c.get(ctx, "netusb/getPlayInfo", &body); err != nil {
		return PlayInfo{}, err
	}
	return body.toPlayInfo(), nil
}

// GetDistributionInfo fetches the device's view of its multi-room group.
func (c *Client) GetDistributionInfo(ctx context.Context) (musiccast.GroupView, error) {
	var body distributionInfoBody
	if err := c.get(ctx, "dist/getDistributionInfo", &body); err != nil {
		return musiccast.GroupView{}, err
	}
	return body.toGroupView(), nil
}

// SetServerInfo makes the device the link distribution server for the
// group, adding or removing the listed client hosts. An empty group ID
// cancels the server role.
func (c *Client) SetServerInfo(ctx context.Context, groupID, zone, action string, clientHosts []string) error {
	var body baseBody
	return c.post(ctx, "dist/setServerInfo", serverInfoRequest{
		GroupID:    groupID,
		Zone:       zone,
		Type:       action,
		ClientList: clientHosts,
	}, &body)
}

// SetClientInfo makes the device a link distribution client of the server
// at serverHost. An empty group ID releases the client role.
func (c *Client) SetClientInfo(ctx context.Context, groupID, zone, serverHost string) error {
	var body baseBody
	return c.post(ctx, "dist/setClientInfo", clientInfoRequest{
		GroupID:         groupID,
		Zone:            zone,
		ServerIPAddress: serverHost,
	}, &body)
}

// StartDistribution starts (or restarts) audio distribution after a
// server-side membership change. num tags the distribution session; the
// device echoes it in its notifications.
func (c *Client) StartDistribution(ctx context.Context, num int) error {
	var body baseBody
	return c.get(ctx, "dist/startDistribution?num="+strconv.Itoa(num), &body)
}

// StopDistribution stops audio distribution on the server.
func (c *Client) StopDistribution(ctx context.Context) error {
	var body baseBody
	return c.get(ctx, "dist/stopDistribution", &body)
}

// Send issues a control command. The command must already be validated
// against the zone's features.
func (c *Client) Send(ctx context.Context, cmd musiccast.Command) error {
	endpoint, err := commandEndpoint(cmd)
	if err != nil {
		return err
	}
	var body baseBody
	return c.get(ctx, endpoint, &body)
}

// commandEndpoint maps a Command onto its Extended Control path and query.
func commandEndpoint(cmd musiccast.Command) (string, error) {
	zone := url.PathEscape(cmd.ZoneID)
	q := url.Values{}

	switch cmd.Kind {
	case musiccast.CmdSetPower:
		q.Set("power", string(cmd.Power))
		return zone + "/setPower?" + q.Encode(), nil
	case musiccast.CmdSetVolume:
		q.Set("volume", strconv.Itoa(cmd.Volume))
		return zone + "/setVolume?" + q.Encode(), nil
	case musiccast.CmdVolumeUp:
		q.Set("volume", "up")
		if cmd.Step > 0 {
			q.Set("step", strconv.Itoa(cmd.Step))
		}
		return zone + "/setVolume?" + q.Encode(), nil
	case musiccast.CmdVolumeDown:
		q.Set("volume", "down")
		if cmd.Step > 0 {
			q.Set("step", strconv.Itoa(cmd.Step))
		}
		return zone + "/setVolume?" + q.Encode(), nil
	case musiccast.CmdSetMute:
		q.Set("enable", strconv.FormatBool(cmd.Mute))
		return zone + "/setMute?" + q.Encode(), nil
	case musiccast.CmdSetInput:
		q.Set("input", cmd.Input)
		return zone + "/setInput?" + q.Encode(), nil
	case musiccast.CmdSetSoundProgram:
		q.Set("program", cmd.SoundProgram)
		return zone + "/setSoundProgram?" + q.Encode(), nil
	case musiccast.CmdSetPlayback:
		q.Set("playback", string(cmd.Playback))
		return "netusb/setPlayback?" + q.Encode(), nil
	case musiccast.CmdSetSleep:
		q.Set("sleep", strconv.Itoa(cmd.Sleep))
		return zone + "/setSleep?" + q.Encode(), nil
	default:
		return "", fmt.Errorf("%w: no endpoint for command %q", musiccast.ErrInvalidCommand, cmd.Kind)
	}
}
