package mqtt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vigonotion/musiccast-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration. Tests that actually talk
// to a broker live in integration_test.go behind the integration build tag.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "musiccastd-test",
			TLS:      false,
		},
		QoS:       1,
		Retain:    true,
		TopicRoot: "musiccast",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

// Input validation runs before the connection check, so these are testable
// without a broker.
func TestPublishValidation(t *testing.T) {
	client := &Client{cfg: testConfig()}

	if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Publish("musiccast/status", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}

	huge := bytes.Repeat([]byte("a"), maxPayloadSize+1)
	if err := client.Publish("musiccast/status", huge, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload error = %v, want ErrPublishFailed", err)
	}

	if err := client.Publish("musiccast/status", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("musiccast/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("musiccast/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("musiccast/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected subscribe error = %v, want ErrNotConnected", err)
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes, want 0", client.SubscriptionCount())
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("musiccast/status"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected unsubscribe error = %v, want ErrNotConnected", err)
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if client.HasSubscription("nonexistent/topic") {
		t.Error("HasSubscription() should be false for unsubscribed topic")
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "Status",
			got:      topics.Status(),
			expected: "musiccast/status",
		},
		{
			name:     "DeviceState",
			got:      topics.DeviceState("dev-1"),
			expected: "musiccast/device/dev-1/state",
		},
		{
			name:     "ZoneState",
			got:      topics.ZoneState("dev-1", "main"),
			expected: "musiccast/device/dev-1/zone/main/state",
		},
		{
			name:     "ZoneCommand",
			got:      topics.ZoneCommand("dev-1", "zone2", "volume"),
			expected: "musiccast/device/dev-1/zone/zone2/set/volume",
		},
		{
			name:     "GroupState",
			got:      topics.GroupState("9a23"),
			expected: "musiccast/group/9a23/state",
		},
		{
			name:     "AllDeviceStates",
			got:      topics.AllDeviceStates(),
			expected: "musiccast/device/+/state",
		},
		{
			name:     "AllZoneStates",
			got:      topics.AllZoneStates(),
			expected: "musiccast/device/+/zone/+/state",
		},
		{
			name:     "AllCommands",
			got:      topics.AllCommands(),
			expected: "musiccast/device/+/zone/+/set/+",
		},
		{
			name:     "AllGroupStates",
			got:      topics.AllGroupStates(),
			expected: "musiccast/group/+/state",
		},
		{
			name:     "Everything",
			got:      topics.Everything(),
			expected: "musiccast/#",
		},
		{
			name:     "custom root",
			got:      Topics{Root: "home/audio"}.ZoneState("dev-1", "main"),
			expected: "home/audio/device/dev-1/zone/main/state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name   string
		topic  string
		device string
		zone   string
		field  string
		ok     bool
	}{
		{
			name:   "valid command",
			topic:  "musiccast/device/dev-1/zone/main/set/volume",
			device: "dev-1",
			zone:   "main",
			field:  "volume",
			ok:     true,
		},
		{
			name:  "state topic is not a command",
			topic: "musiccast/device/dev-1/zone/main/state",
			ok:    false,
		},
		{
			name:  "wrong root",
			topic: "other/device/dev-1/zone/main/set/volume",
			ok:    false,
		},
		{
			name:  "missing field segment",
			topic: "musiccast/device/dev-1/zone/main/set/",
			ok:    false,
		},
		{
			name:  "too many segments",
			topic: "musiccast/device/dev-1/zone/main/set/volume/extra",
			ok:    false,
		},
		{
			name:  "empty string",
			topic: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, zone, field, ok := topics.ParseCommand(tt.topic)
			if ok != tt.ok {
				t.Fatalf("ParseCommand(%q) ok = %v, want %v", tt.topic, ok, tt.ok)
			}
			if !ok {
				return
			}
			if device != tt.device || zone != tt.zone || field != tt.field {
				t.Errorf("ParseCommand(%q) = (%q, %q, %q)", tt.topic, device, zone, field)
			}
		})
	}
}

func TestRoundTripCommandTopic(t *testing.T) {
	topics := Topics{Root: "home"}
	topic := topics.ZoneCommand("dev-9", "zone3", "mute")
	device, zone, field, ok := topics.ParseCommand(topic)
	if !ok || device != "dev-9" || zone != "zone3" || field != "mute" {
		t.Errorf("ParseCommand(ZoneCommand(...)) = (%q, %q, %q, %v)", device, zone, field, ok)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if got := opts.ClientID; got != "musiccastd-test" {
		t.Errorf("ClientID = %q, want musiccastd-test", got)
	}
	if len(opts.Servers) != 1 {
		t.Fatalf("Servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("TLS broker scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set with TLS enabled")
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("musiccastd")
	if !bytes.Contains([]byte(online), []byte(`"status":"online"`)) {
		t.Errorf("online payload = %s", online)
	}
	offline := buildOfflinePayload("musiccastd")
	if !bytes.Contains([]byte(offline), []byte(`"status":"offline"`)) {
		t.Errorf("offline payload = %s", offline)
	}
	if !bytes.Contains([]byte(offline), []byte("graceful_shutdown")) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}
