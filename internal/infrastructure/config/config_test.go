package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
devices:
  - host: "192.168.1.10"
    name: "Living Room"
  - host: "192.168.1.11"
engine:
  listen_addr: "0.0.0.0:41100"
  poll_interval: 15
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Devices) != 2 {
		t.Fatalf("Devices = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Host != "192.168.1.10" || cfg.Devices[0].Name != "Living Room" {
		t.Errorf("Devices[0] = %+v", cfg.Devices[0])
	}

	if cfg.Engine.PollInterval != 15 {
		t.Errorf("Engine.PollInterval = %d, want 15", cfg.Engine.PollInterval)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if !cfg.MQTT.Enabled() {
		t.Error("MQTT.Enabled() = false with a broker host set")
	}

	// Unset sections keep their defaults.
	if cfg.Engine.FailureThreshold != 3 {
		t.Errorf("Engine.FailureThreshold = %d, want default 3", cfg.Engine.FailureThreshold)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want default /ws", cfg.WebSocket.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
devices:
  - host: ""
engine:
  poll_interval: 30
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty device host, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty device host",
			mutate:  func(c *Config) { c.Devices = []DeviceConfig{{Host: ""}} },
			wantErr: true,
		},
		{
			name:    "missing listen addr",
			mutate:  func(c *Config) { c.Engine.ListenAddr = "" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Engine.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "backoff base above ceiling",
			mutate:  func(c *Config) { c.Engine.BackoffBase = 300 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "broker without topic root",
			mutate: func(c *Config) {
				c.MQTT.Broker.Host = "localhost"
				c.MQTT.TopicRoot = ""
			},
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "influx enabled without token",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "http://localhost:8086" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Engine: EngineConfig{
			PollInterval:   20,
			BackoffBase:    2,
			BackoffMax:     90,
			RequestTimeout: 7,
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetPollInterval().Seconds(); got != 20 {
		t.Errorf("GetPollInterval() = %v, want 20", got)
	}
	if got := cfg.GetBackoffBase().Seconds(); got != 2 {
		t.Errorf("GetBackoffBase() = %v, want 2", got)
	}
	if got := cfg.GetBackoffMax().Seconds(); got != 90 {
		t.Errorf("GetBackoffMax() = %v, want 90", got)
	}
	if got := cfg.GetRequestTimeout().Seconds(); got != 7 {
		t.Errorf("GetRequestTimeout() = %v, want 7", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MUSICCAST_DEVICES", "192.168.1.10, 192.168.1.11")
	t.Setenv("MUSICCAST_ENGINE_LISTEN_ADDR", "127.0.0.1:42000")
	t.Setenv("MUSICCAST_ENGINE_POLL_INTERVAL", "12")
	t.Setenv("MUSICCAST_MQTT_HOST", "mqtt.example.com")
	t.Setenv("MUSICCAST_MQTT_USERNAME", "testuser")
	t.Setenv("MUSICCAST_MQTT_PASSWORD", "testpass")
	t.Setenv("MUSICCAST_API_HOST", "192.168.1.1")
	t.Setenv("MUSICCAST_API_PORT", "9090")
	t.Setenv("MUSICCAST_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if len(cfg.Devices) != 2 || cfg.Devices[1].Host != "192.168.1.11" {
		t.Errorf("Devices = %+v, want two hosts", cfg.Devices)
	}
	if cfg.Engine.ListenAddr != "127.0.0.1:42000" {
		t.Errorf("Engine.ListenAddr = %q", cfg.Engine.ListenAddr)
	}
	if cfg.Engine.PollInterval != 12 {
		t.Errorf("Engine.PollInterval = %d, want 12", cfg.Engine.PollInterval)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.API.Host != "192.168.1.1" || cfg.API.Port != 9090 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Engine.ListenAddr == "" {
		t.Error("defaultConfig should have non-empty Engine.ListenAddr")
	}
	if cfg.Engine.PollInterval != 30 {
		t.Errorf("defaultConfig Engine.PollInterval = %d, want 30", cfg.Engine.PollInterval)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Enabled() {
		t.Error("defaultConfig MQTT should be disabled without a broker host")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
