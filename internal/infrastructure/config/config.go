package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for musiccastd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Devices   []DeviceConfig  `yaml:"devices"`
	Engine    EngineConfig    `yaml:"engine"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies one tracked device.
type DeviceConfig struct {
	// Host is the device's IP address or hostname on the LAN.
	Host string `yaml:"host"`
	// Name is an optional label used in logs; the device's own network
	// name is used when empty.
	Name string `yaml:"name,omitempty"`
}

// EngineConfig contains the synchronization engine settings.
type EngineConfig struct {
	// ListenAddr is the UDP address device notifications arrive on.
	ListenAddr string `yaml:"listen_addr"`

	// PollInterval is the per-device full poll cadence in seconds.
	PollInterval int `yaml:"poll_interval"`

	// BackoffBase and BackoffMax bound the retry delay after poll
	// failures, in seconds.
	BackoffBase int `yaml:"backoff_base"`
	BackoffMax  int `yaml:"backoff_max"`

	// FailureThreshold is how many consecutive poll failures mark a
	// device unreachable.
	FailureThreshold int `yaml:"failure_threshold"`

	// RequestTimeout bounds each HTTP request to a device, in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// DispatchQueueSize is each subscriber's notification queue depth.
	DispatchQueueSize int `yaml:"dispatch_queue_size"`
}

// MQTTConfig contains MQTT broker connection settings. The broker is
// optional; with an empty host the relay is disabled.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Retain    bool                `yaml:"retain"`
	TopicRoot string              `yaml:"topic_root"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// Enabled reports whether an MQTT broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker.Host != "" }

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	SendBuffer     int    `yaml:"send_buffer"`
}

// InfluxDBConfig contains the optional telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
	// ReportInterval is how often engine counters are sampled, in seconds.
	ReportInterval int `yaml:"report_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MUSICCAST_SECTION_KEY
// For example: MUSICCAST_MQTT_HOST, MUSICCAST_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ListenAddr:        "0.0.0.0:41100",
			PollInterval:      30,
			BackoffBase:       1,
			BackoffMax:        120,
			FailureThreshold:  3,
			RequestTimeout:    5,
			DispatchQueueSize: 64,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port:     1883,
				ClientID: "musiccastd",
			},
			QoS:       0,
			Retain:    true,
			TopicRoot: "musiccast",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     32,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			ReportInterval: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MUSICCAST_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Devices: comma-separated host list
	if v := os.Getenv("MUSICCAST_DEVICES"); v != "" {
		cfg.Devices = nil
		for _, host := range strings.Split(v, ",") {
			if host = strings.TrimSpace(host); host != "" {
				cfg.Devices = append(cfg.Devices, DeviceConfig{Host: host})
			}
		}
	}

	// Engine
	if v := os.Getenv("MUSICCAST_ENGINE_LISTEN_ADDR"); v != "" {
		cfg.Engine.ListenAddr = v
	}
	if v := os.Getenv("MUSICCAST_ENGINE_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.PollInterval = n
		}
	}

	// MQTT
	if v := os.Getenv("MUSICCAST_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MUSICCAST_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MUSICCAST_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("MUSICCAST_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MUSICCAST_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}

	// InfluxDB
	if v := os.Getenv("MUSICCAST_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	for i, d := range c.Devices {
		if d.Host == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].host is required", i))
		}
	}

	if c.Engine.ListenAddr == "" {
		errs = append(errs, "engine.listen_addr is required")
	}
	if c.Engine.PollInterval < 1 {
		errs = append(errs, "engine.poll_interval must be at least 1 second")
	}
	if c.Engine.FailureThreshold < 1 {
		errs = append(errs, "engine.failure_threshold must be at least 1")
	}
	if c.Engine.BackoffBase > c.Engine.BackoffMax {
		errs = append(errs, "engine.backoff_base must not exceed engine.backoff_max")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled() && c.MQTT.TopicRoot == "" {
		errs = append(errs, "mqtt.topic_root is required when a broker is configured")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set MUSICCAST_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the engine poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Engine.PollInterval) * time.Second
}

// GetBackoffBase returns the engine backoff base as a Duration.
func (c *Config) GetBackoffBase() time.Duration {
	return time.Duration(c.Engine.BackoffBase) * time.Second
}

// GetBackoffMax returns the engine backoff ceiling as a Duration.
func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Engine.BackoffMax) * time.Second
}

// GetRequestTimeout returns the per-request device timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Engine.RequestTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
