// musiccastd - MusicCast device state synchronization daemon
//
// musiccastd keeps a live model of every Yamaha MusicCast device on the
// LAN: it listens for UDP change notifications, polls devices over the
// Extended Control HTTP API, reconciles multi-room group membership, and
// exposes the resulting state over a REST/WebSocket API and an optional
// MQTT relay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigonotion/musiccast-core/internal/api"
	"github.com/vigonotion/musiccast-core/internal/engine"
	"github.com/vigonotion/musiccast-core/internal/infrastructure/config"
	"github.com/vigonotion/musiccast-core/internal/infrastructure/influxdb"
	"github.com/vigonotion/musiccast-core/internal/infrastructure/logging"
	"github.com/vigonotion/musiccast-core/internal/infrastructure/mqtt"
	"github.com/vigonotion/musiccast-core/internal/musiccast"
	"github.com/vigonotion/musiccast-core/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting musiccastd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Create and start the synchronization engine
	eng := engine.New(engine.Config{
		ListenAddr:        cfg.Engine.ListenAddr,
		PollInterval:      cfg.GetPollInterval(),
		BackoffBase:       cfg.GetBackoffBase(),
		BackoffMax:        cfg.GetBackoffMax(),
		FailureThreshold:  cfg.Engine.FailureThreshold,
		DispatchQueueSize: cfg.Engine.DispatchQueueSize,
		RequestTimeout:    cfg.GetRequestTimeout(),
	})
	eng.SetLogger(log)

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		log.Info("stopping engine")
		eng.Stop()
	}()
	log.Info("engine started", "listen_addr", cfg.Engine.ListenAddr)

	// Track configured devices. An unreachable device at startup is not
	// fatal; it can be re-added via the API once it comes online.
	for _, d := range cfg.Devices {
		deviceID, addErr := eng.AddDevice(ctx, d.Host)
		if addErr != nil {
			log.Warn("device not added", "host", d.Host, "name", d.Name, "error", addErr)
			continue
		}
		log.Info("device tracked", "device_id", deviceID, "host", d.Host)
	}

	// Connect to MQTT broker and start the state relay (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled() {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		stateRelay := relay.New(eng, mqttClient, cfg.MQTT)
		stateRelay.SetLogger(log)
		if err := stateRelay.Start(); err != nil {
			return fmt.Errorf("starting MQTT relay: %w", err)
		}
		defer func() {
			log.Info("stopping MQTT relay")
			stateRelay.Stop()
		}()
		log.Info("MQTT relay started", "topic_root", cfg.MQTT.TopicRoot)
	} else {
		log.Info("MQTT relay disabled")
	}

	// Connect to InfluxDB and start telemetry sampling (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		stopTelemetry := startTelemetry(ctx, eng, influxClient, cfg.InfluxDB)
		defer stopTelemetry()
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Engine:  eng,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, apiServer, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Telemetry / InfluxDB (if enabled)
	// 3. MQTT relay and client (if enabled)
	// 4. Engine

	log.Info("musiccastd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MUSICCAST_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MUSICCAST_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy. MQTT and
// InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, apiServer *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// startTelemetry wires the engine to the InfluxDB sink: numeric zone fields
// and reachability transitions stream from the change feed, and operational
// counters are sampled on a fixed cadence. The returned function stops both.
func startTelemetry(ctx context.Context, eng *engine.Engine, influx *influxdb.Client, cfg config.InfluxDBConfig) func() {
	subID := eng.Subscribe(func(n engine.Notification) {
		switch n.Diff.Resource {
		case engine.ResourceZone:
			dev, ok := n.Snapshot.Device(n.Diff.DeviceID)
			if !ok {
				return
			}
			zone, ok := dev.Zone(n.Diff.ZoneID)
			if !ok {
				return
			}
			for _, f := range n.Diff.ChangedFields {
				switch f {
				case musiccast.FieldVolume:
					if zone.Volume != nil {
						influx.WriteZoneMetric(dev.ID, zone.ID, string(f), float64(*zone.Volume))
					}
				case musiccast.FieldMute:
					if zone.Mute != nil {
						influx.WriteZoneMetric(dev.ID, zone.ID, string(f), boolToFloat(*zone.Mute))
					}
				case musiccast.FieldPower:
					if zone.Power != nil {
						influx.WriteZoneMetric(dev.ID, zone.ID, string(f), boolToFloat(*zone.Power == musiccast.PowerOn))
					}
				}
			}
		case engine.ResourceDevice:
			if !n.Diff.Has(engine.FieldReachable) {
				return
			}
			if dev, ok := n.Snapshot.Device(n.Diff.DeviceID); ok {
				influx.WriteReachability(dev.ID, dev.Reachable)
			}
		}
	}, nil)

	interval := time.Duration(cfg.ReportInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := eng.Stats()
				influx.WriteEngineCounters(map[string]interface{}{
					"devices":               stats.Devices,
					"groups":                stats.Groups,
					"events_received":       int64(stats.EventsReceived),
					"events_malformed":      int64(stats.EventsMalformed),
					"events_unknown_device": int64(stats.EventsUnknownDevice),
					"notifications_dropped": int64(stats.NotificationsDropped),
				})
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		eng.Unsubscribe(subID)
		close(done)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
