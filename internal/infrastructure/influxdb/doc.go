// Package influxdb provides optional time-series telemetry for musiccastd.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writing and health monitoring.
//
// # Purpose
//
// This package records:
//   - Zone field history (volume over time, sleep timers)
//   - Device reachability transitions
//   - Engine counters (events received, malformed datagrams, poll failures)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "musiccast",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteZoneMetric("dev-1", "main", "volume", 42)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
