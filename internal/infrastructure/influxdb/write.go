package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteZoneMetric records a numeric zone field (volume, sleep timer).
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Device identifier (e.g. "AC44F2...")
//   - zoneID: Zone identifier (main, zone2, zone3, zone4)
//   - field: The field name (e.g. "volume")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteZoneMetric("dev-1", "main", "volume", 42)
func (c *Client) WriteZoneMetric(deviceID, zoneID, field string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"zone_state",
		map[string]string{
			"device_id": deviceID,
			"zone_id":   zoneID,
			"field":     field,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteReachability records a device reachability transition.
//
// Recording transitions rather than continuous samples keeps cardinality
// low while still allowing uptime queries.
func (c *Client) WriteReachability(deviceID string, reachable bool) {
	if !c.IsConnected() {
		return
	}

	up := 0
	if reachable {
		up = 1
	}

	point := write.NewPoint(
		"reachability",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"up": up,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEngineCounters records a sample of the engine's internal counters.
//
// Called periodically by the telemetry loop with fields such as
// events_received, events_malformed, poll_failures and dispatch_dropped.
func (c *Client) WriteEngineCounters(fields map[string]interface{}) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"engine",
		map[string]string{
			"service": "musiccastd",
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("group_size",
//	    map[string]string{"group_id": gid},
//	    map[string]interface{}{"members": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
