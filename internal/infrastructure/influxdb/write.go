package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteHourlyConsumption mirrors one hourly aggregation row into the bucket.
//
// The point is timestamped at the start of the hour so that repeated
// recomputes of the same hour overwrite rather than duplicate: InfluxDB
// deduplicates on measurement + tags + timestamp, which matches the
// delete-then-insert idempotency of the SQLite aggregate.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - hourStart: Start of the hour (UTC)
//   - pulseCount: Number of pulses recorded in that hour
//   - kwh: The count converted to kilowatt-hours
func (c *Client) WriteHourlyConsumption(hourStart time.Time, pulseCount int64, kwh float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"hourly_consumption",
		map[string]string{
			"source": "pulse_meter",
		},
		map[string]interface{}{
			"pulse_count": pulseCount,
			"energy_kwh":  kwh,
		},
		hourStart,
	)

	c.writeAPI.WritePoint(point)
}

// WritePulseRate records the recent pulse arrival rate as instantaneous power.
//
// Each meter pulse represents a fixed energy quantum, so pulses per unit time
// is proportional to power draw. Useful for live dashboards between hourly
// aggregations.
//
// Parameters:
//   - powerWatts: Estimated instantaneous power in watts
func (c *Client) WritePulseRate(powerWatts float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"pulse_rate",
		map[string]string{
			"source": "pulse_meter",
		},
		map[string]interface{}{
			"power_watts": powerWatts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
