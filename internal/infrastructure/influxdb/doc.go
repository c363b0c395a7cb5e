// Package influxdb provides an optional time-series mirror of hourly
// consumption data.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Purpose
//
// The SQLite event store is the source of truth for pulses and hourly
// aggregates. When enabled, this package mirrors each recomputed hourly
// total into an InfluxDB bucket so external dashboards can graph
// consumption without touching the monitor's query API.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // mirror not configured; continue without it
//	}
//
//	client.WriteHourlyConsumption(hourStart, 3200, 1.0)
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. Mirror failures never affect the SQLite store.
package influxdb
