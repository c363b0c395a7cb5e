// Package observability exposes Prometheus metrics for the monitor.
//
// Counters cover the pulse ingestion path (stored, retried, dropped),
// the hourly aggregation loop, and the HTTP API. Metrics are registered
// at package load via promauto and served through Handler on /metrics.
package observability
