// Package api provides the HTTP query API for Electric Monitor.
//
// It exposes the energy report assembled by the query service, a health
// endpoint, and Prometheus metrics. The server is read-only; all writes
// enter the system through the sensor ingestion path.
//
// The server follows the same lifecycle pattern as the other long-lived
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
