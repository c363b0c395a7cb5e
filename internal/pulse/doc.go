// Package pulse is the event store: a durable append-only log of meter
// pulse events.
//
// The write path (Record) runs under the shared bounded-retry policy so
// transient SQLite lock contention is retried a fixed number of times and
// then shed. The read side serves the query service: per-minute counts for
// a day, range counts, and the overall recorded date range. Hourly
// aggregation lives in the aggregate package and is derived entirely from
// this log.
package pulse
