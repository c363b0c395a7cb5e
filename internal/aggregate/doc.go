// Package aggregate maintains the hourly_pulses table: one row per hour
// holding the pulse count derived from the raw event log.
//
// The Aggregator owns the idempotent delete-then-insert recompute for a
// single hour; the Scheduler fires it at fixed minutes of every hour and
// flushes the final partial hour on shutdown. Hour keys are UTC instants
// truncated to the hour; conversion to local time happens only at query
// time.
package aggregate
