// Package database provides SQLite connectivity for the pulse store.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded into the binary
//   - The shared bounded-retry policy for write contention
//   - Connection lifecycle management and health checks
//
// Concurrency model:
//
// The ingestion loop and the hourly aggregator both write to the same
// database file; the query side only reads. No application-level mutex is
// used. WAL mode lets readers proceed during a write, the connection pool is
// limited to a single connection to match SQLite's one-writer rule, and every
// writer wraps its statement in a RetryPolicy so transient lock contention is
// retried a bounded number of times and then shed.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// All queries use parameterised statements, and the database file is created
// with 0600 permissions.
package database
