package pulse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/geoawd/electricmonitor/internal/infrastructure/database"
	"github.com/geoawd/electricmonitor/internal/observability"
)

// Event is one recorded meter pulse. Events are immutable once written;
// the store is append-only and never updates or deletes in normal operation.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// MinuteCount is the number of pulses recorded in one minute.
type MinuteCount struct {
	Minute time.Time `json:"minute"`
	Count  int64     `json:"count"`
}

// Store persists pulse events in the pulses table.
//
// Writes go through the shared bounded-retry policy: transient lock
// contention is retried a fixed number of times with a fixed delay, then
// the write is abandoned and reported. Reads are plain queries; WAL mode
// lets them proceed alongside an in-flight writer.
type Store struct {
	db    *database.DB
	retry database.RetryPolicy
}

// NewStore creates a pulse store backed by the given database.
func NewStore(db *database.DB, retry database.RetryPolicy) *Store {
	return &Store{db: db, retry: retry}
}

// Record appends one pulse event. A zero timestamp defaults to the current
// time. The insert is all-or-nothing per attempt and durable immediately on
// success; events are sparse, so durability wins over batching.
//
// Returns the stored event, or database.ErrContentionExhausted when bounded
// retries ran out, or database.ErrStoreUnavailable on a fatal engine error.
func (s *Store) Record(ctx context.Context, ts time.Time) (Event, error) {
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	var id int64
	attempts := 0
	err := s.retry.Do(ctx, func() error {
		attempts++
		result, err := s.db.ExecContext(ctx,
			"INSERT INTO pulses (timestamp) VALUES (?)",
			ts.Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	observability.AddPulseStoreRetries(attempts - 1)
	if err != nil {
		return Event{}, fmt.Errorf("recording pulse: %w", err)
	}

	return Event{ID: id, Timestamp: ts}, nil
}

// CountInRange returns the number of pulses with timestamps in [from, to).
func (s *Store) CountInRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pulses WHERE timestamp >= ? AND timestamp < ?",
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pulses: %w", err)
	}
	return count, nil
}

// MinuteCounts returns per-minute pulse counts for timestamps in [from, to),
// ordered by minute ascending. Minutes with no pulses are omitted.
//
// Grouping is done on the stored UTC timestamps; callers convert the minute
// keys to local time for presentation.
func (s *Store) MinuteCounts(ctx context.Context, from, to time.Time) ([]MinuteCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT strftime('%Y-%m-%dT%H:%M:00Z', timestamp) AS minute, COUNT(*)
		 FROM pulses
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY minute
		 ORDER BY minute`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying minute counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only iteration

	var counts []MinuteCount
	for rows.Next() {
		var minuteStr string
		var count int64
		if err := rows.Scan(&minuteStr, &count); err != nil {
			return nil, fmt.Errorf("scanning minute count: %w", err)
		}
		minute, err := time.Parse(time.RFC3339, minuteStr)
		if err != nil {
			return nil, fmt.Errorf("parsing minute key %q: %w", minuteStr, err)
		}
		counts = append(counts, MinuteCount{Minute: minute, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating minute counts: %w", err)
	}

	return counts, nil
}

// DateRange returns the timestamps of the earliest and latest recorded
// events. ok is false when the store is empty.
func (s *Store) DateRange(ctx context.Context) (first, last time.Time, ok bool, err error) {
	var firstStr, lastStr sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT MIN(timestamp), MAX(timestamp) FROM pulses",
	).Scan(&firstStr, &lastStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("querying date range: %w", err)
	}
	if !firstStr.Valid || !lastStr.Valid {
		return time.Time{}, time.Time{}, false, nil
	}

	first, err = time.Parse(time.RFC3339, firstStr.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parsing first timestamp: %w", err)
	}
	last, err = time.Parse(time.RFC3339, lastStr.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parsing last timestamp: %w", err)
	}

	return first, last, true, nil
}
