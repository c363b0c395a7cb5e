package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/geoawd/electricmonitor/internal/infrastructure/database"
)

// Bucket is one hourly aggregation row: the number of pulses whose
// timestamps fall in [HourStart, HourStart+1h). At most one bucket exists
// per hour; buckets are written only by the aggregator, never by the
// ingestion path.
type Bucket struct {
	HourStart  time.Time `json:"hour_start"`
	PulseCount int64     `json:"pulse_count"`
}

// Aggregator recomputes hourly buckets from the raw pulse log.
//
// Recompute is idempotent: each run replaces the hour's bucket with a fresh
// count over the underlying events, so running it once or N times for the
// same hour yields the same value, and a run after new events land updates
// the bucket to the larger count.
type Aggregator struct {
	db    *database.DB
	retry database.RetryPolicy

	// mirror, when set, receives each successfully recomputed bucket.
	// Used to feed the optional InfluxDB consumption mirror.
	mirror func(Bucket)
}

// NewAggregator creates an aggregator writing through the shared retry policy.
func NewAggregator(db *database.DB, retry database.RetryPolicy) *Aggregator {
	return &Aggregator{db: db, retry: retry}
}

// SetMirror registers a callback invoked with each successfully recomputed
// bucket. Mirror failures must not affect the store; the callback should
// swallow its own errors.
func (a *Aggregator) SetMirror(mirror func(Bucket)) {
	a.mirror = mirror
}

// Recompute replaces the bucket for the hour containing hourStart.
//
// The hour key is hourStart truncated to the hour in UTC. Delete and
// re-insert happen in one transaction so a concurrent reader never sees a
// momentarily missing bucket, and the value is always a fresh COUNT(*) over
// the pulse log, never an increment. Hours with no pulses get an explicit
// zero row so a fully aggregated day always has a defined sum.
func (a *Aggregator) Recompute(ctx context.Context, hourStart time.Time) (Bucket, error) {
	hour := hourStart.UTC().Truncate(time.Hour)
	hourKey := hour.Format(time.RFC3339)
	nextKey := hour.Add(time.Hour).Format(time.RFC3339)

	var count int64
	err := a.retry.Do(ctx, func() error {
		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

		err = tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM pulses WHERE timestamp >= ? AND timestamp < ?",
			hourKey, nextKey,
		).Scan(&count)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM hourly_pulses WHERE hour_start = ?", hourKey,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO hourly_pulses (hour_start, pulse_count) VALUES (?, ?)",
			hourKey, count,
		); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return Bucket{}, fmt.Errorf("recomputing hour %s: %w", hourKey, err)
	}

	bucket := Bucket{HourStart: hour, PulseCount: count}
	if a.mirror != nil {
		a.mirror(bucket)
	}
	return bucket, nil
}

// BucketsInRange returns buckets with hour_start in [from, to), ordered by
// hour ascending. Hours never aggregated are absent; hours aggregated with
// zero pulses appear with a zero count.
func (a *Aggregator) BucketsInRange(ctx context.Context, from, to time.Time) ([]Bucket, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT hour_start, pulse_count FROM hourly_pulses
		 WHERE hour_start >= ? AND hour_start < ?
		 ORDER BY hour_start`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying buckets: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only iteration

	var buckets []Bucket
	for rows.Next() {
		var hourStr string
		var b Bucket
		if err := rows.Scan(&hourStr, &b.PulseCount); err != nil {
			return nil, fmt.Errorf("scanning bucket: %w", err)
		}
		b.HourStart, err = time.Parse(time.RFC3339, hourStr)
		if err != nil {
			return nil, fmt.Errorf("parsing hour key %q: %w", hourStr, err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buckets: %w", err)
	}

	return buckets, nil
}

// SumForDay returns the total bucketed pulse count for the UTC day
// containing dayStart.
func (a *Aggregator) SumForDay(ctx context.Context, dayStart time.Time) (int64, error) {
	day := dayStart.UTC().Truncate(24 * time.Hour)

	var sum int64
	err := a.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(pulse_count), 0) FROM hourly_pulses
		 WHERE hour_start >= ? AND hour_start < ?`,
		day.Format(time.RFC3339), day.AddDate(0, 0, 1).Format(time.RFC3339),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing day buckets: %w", err)
	}
	return sum, nil
}
