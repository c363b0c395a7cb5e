package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/geoawd/electricmonitor/internal/infrastructure/logging"
	"github.com/geoawd/electricmonitor/internal/observability"
)

// shutdownFlushTimeout bounds the final recompute on shutdown.
const shutdownFlushTimeout = 10 * time.Second

// Scheduler drives the aggregator on a fixed intra-hour schedule.
//
// Ticks fire at the configured minutes of every hour (default 15, 30, 45,
// 59). Each hour is therefore recomputed several times before it closes,
// and the first tick after an hour boundary recomputes the previous hour
// once more, so pulses that arrive near the boundary with slight clock or
// processing skew are still counted. A failed tick is logged and simply
// covered by the next one; every tick recomputes full state, so no
// cross-tick retry queue is needed.
type Scheduler struct {
	agg     *Aggregator
	minutes []int
	logger  *logging.Logger

	// now is injectable for tests.
	now func() time.Time

	// lastHour is the hour key recomputed by the previous tick.
	lastHour time.Time
}

// NewScheduler creates a scheduler firing at the given minutes of each hour.
// The minutes slice is copied and sorted; it must be non-empty and validated
// by config.
func NewScheduler(agg *Aggregator, minutes []int, logger *logging.Logger) *Scheduler {
	sorted := make([]int, len(minutes))
	copy(sorted, minutes)
	sort.Ints(sorted)

	return &Scheduler{
		agg:     agg,
		minutes: sorted,
		logger:  logger.With("component", "aggregation-scheduler"),
		now:     time.Now,
	}
}

// Run blocks, firing recompute ticks until ctx is cancelled. On cancellation
// it performs one final recompute of the current open hour so a clean
// shutdown flushes the partial hour, then returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("aggregation scheduler started", "minutes", s.minutes)

	timer := time.NewTimer(s.untilNextTick())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.untilNextTick())
		}
	}
}

// tick recomputes the current hour and, on the first tick after an hour
// boundary, the hour that just closed.
func (s *Scheduler) tick(ctx context.Context) {
	hour := s.now().UTC().Truncate(time.Hour)

	if !s.lastHour.IsZero() && s.lastHour.Before(hour) {
		s.recompute(ctx, s.lastHour)
	}
	s.recompute(ctx, hour)
	s.lastHour = hour
}

// recompute runs one aggregation and records its outcome.
func (s *Scheduler) recompute(ctx context.Context, hour time.Time) {
	start := time.Now()
	bucket, err := s.agg.Recompute(ctx, hour)
	if err != nil {
		observability.ObserveAggregationRun(observability.ResultError, time.Since(start))
		s.logger.Error("hourly recompute failed",
			"hour", hour.Format(time.RFC3339),
			"error", err,
		)
		return
	}

	observability.ObserveAggregationRun(observability.ResultSuccess, time.Since(start))
	s.logger.Debug("hourly recompute complete",
		"hour", bucket.HourStart.Format(time.RFC3339),
		"pulse_count", bucket.PulseCount,
	)
}

// flush recomputes the current open hour once more during shutdown. The
// parent context is already cancelled, so this uses its own deadline.
func (s *Scheduler) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	hour := s.now().UTC().Truncate(time.Hour)
	s.logger.Info("flushing final partial hour", "hour", hour.Format(time.RFC3339))
	s.recompute(ctx, hour)
}

// untilNextTick returns the duration until the next scheduled minute.
func (s *Scheduler) untilNextTick() time.Duration {
	now := s.now()
	return s.nextTick(now).Sub(now)
}

// nextTick returns the first scheduled instant strictly after from.
func (s *Scheduler) nextTick(from time.Time) time.Time {
	hour := from.Truncate(time.Hour)
	for _, m := range s.minutes {
		candidate := hour.Add(time.Duration(m) * time.Minute)
		if candidate.After(from) {
			return candidate
		}
	}
	// All of this hour's minutes have passed; first minute of the next hour.
	return hour.Add(time.Hour).Add(time.Duration(s.minutes[0]) * time.Minute)
}
