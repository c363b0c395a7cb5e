package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Errors reported by write operations executed under a RetryPolicy.
// Use errors.Is() to classify failures in calling code.
var (
	// ErrContentionExhausted is returned when a write failed with a transient
	// lock error on every permitted attempt. The write was abandoned; nothing
	// was recorded.
	ErrContentionExhausted = errors.New("database: write contention exhausted")

	// ErrStoreUnavailable is returned for engine-level failures that retrying
	// cannot fix (corruption, permissions, closed handle). Callers on the
	// ingestion or aggregation path should treat this as fatal.
	ErrStoreUnavailable = errors.New("database: store unavailable")
)

// Default retry policy values, matching the deployed meter's tuning.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 100 * time.Millisecond
)

// RetryPolicy is a bounded retry with a fixed inter-attempt delay, shared by
// every writer against the store (pulse ingestion and hourly aggregation).
//
// The delay is deliberately fixed rather than exponential: contention on a
// single-household meter database lasts milliseconds, and the policy acts as
// backpressure, not a queue. Excess contention is shed by failing the
// operation after MaxAttempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// sleep is replaceable in tests to observe retry pacing.
	sleep func(time.Duration)
}

// NewRetryPolicy creates a retry policy with the given bounds.
// Non-positive maxAttempts falls back to DefaultMaxAttempts; a negative
// delay falls back to DefaultRetryDelay.
func NewRetryPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		sleep:       time.Sleep,
	}
}

// Do runs op until it succeeds, fails fatally, or exhausts the attempt bound.
//
// Classification:
//   - nil: success, returned immediately
//   - transient (SQLITE_BUSY / SQLITE_LOCKED): retried after Delay; once
//     MaxAttempts is used up the last error is wrapped in ErrContentionExhausted
//   - anything else: wrapped in ErrStoreUnavailable and returned immediately,
//     never retried
//
// Context cancellation is checked before each attempt; a cancelled context
// aborts with ctx.Err() without consuming further attempts.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("write aborted: %w", err)
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		lastErr = err
		if attempt < p.MaxAttempts {
			sleep(p.Delay)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrContentionExhausted, p.MaxAttempts, lastErr)
}

// IsTransient reports whether err is a lock-contention error that a later
// attempt may succeed on (another writer holds the database lock).
func IsTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
