package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geoawd/electricmonitor/internal/infrastructure/database"
	"github.com/geoawd/electricmonitor/internal/infrastructure/logging"
	"github.com/geoawd/electricmonitor/internal/observability"
	"github.com/geoawd/electricmonitor/internal/pulse"
)

// ingestBuffer absorbs short bursts between a sensor emit and the store
// write without blocking the MQTT delivery goroutine.
const ingestBuffer = 64

// Ingestor wires a Source to the pulse store: the long-lived ingestion
// loop of the monitor.
//
// Failure policy:
//   - Contention exhaustion drops the pulse. The loss is surfaced (error
//     log + dropped counter), never silent, but there is no durable
//     pending queue: pulses are human-scale sparse and WAL plus the busy
//     timeout make exhaustion rare.
//   - A fatal store error stops the loop and is returned from Run, so the
//     process stops rather than silently skipping writes.
type Ingestor struct {
	source Source
	store  *pulse.Store
	logger *logging.Logger
}

// NewIngestor creates the ingestion loop.
func NewIngestor(source Source, store *pulse.Store, logger *logging.Logger) *Ingestor {
	return &Ingestor{
		source: source,
		store:  store,
		logger: logger.With("component", "ingestor"),
	}
}

// Run starts the source and records pulses until ctx is cancelled or the
// store becomes unavailable. On cancellation the source is stopped first,
// then buffered pulses are drained, so no accepted event is lost to a
// clean shutdown.
func (i *Ingestor) Run(ctx context.Context) error {
	pulses := make(chan time.Time, ingestBuffer)
	emit := func(ts time.Time) {
		select {
		case pulses <- ts:
		default:
			// Buffer full: shed rather than block the transport.
			observability.IncPulseDropped("buffer_full")
			i.logger.Error("pulse dropped, ingest buffer full")
		}
	}

	if err := i.source.Start(ctx, emit); err != nil {
		return fmt.Errorf("starting pulse source: %w", err)
	}

	i.logger.Info("pulse ingestion started")

	for {
		select {
		case <-ctx.Done():
			return i.shutdown(pulses)
		case ts := <-pulses:
			if err := i.record(ctx, ts); err != nil {
				i.stopSource()
				return err
			}
		}
	}
}

// record stores one pulse under the ingestion failure policy. Only a fatal
// store error is returned; contention exhaustion is absorbed here.
func (i *Ingestor) record(ctx context.Context, ts time.Time) error {
	event, err := i.store.Record(ctx, ts)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrContentionExhausted):
			observability.IncPulseDropped("contention_exhausted")
			i.logger.Error("pulse dropped after exhausting write retries",
				"timestamp", ts.UTC().Format(time.RFC3339),
				"error", err,
			)
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			i.logger.Error("pulse store unavailable, stopping ingestion", "error", err)
			return fmt.Errorf("storing pulse: %w", err)
		}
	}

	observability.IncPulseStored()
	i.logger.Debug("pulse recorded",
		"id", event.ID,
		"timestamp", event.Timestamp.Format(time.RFC3339),
	)
	return nil
}

// shutdown stops the source and drains pulses accepted before cancellation.
func (i *Ingestor) shutdown(pulses chan time.Time) error {
	i.stopSource()

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case ts := <-pulses:
			if err := i.record(drainCtx, ts); err != nil {
				return err
			}
		default:
			i.logger.Info("pulse ingestion stopped")
			return nil
		}
	}
}

func (i *Ingestor) stopSource() {
	if err := i.source.Stop(); err != nil {
		i.logger.Warn("stopping pulse source", "error", err)
	}
}
