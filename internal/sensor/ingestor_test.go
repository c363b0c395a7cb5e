package sensor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/geoawd/electricmonitor/internal/infrastructure/database"
	"github.com/geoawd/electricmonitor/internal/infrastructure/logging"
	"github.com/geoawd/electricmonitor/internal/pulse"
)

// fakeSource is a test double delivering pulses on demand.
type fakeSource struct {
	mu      sync.Mutex
	emit    func(ts time.Time)
	stopped bool
}

func (f *fakeSource) Start(_ context.Context, emit func(ts time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emit = emit
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSource) pulse(ts time.Time) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	emit(ts)
}

func (f *fakeSource) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func newTestStore(t *testing.T) *pulse.Store {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE pulses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating pulses table: %v", err)
	}

	return pulse.NewStore(db, database.NewRetryPolicy(3, time.Millisecond))
}

func TestIngestor_RecordsPulses(t *testing.T) {
	store := newTestStore(t)
	source := &fakeSource{}
	ingestor := NewIngestor(source, store, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ingestor.Run(ctx)
	}()

	// Wait for the source to be started
	deadline := time.After(2 * time.Second)
	for {
		source.mu.Lock()
		ready := source.emit != nil
		source.mu.Unlock()
		if ready {
			break
		}
		select {
		case <-deadline:
			t.Fatal("source never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ts := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	source.pulse(ts)
	source.pulse(ts.Add(time.Second))

	// Give the loop time to store both
	time.Sleep(100 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	count, err := store.CountInRange(context.Background(), ts, ts.Add(time.Minute))
	if err != nil {
		t.Fatalf("CountInRange() error = %v", err)
	}
	if count != 2 {
		t.Errorf("stored pulses = %d, want 2", count)
	}
	if !source.wasStopped() {
		t.Error("source was not stopped on shutdown")
	}
}

// TestIngestor_StopsCleanlyWhenCancelled verifies Run returns promptly and
// stops the source when the context is already cancelled.
func TestIngestor_StopsCleanlyWhenCancelled(t *testing.T) {
	store := newTestStore(t)
	source := &fakeSource{}
	ingestor := NewIngestor(source, store, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- ingestor.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if !source.wasStopped() {
		t.Error("source was not stopped")
	}
}

func TestParseTimestamp(t *testing.T) {
	sensorTS := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		payload    []byte
		wantSensor bool
	}{
		{"empty payload stamps arrival", nil, false},
		{"sensor timestamp honoured", []byte(`{"timestamp":"2025-06-01T14:30:00Z"}`), true},
		{"malformed json falls back", []byte(`{not json`), false},
		{"missing field falls back", []byte(`{"other":1}`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now()
			got := parseTimestamp(tt.payload)

			if tt.wantSensor {
				if !got.Equal(sensorTS) {
					t.Errorf("parseTimestamp() = %v, want %v", got, sensorTS)
				}
				return
			}
			if got.Before(before) || got.After(time.Now()) {
				t.Errorf("parseTimestamp() = %v, want arrival time near now", got)
			}
		})
	}
}
