package query

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/geoawd/electricmonitor/internal/aggregate"
	"github.com/geoawd/electricmonitor/internal/energy"
	"github.com/geoawd/electricmonitor/internal/infrastructure/database"
	"github.com/geoawd/electricmonitor/internal/pulse"
	"github.com/geoawd/electricmonitor/internal/tariff"
)

const testTariffs = `
"2025-01-01":
  standard:
    unit_rate: 29.44
    standing_charge: 0.0
  peak_offpeak:
    peak_rate: 34.18
    offpeak_rate: 16.34
    standing_charge: 13.1
  ev_anytime:
    unit_rate: 27.93
    standing_charge: 13.1
`

// testFixture bundles the service with direct handles for seeding data.
type testFixture struct {
	svc   *Service
	store *pulse.Store
	agg   *aggregate.Aggregator
}

// newTestService builds a service over a temp database with UTC as the
// site timezone so test expectations need no offset arithmetic.
func newTestService(t *testing.T) testFixture {
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
		);
		CREATE TABLE hourly_pulses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hour_start TEXT NOT NULL UNIQUE,
			pulse_count INTEGER NOT NULL CHECK (pulse_count >= 0)
		);
	`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	table, err := tariff.Parse([]byte(testTariffs))
	if err != nil {
		t.Fatalf("parsing tariffs: %v", err)
	}

	retry := database.NewRetryPolicy(3, time.Millisecond)
	store := pulse.NewStore(db, retry)
	agg := aggregate.NewAggregator(db, retry)

	svc := NewService(store, agg, table, energy.NewCalculator(3200), time.UTC, Config{
		HourlyLookbackDays: 7,
		CostLookbackDays:   2,
	})

	return testFixture{svc: svc, store: store, agg: agg}
}

// seedHour records n pulses in the hour and aggregates it.
func (f testFixture) seedHour(t *testing.T, hour time.Time, n int) {
	t.Helper()

	ctx := context.Background()
	for i := 0; i < n; i++ {
		// Wrap within the hour; duplicate timestamps are fine in an
		// append-only log.
		ts := hour.Add(time.Duration(i%3600) * time.Second)
		if _, err := f.store.Record(ctx, ts); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if _, err := f.agg.Recompute(ctx, hour); err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
}

func TestValidateDate(t *testing.T) {
	f := newTestService(t)

	tests := []struct {
		date    string
		wantErr bool
	}{
		{"2025-06-01", false},
		{"2025-12-31", false},
		{"2025-13-40", true},
		{"not-a-date", true},
		{"2025-06-01T00:00:00Z", true},
		{"2025-6-1", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			_, err := f.svc.ValidateDate(tt.date)
			if tt.wantErr && !errors.Is(err, ErrInvalidDate) {
				t.Errorf("ValidateDate(%q) error = %v, want ErrInvalidDate", tt.date, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateDate(%q) error = %v", tt.date, err)
			}
		})
	}
}

// TestReport_InvalidDateRejectedBeforeStoreAccess uses a service whose
// database is already closed: a rejected date must never touch the store.
func TestReport_InvalidDateRejectedBeforeStoreAccess(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "closed.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	// No schema: any store access would fail loudly.
	retry := database.NewRetryPolicy(1, 0)
	table, err := tariff.Parse([]byte(testTariffs))
	if err != nil {
		t.Fatalf("parsing tariffs: %v", err)
	}
	svc := NewService(
		pulse.NewStore(db, retry),
		aggregate.NewAggregator(db, retry),
		table, energy.NewCalculator(3200), time.UTC, Config{},
	)
	db.Close() //nolint:errcheck // deliberately closed

	for _, date := range []string{"2025-13-40", "not-a-date"} {
		if _, err := svc.Report(context.Background(), date); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("Report(%q) error = %v, want ErrInvalidDate", date, err)
		}
	}
}

func TestReport(t *testing.T) {
	f := newTestService(t)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// Off-peak hour (03:00) and peak hour (14:00) on the reference day.
	f.seedHour(t, day.Add(3*time.Hour), 6400)
	f.seedHour(t, day.Add(14*time.Hour), 12800)

	report, err := f.svc.Report(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	if report.Date != "2025-06-01" {
		t.Errorf("Date = %q, want 2025-06-01", report.Date)
	}

	t.Run("minute series from raw pulses", func(t *testing.T) {
		if len(report.MinuteSeries) == 0 {
			t.Fatal("minute series empty")
		}
		var total int64
		for _, p := range report.MinuteSeries {
			total += p.Count
		}
		if total != 19200 {
			t.Errorf("minute series total = %d, want 19200", total)
		}
	})

	t.Run("hourly series from buckets", func(t *testing.T) {
		if len(report.HourlySeries) != 2 {
			t.Fatalf("len(HourlySeries) = %d, want 2", len(report.HourlySeries))
		}
		if report.HourlySeries[0].Count != 6400 {
			t.Errorf("first hour count = %d, want 6400", report.HourlySeries[0].Count)
		}
	})

	t.Run("daily split", func(t *testing.T) {
		if len(report.DailySplit) != 2 {
			t.Fatalf("len(DailySplit) = %d, want 2 (cost lookback)", len(report.DailySplit))
		}
		refDay := report.DailySplit[1]
		if refDay.Date != "2025-06-01" {
			t.Fatalf("last split date = %q, want reference day", refDay.Date)
		}
		if math.Abs(refDay.OffPeakKWh-2) > 1e-9 {
			t.Errorf("OffPeakKWh = %v, want 2", refDay.OffPeakKWh)
		}
		if math.Abs(refDay.PeakKWh-4) > 1e-9 {
			t.Errorf("PeakKWh = %v, want 4", refDay.PeakKWh)
		}
	})

	t.Run("daily costs", func(t *testing.T) {
		refDay := report.DailyCosts[1]
		// 2*16.34/100 + 4*34.18/100 + 13.1/100
		if math.Abs(refDay.PeakOffPeak-1.825) > 1e-9 {
			t.Errorf("PeakOffPeak cost = %v, want 1.825", refDay.PeakOffPeak)
		}
		// 6 kWh total at 29.44p, no standing charge
		if math.Abs(refDay.Standard-6*29.44/100) > 1e-9 {
			t.Errorf("Standard cost = %v, want %v", refDay.Standard, 6*29.44/100)
		}
	})

	t.Run("date range", func(t *testing.T) {
		if report.DateRange == nil {
			t.Fatal("DateRange = nil, want populated range")
		}
		if !report.DateRange.First.Equal(day.Add(3 * time.Hour)) {
			t.Errorf("First = %v, want %v", report.DateRange.First, day.Add(3*time.Hour))
		}
	})
}

func TestReport_TariffGapFailsClosed(t *testing.T) {
	f := newTestService(t)

	// Window ending 2024-12-31 predates the only tariff version.
	_, err := f.svc.Report(context.Background(), "2024-12-31")
	if !errors.Is(err, tariff.ErrNotFound) {
		t.Errorf("Report() error = %v, want tariff.ErrNotFound", err)
	}
}

func TestReport_EmptyStore(t *testing.T) {
	f := newTestService(t)

	report, err := f.svc.Report(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	if len(report.MinuteSeries) != 0 {
		t.Errorf("MinuteSeries = %v, want empty", report.MinuteSeries)
	}
	if len(report.HourlySeries) != 0 {
		t.Errorf("HourlySeries = %v, want empty", report.HourlySeries)
	}
	if report.DateRange != nil {
		t.Errorf("DateRange = %+v, want nil for empty store", report.DateRange)
	}
	// Split and costs still cover the window, with zero consumption
	if len(report.DailySplit) != 2 {
		t.Errorf("len(DailySplit) = %d, want 2", len(report.DailySplit))
	}
	if report.DailyCosts[0].Standard != 0 {
		t.Errorf("zero-consumption standard cost = %v, want 0", report.DailyCosts[0].Standard)
	}
}
