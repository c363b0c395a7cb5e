package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geoawd/electricmonitor/internal/aggregate"
	"github.com/geoawd/electricmonitor/internal/energy"
	"github.com/geoawd/electricmonitor/internal/pulse"
	"github.com/geoawd/electricmonitor/internal/tariff"
)

// ErrInvalidDate is returned for a malformed or impossible reference date.
// Validation happens before any store access; a bad date never produces a
// partial result.
var ErrInvalidDate = errors.New("query: invalid date")

// dateLayout is the reference-date format accepted by Report.
const dateLayout = "2006-01-02"

// MinutePoint is one minute's raw pulse count, keyed in site-local time.
type MinutePoint struct {
	Minute time.Time `json:"minute"`
	Count  int64     `json:"count"`
}

// HourPoint is one hourly bucket, keyed in site-local time.
type HourPoint struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// DaySplit is one day's consumption split across the off-peak window.
type DaySplit struct {
	Date       string  `json:"date"`
	PeakKWh    float64 `json:"peak_kwh"`
	OffPeakKWh float64 `json:"offpeak_kwh"`
}

// DayCost is one day's cost in pounds under each tariff scheme.
type DayCost struct {
	Date        string  `json:"date"`
	Standard    float64 `json:"standard"`
	PeakOffPeak float64 `json:"peak_offpeak"`
	EVAnytime   float64 `json:"ev_anytime"`
}

// DateRange is the overall span of recorded events.
type DateRange struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Report is the full read-side view for one reference date.
type Report struct {
	Date         string        `json:"date"`
	MinuteSeries []MinutePoint `json:"minute_series"`
	HourlySeries []HourPoint   `json:"hourly_series"`
	DailySplit   []DaySplit    `json:"daily_split"`
	DailyCosts   []DayCost     `json:"daily_costs"`
	DateRange    *DateRange    `json:"date_range"`
}

// Config carries the lookback windows for report assembly.
type Config struct {
	// HourlyLookbackDays is the trailing window for the hourly series.
	HourlyLookbackDays int
	// CostLookbackDays is the trailing window for the daily split and costs.
	CostLookbackDays int
}

// Service composes the event store, hourly buckets, tariff table, and cost
// calculator into time-windowed views. It is a pure reader.
//
// Storage is UTC throughout; every grouping the service performs (minutes,
// hours, days, the off-peak window) is done in the site's local timezone.
type Service struct {
	store   *pulse.Store
	agg     *aggregate.Aggregator
	tariffs *tariff.Table
	calc    energy.Calculator
	loc     *time.Location
	cfg     Config
}

// NewService creates the query service.
func NewService(
	store *pulse.Store,
	agg *aggregate.Aggregator,
	tariffs *tariff.Table,
	calc energy.Calculator,
	loc *time.Location,
	cfg Config,
) *Service {
	if cfg.HourlyLookbackDays < 1 {
		cfg.HourlyLookbackDays = 7
	}
	if cfg.CostLookbackDays < 1 {
		cfg.CostLookbackDays = 14
	}
	return &Service{
		store:   store,
		agg:     agg,
		tariffs: tariffs,
		calc:    calc,
		loc:     loc,
		cfg:     cfg,
	}
}

// ValidateDate parses a strict YYYY-MM-DD reference date in the site
// timezone. Wrong shape or an impossible calendar date (2025-13-40) fails
// with ErrInvalidDate.
func (s *Service) ValidateDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return day, nil
}

// Today returns the current date string in the site timezone.
func (s *Service) Today() string {
	return time.Now().In(s.loc).Format(dateLayout)
}

// Report assembles the full view for the given reference date.
//
// The date is validated before any store access. A day inside the cost
// window with no resolvable tariff fails the whole report; costs are never
// silently omitted or defaulted.
func (s *Service) Report(ctx context.Context, date string) (*Report, error) {
	refDay, err := s.ValidateDate(date)
	if err != nil {
		return nil, err
	}

	report := &Report{Date: date}

	if report.MinuteSeries, err = s.minuteSeries(ctx, refDay); err != nil {
		return nil, err
	}
	if report.HourlySeries, err = s.hourlySeries(ctx, refDay); err != nil {
		return nil, err
	}
	if report.DailySplit, report.DailyCosts, err = s.dailyBreakdown(ctx, refDay); err != nil {
		return nil, err
	}
	if report.DateRange, err = s.dateRange(ctx); err != nil {
		return nil, err
	}

	return report, nil
}

// minuteSeries returns per-minute raw pulse counts for the reference day.
// Raw pulses, not buckets: the day view wants finer granularity than the
// hourly aggregate.
func (s *Service) minuteSeries(ctx context.Context, refDay time.Time) ([]MinutePoint, error) {
	counts, err := s.store.MinuteCounts(ctx, refDay, refDay.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("building minute series: %w", err)
	}

	series := make([]MinutePoint, len(counts))
	for i, c := range counts {
		series[i] = MinutePoint{Minute: c.Minute.In(s.loc), Count: c.Count}
	}
	return series, nil
}

// hourlySeries returns bucket counts for the trailing hourly window ending
// at the reference day (inclusive).
func (s *Service) hourlySeries(ctx context.Context, refDay time.Time) ([]HourPoint, error) {
	from := refDay.AddDate(0, 0, -(s.cfg.HourlyLookbackDays - 1))
	to := refDay.AddDate(0, 0, 1)

	buckets, err := s.agg.BucketsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("building hourly series: %w", err)
	}

	series := make([]HourPoint, len(buckets))
	for i, b := range buckets {
		series[i] = HourPoint{Hour: b.HourStart.In(s.loc), Count: b.PulseCount}
	}
	return series, nil
}

// dailyBreakdown returns the peak/off-peak split and the three-scheme cost
// for each day of the trailing cost window ending at the reference day.
func (s *Service) dailyBreakdown(ctx context.Context, refDay time.Time) ([]DaySplit, []DayCost, error) {
	days := s.cfg.CostLookbackDays
	splits := make([]DaySplit, 0, days)
	costs := make([]DayCost, 0, days)

	for offset := days - 1; offset >= 0; offset-- {
		day := refDay.AddDate(0, 0, -offset)

		peakPulses, offPeakPulses, err := s.splitDay(ctx, day)
		if err != nil {
			return nil, nil, err
		}

		peakKWh := s.calc.PulsesToKWh(peakPulses)
		offPeakKWh := s.calc.PulsesToKWh(offPeakPulses)
		totalKWh := peakKWh + offPeakKWh

		version, err := s.tariffs.Resolve(day)
		if err != nil {
			return nil, nil, fmt.Errorf("pricing %s: %w", day.Format(dateLayout), err)
		}

		dateStr := day.Format(dateLayout)
		splits = append(splits, DaySplit{
			Date:       dateStr,
			PeakKWh:    peakKWh,
			OffPeakKWh: offPeakKWh,
		})
		costs = append(costs, DayCost{
			Date:        dateStr,
			Standard:    s.calc.StandardCost(totalKWh, version),
			PeakOffPeak: s.calc.PeakOffPeakCost(peakKWh, offPeakKWh, version),
			EVAnytime:   s.calc.EVAnytimeCost(totalKWh, version),
		})
	}

	return splits, costs, nil
}

// splitDay sums the day's bucket counts into peak and off-peak pulses.
// The off-peak test uses the bucket's local hour, so the window follows
// wall-clock time across daylight-saving transitions.
func (s *Service) splitDay(ctx context.Context, day time.Time) (peak, offPeak int64, err error) {
	buckets, err := s.agg.BucketsInRange(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return 0, 0, fmt.Errorf("splitting day %s: %w", day.Format(dateLayout), err)
	}

	for _, b := range buckets {
		if energy.IsOffPeak(b.HourStart.In(s.loc).Hour()) {
			offPeak += b.PulseCount
		} else {
			peak += b.PulseCount
		}
	}
	return peak, offPeak, nil
}

// dateRange returns the overall recorded span, nil when the store is empty.
func (s *Service) dateRange(ctx context.Context) (*DateRange, error) {
	first, last, ok, err := s.store.DateRange(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading date range: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &DateRange{First: first.In(s.loc), Last: last.In(s.loc)}, nil
}
