package tariff

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for tariff operations.
var (
	// ErrNotFound is returned when no tariff version is effective on or
	// before the requested date. Resolution fails closed; there is no
	// implicit default rate.
	ErrNotFound = errors.New("tariff: no version effective for date")

	// ErrInvalidTable is returned when the tariff file violates the schema.
	// Schema violations are fatal at load time.
	ErrInvalidTable = errors.New("tariff: invalid tariff table")
)

// dateLayout is the ISO-8601 date format keying the tariff file.
const dateLayout = "2006-01-02"

// StandardRates is the flat-rate scheme: one unit rate for all hours.
type StandardRates struct {
	UnitRate       float64 `yaml:"unit_rate"`
	StandingCharge float64 `yaml:"standing_charge"`
}

// PeakOffPeakRates is the time-of-use scheme with discounted off-peak hours.
type PeakOffPeakRates struct {
	PeakRate       float64 `yaml:"peak_rate"`
	OffPeakRate    float64 `yaml:"offpeak_rate"`
	StandingCharge float64 `yaml:"standing_charge"`
}

// EVAnytimeRates is the flat EV scheme: a single discounted anytime rate.
type EVAnytimeRates struct {
	UnitRate       float64 `yaml:"unit_rate"`
	StandingCharge float64 `yaml:"standing_charge"`
}

// Version is one dated set of rates. All rates are in pence.
type Version struct {
	EffectiveDate time.Time
	Standard      StandardRates
	PeakOffPeak   PeakOffPeakRates
	EVAnytime     EVAnytimeRates
}

// versionYAML is the on-disk shape of one tariff version.
type versionYAML struct {
	Standard    *StandardRates    `yaml:"standard"`
	PeakOffPeak *PeakOffPeakRates `yaml:"peak_offpeak"`
	EVAnytime   *EVAnytimeRates   `yaml:"ev_anytime"`
}

// Table is the immutable, process-wide tariff table. Versions are held
// sorted by effective date ascending. Adding a version requires a restart;
// tariff changes are infrequent, human-scheduled events.
type Table struct {
	versions []Version
}

// Load reads the tariff table from a YAML file.
//
// The file maps ISO-8601 date strings to the three rate groups:
//
//	"2025-01-01":
//	  standard:
//	    unit_rate: 29.44
//	    standing_charge: 0.0
//	  peak_offpeak:
//	    peak_rate: 34.18
//	    offpeak_rate: 16.34
//	    standing_charge: 13.1
//	  ev_anytime:
//	    unit_rate: 27.93
//	    standing_charge: 13.1
//
// Schema violations (unparseable date key, missing rate group, negative
// rate) fail the load. An empty table is also invalid: a process with no
// tariffs could never price anything.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tariff file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Table from raw YAML. See Load for the expected shape.
func Parse(data []byte) (*Table, error) {
	var raw map[string]versionYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no versions defined", ErrInvalidTable)
	}

	versions := make([]Version, 0, len(raw))
	for key, entry := range raw {
		date, err := time.ParseInLocation(dateLayout, key, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: bad effective date %q", ErrInvalidTable, key)
		}

		v, err := buildVersion(date, entry)
		if err != nil {
			return nil, fmt.Errorf("%w: version %q: %w", ErrInvalidTable, key, err)
		}
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].EffectiveDate.Before(versions[j].EffectiveDate)
	})

	return &Table{versions: versions}, nil
}

// buildVersion validates one parsed entry and assembles the Version.
func buildVersion(date time.Time, entry versionYAML) (Version, error) {
	if entry.Standard == nil {
		return Version{}, errors.New("missing standard rate group")
	}
	if entry.PeakOffPeak == nil {
		return Version{}, errors.New("missing peak_offpeak rate group")
	}
	if entry.EVAnytime == nil {
		return Version{}, errors.New("missing ev_anytime rate group")
	}

	rates := map[string]float64{
		"standard.unit_rate":           entry.Standard.UnitRate,
		"standard.standing_charge":     entry.Standard.StandingCharge,
		"peak_offpeak.peak_rate":       entry.PeakOffPeak.PeakRate,
		"peak_offpeak.offpeak_rate":    entry.PeakOffPeak.OffPeakRate,
		"peak_offpeak.standing_charge": entry.PeakOffPeak.StandingCharge,
		"ev_anytime.unit_rate":         entry.EVAnytime.UnitRate,
		"ev_anytime.standing_charge":   entry.EVAnytime.StandingCharge,
	}
	for name, rate := range rates {
		if rate < 0 {
			return Version{}, fmt.Errorf("%s must not be negative", name)
		}
	}

	return Version{
		EffectiveDate: date,
		Standard:      *entry.Standard,
		PeakOffPeak:   *entry.PeakOffPeak,
		EVAnytime:     *entry.EVAnytime,
	}, nil
}

// Resolve returns the version effective on the given date: the one with
// the greatest effective date that is on or before the date. If every
// version postdates the requested date, ErrNotFound is returned.
//
// Only the calendar date matters; the time-of-day portion is ignored.
func (t *Table) Resolve(date time.Time) (Version, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	// Versions are sorted ascending; walk back from the latest.
	for i := len(t.versions) - 1; i >= 0; i-- {
		if !t.versions[i].EffectiveDate.After(day) {
			return t.versions[i], nil
		}
	}
	return Version{}, fmt.Errorf("%w: %s", ErrNotFound, day.Format(dateLayout))
}

// Versions returns the loaded versions ordered by effective date ascending.
func (t *Table) Versions() []Version {
	out := make([]Version, len(t.versions))
	copy(out, t.versions)
	return out
}
