package tariff

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validTable = `
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
"2025-06-01":
  standard:
    unit_rate: 27.03
    standing_charge: 0.0
  peak_offpeak:
    peak_rate: 32.91
    offpeak_rate: 15.27
    standing_charge: 12.9
  ev_anytime:
    unit_rate: 26.12
    standing_charge: 12.9
`

// writeTable writes a tariff file into a temp dir and returns its path.
func writeTable(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tariffs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing tariff file: %v", err)
	}
	return path
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLoad(t *testing.T) {
	table, err := Load(writeTable(t, validTable))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	versions := table.Versions()
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if !versions[0].EffectiveDate.Equal(date(2025, 1, 1)) {
		t.Errorf("first version effective %v, want 2025-01-01", versions[0].EffectiveDate)
	}
	if versions[0].Standard.UnitRate != 29.44 {
		t.Errorf("standard unit rate = %v, want 29.44", versions[0].Standard.UnitRate)
	}
	if versions[0].PeakOffPeak.OffPeakRate != 16.34 {
		t.Errorf("offpeak rate = %v, want 16.34", versions[0].PeakOffPeak.OffPeakRate)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "::: not yaml {{{"},
		{"empty table", ""},
		{
			"bad date key",
			`"June 2025":
  standard: {unit_rate: 1, standing_charge: 0}
  peak_offpeak: {peak_rate: 1, offpeak_rate: 1, standing_charge: 0}
  ev_anytime: {unit_rate: 1, standing_charge: 0}
`,
		},
		{
			"missing rate group",
			`"2025-01-01":
  standard: {unit_rate: 1, standing_charge: 0}
  ev_anytime: {unit_rate: 1, standing_charge: 0}
`,
		},
		{
			"negative rate",
			`"2025-01-01":
  standard: {unit_rate: -1, standing_charge: 0}
  peak_offpeak: {peak_rate: 1, offpeak_rate: 1, standing_charge: 0}
  ev_anytime: {unit_rate: 1, standing_charge: 0}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("Parse() error = %v, want ErrInvalidTable", err)
			}
		})
	}
}

// TestResolve_Monotonic verifies that resolution always picks the latest
// version effective on or before the requested date.
func TestResolve_Monotonic(t *testing.T) {
	table, err := Parse([]byte(validTable))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name          string
		query         time.Time
		wantEffective time.Time
	}{
		{"between versions", date(2025, 3, 15), date(2025, 1, 1)},
		{"after latest", date(2025, 7, 1), date(2025, 6, 1)},
		{"on first effective date", date(2025, 1, 1), date(2025, 1, 1)},
		{"on second effective date", date(2025, 6, 1), date(2025, 6, 1)},
		{"time of day ignored", time.Date(2025, 3, 15, 23, 59, 0, 0, time.UTC), date(2025, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := table.Resolve(tt.query)
			if err != nil {
				t.Fatalf("Resolve(%v) error = %v", tt.query, err)
			}
			if !v.EffectiveDate.Equal(tt.wantEffective) {
				t.Errorf("Resolve(%v) effective = %v, want %v",
					tt.query, v.EffectiveDate, tt.wantEffective)
			}
		})
	}
}

func TestResolve_BeforeFirstVersion(t *testing.T) {
	table, err := Parse([]byte(validTable))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	_, err = table.Resolve(date(2024, 12, 31))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestVersions_Copy(t *testing.T) {
	table, err := Parse([]byte(validTable))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	versions := table.Versions()
	versions[0].Standard.UnitRate = 999

	fresh := table.Versions()
	if fresh[0].Standard.UnitRate == 999 {
		t.Error("Versions() should return a copy, not the internal slice")
	}
}
