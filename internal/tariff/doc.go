// Package tariff loads and resolves the versioned rate table.
//
// The table maps effective dates to rate sets for the three pricing
// schemes (standard, peak/off-peak, EV anytime). It is loaded once at
// startup from YAML and is immutable for the process lifetime. Resolution
// picks the version with the greatest effective date on or before the
// requested date and fails with ErrNotFound when no version qualifies.
package tariff
