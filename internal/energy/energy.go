package energy

import (
	"github.com/geoawd/electricmonitor/internal/tariff"
)

// Off-peak window boundaries, local-time hours. The window is [start, end):
// 02:00 inclusive to 09:00 exclusive. All other hours are peak.
const (
	OffPeakStartHour = 2
	OffPeakEndHour   = 9
)

// DefaultPulsesPerKWh is the calibration constant for the metering hardware:
// the meter LED flashes 3200 times per kilowatt-hour.
const DefaultPulsesPerKWh = 3200

// penceToPounds converts rates expressed in pence to pounds.
const penceToPounds = 100

// Calculator converts pulse counts into kilowatt-hours and cost figures.
// All methods are pure; the only state is the calibration constant.
type Calculator struct {
	// PulsesPerKWh is the fixed pulses-per-kWh conversion factor shared by
	// all consumers.
	PulsesPerKWh float64
}

// NewCalculator returns a Calculator with the given calibration constant.
// A non-positive value falls back to DefaultPulsesPerKWh.
func NewCalculator(pulsesPerKWh float64) Calculator {
	if pulsesPerKWh <= 0 {
		pulsesPerKWh = DefaultPulsesPerKWh
	}
	return Calculator{PulsesPerKWh: pulsesPerKWh}
}

// PulsesToKWh converts a raw pulse count to kilowatt-hours.
func (c Calculator) PulsesToKWh(count int64) float64 {
	return float64(count) / c.PulsesPerKWh
}

// StandardCost returns the day's cost in pounds under the standard flat tariff.
// Rates are stored in pence; the /100 scaling converts to pounds.
func (c Calculator) StandardCost(totalKWh float64, v tariff.Version) float64 {
	return totalKWh*v.Standard.UnitRate/penceToPounds + v.Standard.StandingCharge/penceToPounds
}

// EVAnytimeCost returns the day's cost in pounds under the EV anytime tariff.
func (c Calculator) EVAnytimeCost(totalKWh float64, v tariff.Version) float64 {
	return totalKWh*v.EVAnytime.UnitRate/penceToPounds + v.EVAnytime.StandingCharge/penceToPounds
}

// PeakOffPeakCost returns the day's cost in pounds under the time-of-use
// tariff, given the peak and off-peak consumption split.
func (c Calculator) PeakOffPeakCost(peakKWh, offPeakKWh float64, v tariff.Version) float64 {
	return peakKWh*v.PeakOffPeak.PeakRate/penceToPounds +
		offPeakKWh*v.PeakOffPeak.OffPeakRate/penceToPounds +
		v.PeakOffPeak.StandingCharge/penceToPounds
}

// IsOffPeak reports whether a local-time hour falls inside the off-peak window.
func IsOffPeak(hour int) bool {
	return hour >= OffPeakStartHour && hour < OffPeakEndHour
}
