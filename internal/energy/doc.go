// Package energy converts pulse counts into kilowatt-hours and derives
// daily cost under the supported tariff schemes.
//
// Every function is pure. One meter pulse represents a fixed energy
// quantum (1/PulsesPerKWh kWh); tariff rates are expressed in pence and
// costs are returned in pounds.
package energy
