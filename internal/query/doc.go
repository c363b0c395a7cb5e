// Package query is the read side of the monitor: it composes the pulse
// store, hourly buckets, tariff table, and cost calculator into the
// time-windowed report served by the HTTP API.
//
// Reference dates are validated strictly before any store access. All
// series are grouped in the site's local timezone; storage stays UTC.
package query
