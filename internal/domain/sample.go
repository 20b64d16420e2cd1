package domain

import "math"

// RawRecord is one row handed over by an ingestion adapter. Field names are
// lower-cased column headers; values are the untrimmed source text.
type RawRecord struct {
	Line   int
	Fields map[string]string
}

// Sample is a validated observation. Parameter values are NaN when the
// source did not carry a usable number.
type Sample struct {
	Lon     float64
	Lat     float64
	Year    int
	Horizon Horizon

	TempC       float64
	SalinityPSU float64
	OxygenMgL   float64
	PH          float64
}

// HasCoordinates reports whether both coordinates are finite and within
// geographic range.
func (s Sample) HasCoordinates() bool {
	return isFinite(s.Lon) && isFinite(s.Lat) &&
		s.Lon >= -180 && s.Lon <= 180 && s.Lat >= -90 && s.Lat <= 90
}

// Point is a (lon, lat, value) triple fed into interpolation.
type Point struct {
	Lon   float64
	Lat   float64
	Value float64
}

// Group identifies the samples of one year at one horizon.
type Group struct {
	Year    int
	Horizon Horizon
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool { return isFinite(v) }
