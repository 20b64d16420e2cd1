// Package domain models oceanographic samples and the contour sets derived
// from them.
//
// # Data Source
//
// Samples arrive as tabular rows (CSV exports of cruise station data, or a
// SQLite table with the same columns). Each row carries a station position,
// the sampling year, the depth horizon and zero or more measured parameters.
//
// Column conventions:
//
//	longitude / lon, latitude / lat   decimal degrees, WGS-84
//	year                              integer; "2020.0" is accepted
//	horizon                           "surface" or "bottom", any case
//	temp_c / temperature              degrees Celsius
//	salinity_psu / salinity           practical salinity units
//	oxygen_mg_l / dissolved_oxygen    milligrams per litre
//	ph                                pH units
//
// A row with an unparsable position, year or horizon is dropped with a
// [ParseError]. An unparsable or blank parameter cell is stored as NaN and
// only excludes that (sample, parameter) pair from interpolation.
//
// # Keys
//
// Results are addressed by (year, horizon, parameter). [ParseKey] is the
// single normalization point: it trims, folds case and coerces numeric year
// text so that writers and readers always agree. Parameters and horizons are
// closed enumerations; anything else is a [ValidationError].
//
// # Contour Sets
//
// A [ContourSet] is written once per key and never mutated. It renders to a
// GeoJSON FeatureCollection of LineStrings whose "value" property is the
// threshold the line was traced at.
package domain
