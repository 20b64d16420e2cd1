package domain

import (
	"math"
	"strings"
)

// Parameter identifies a measured scalar field. The set is closed: every
// value has an entry in parameterSpecs.
type Parameter int

const (
	TemperatureC Parameter = iota
	SalinityPSU
	OxygenMgL
	PH

	parameterCount
)

type parameterSpec struct {
	name    string
	unit    string
	columns []string
	value   func(Sample) float64
}

// parameterSpecs is indexed by Parameter.
var parameterSpecs = [parameterCount]parameterSpec{
	TemperatureC: {
		name:    "temp_c",
		unit:    "°C",
		columns: []string{"temp_c", "temperature", "temp"},
		value:   func(s Sample) float64 { return s.TempC },
	},
	SalinityPSU: {
		name:    "salinity_psu",
		unit:    "PSU",
		columns: []string{"salinity_psu", "salinity", "sal"},
		value:   func(s Sample) float64 { return s.SalinityPSU },
	},
	OxygenMgL: {
		name:    "oxygen_mg_l",
		unit:    "mg/L",
		columns: []string{"oxygen_mg_l", "dissolved_oxygen", "do_mg_l", "oxygen"},
		value:   func(s Sample) float64 { return s.OxygenMgL },
	},
	PH: {
		name:    "ph",
		unit:    "pH",
		columns: []string{"ph"},
		value:   func(s Sample) float64 { return s.PH },
	},
}

// Parameters returns every supported parameter in enumeration order.
func Parameters() []Parameter {
	out := make([]Parameter, parameterCount)
	for i := range out {
		out[i] = Parameter(i)
	}
	return out
}

// ParseParameter resolves a canonical parameter name, ignoring case and
// surrounding whitespace. Column aliases are not accepted here.
func ParseParameter(s string) (Parameter, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, spec := range parameterSpecs {
		if spec.name == s {
			return Parameter(i), true
		}
	}
	return 0, false
}

func (p Parameter) Valid() bool { return p >= 0 && p < parameterCount }

func (p Parameter) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return parameterSpecs[p].name
}

// Unit is the display unit of the parameter.
func (p Parameter) Unit() string {
	if !p.Valid() {
		return ""
	}
	return parameterSpecs[p].unit
}

// Columns lists the lower-case column headers that carry this parameter in
// tabular sources.
func (p Parameter) Columns() []string {
	if !p.Valid() {
		return nil
	}
	return parameterSpecs[p].columns
}

// Value returns the sample's value for p, or NaN when absent.
func (p Parameter) Value(s Sample) float64 {
	if !p.Valid() {
		return math.NaN()
	}
	return parameterSpecs[p].value(s)
}

// Horizon is the named depth level a sample was taken at.
type Horizon int

const (
	Surface Horizon = iota
	Bottom

	horizonCount
)

var horizonNames = [horizonCount]string{
	Surface: "surface",
	Bottom:  "bottom",
}

// Horizons returns every supported horizon in enumeration order.
func Horizons() []Horizon {
	return []Horizon{Surface, Bottom}
}

// ParseHorizon resolves a horizon name, ignoring case and surrounding whitespace.
func ParseHorizon(s string) (Horizon, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range horizonNames {
		if name == s {
			return Horizon(i), true
		}
	}
	return 0, false
}

func (h Horizon) Valid() bool { return h >= 0 && h < horizonCount }

func (h Horizon) String() string {
	if !h.Valid() {
		return "unknown"
	}
	return horizonNames[h]
}
