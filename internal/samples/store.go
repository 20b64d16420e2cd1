// Package samples holds validated oceanographic samples grouped by
// (year, horizon) and exposes filtered point views over them.
package samples

import (
	"errors"
	"iter"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
)

// Stats summarizes one load.
type Stats struct {
	Records  int
	Loaded   int
	Rejected int
}

// Set is an immutable collection of samples. It is safe for concurrent reads.
type Set struct {
	groups map[domain.Group][]domain.Sample
	order  []domain.Group
}

var (
	lonColumns     = []string{"longitude", "lon", "long"}
	latColumns     = []string{"latitude", "lat"}
	yearColumns    = []string{"year"}
	horizonColumns = []string{"horizon", "depth_horizon", "level"}
)

// Load validates raw records into a Set. Records with an unparsable position,
// year or horizon are dropped and logged; they never fail the load.
func Load(records []domain.RawRecord, logger *slog.Logger) (*Set, Stats) {
	set := &Set{groups: make(map[domain.Group][]domain.Sample)}
	stats := Stats{Records: len(records)}

	for _, rec := range records {
		s, err := ParseRecord(rec)
		if err != nil {
			stats.Rejected++
			var perr *domain.ParseError
			if errors.As(err, &perr) {
				logger.Debug("sample record dropped",
					"line", perr.Line,
					"field", perr.Field,
					"value", perr.Value,
				)
			}
			continue
		}
		g := domain.Group{Year: s.Year, Horizon: s.Horizon}
		if _, ok := set.groups[g]; !ok {
			set.order = append(set.order, g)
		}
		set.groups[g] = append(set.groups[g], s)
		stats.Loaded++
	}

	slices.SortFunc(set.order, func(a, b domain.Group) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return int(a.Horizon) - int(b.Horizon)
	})

	return set, stats
}

// ParseRecord converts one raw record. Required fields yield a
// *domain.ParseError; parameter fields fall back to NaN.
func ParseRecord(rec domain.RawRecord) (domain.Sample, error) {
	lonText, _ := lookup(rec.Fields, lonColumns)
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return domain.Sample{}, &domain.ParseError{Line: rec.Line, Field: "longitude", Value: lonText, Err: err}
	}

	latText, _ := lookup(rec.Fields, latColumns)
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return domain.Sample{}, &domain.ParseError{Line: rec.Line, Field: "latitude", Value: latText, Err: err}
	}

	yearText, _ := lookup(rec.Fields, yearColumns)
	year, err := domain.ParseYear(yearText)
	if err != nil {
		return domain.Sample{}, &domain.ParseError{Line: rec.Line, Field: "year", Value: yearText, Err: err}
	}

	horizonText, _ := lookup(rec.Fields, horizonColumns)
	horizon, ok := domain.ParseHorizon(horizonText)
	if !ok {
		return domain.Sample{}, &domain.ParseError{Line: rec.Line, Field: "horizon", Value: horizonText}
	}

	return domain.Sample{
		Lon:         lon,
		Lat:         lat,
		Year:        year,
		Horizon:     horizon,
		TempC:       parameterValue(rec.Fields, domain.TemperatureC),
		SalinityPSU: parameterValue(rec.Fields, domain.SalinityPSU),
		OxygenMgL:   parameterValue(rec.Fields, domain.OxygenMgL),
		PH:          parameterValue(rec.Fields, domain.PH),
	}, nil
}

func lookup(fields map[string]string, names []string) (string, bool) {
	for _, n := range names {
		if v, ok := fields[n]; ok {
			return v, true
		}
	}
	return "", false
}

// parameterValue returns NaN for absent, blank or malformed cells.
func parameterValue(fields map[string]string, p domain.Parameter) float64 {
	raw, ok := lookup(fields, p.Columns())
	if !ok {
		return math.NaN()
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !domain.IsFinite(v) {
		return math.NaN()
	}
	return v
}

// Groups returns the observed (year, horizon) pairs, sorted.
func (s *Set) Groups() []domain.Group {
	return slices.Clone(s.order)
}

// Len returns the number of stored samples.
func (s *Set) Len() int {
	n := 0
	for _, g := range s.groups {
		n += len(g)
	}
	return n
}

// Filter yields the usable (lon, lat, value) points for one selection. The
// sequence is lazy and can be ranged over any number of times.
func (s *Set) Filter(year int, horizon domain.Horizon, p domain.Parameter) iter.Seq[domain.Point] {
	samples := s.groups[domain.Group{Year: year, Horizon: horizon}]
	return func(yield func(domain.Point) bool) {
		for _, smp := range samples {
			if !smp.HasCoordinates() {
				continue
			}
			v := p.Value(smp)
			if !domain.IsFinite(v) {
				continue
			}
			if !yield(domain.Point{Lon: smp.Lon, Lat: smp.Lat, Value: v}) {
				return
			}
		}
	}
}

// Coordinates yields every sample position that has finite coordinates,
// across all groups. Values are zero.
func (s *Set) Coordinates() iter.Seq[domain.Point] {
	return func(yield func(domain.Point) bool) {
		for _, g := range s.order {
			for _, smp := range s.groups[g] {
				if !smp.HasCoordinates() {
					continue
				}
				if !yield(domain.Point{Lon: smp.Lon, Lat: smp.Lat}) {
					return
				}
			}
		}
	}
}
