package field

import (
	"slices"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Breaks returns the strictly increasing thresholds to contour for the given
// sample values. Explicit thresholds are sorted, deduplicated and filtered to
// the open interval (min, max) of the finite values. Without explicit
// thresholds the range is split into count equal parts and the count-1
// interior boundaries are returned. The result is never nil.
func Breaks(values []float64, explicit []float64, count int) []float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if domain.IsFinite(v) {
			finite = append(finite, v)
		}
	}
	out := []float64{}
	if len(finite) == 0 {
		return out
	}
	lo, hi := floats.Min(finite), floats.Max(finite)
	if !(lo < hi) {
		return out
	}

	if len(explicit) > 0 {
		sorted := slices.Clone(explicit)
		slices.Sort(sorted)
		for _, b := range slices.Compact(sorted) {
			if domain.IsFinite(b) && lo < b && b < hi {
				out = append(out, b)
			}
		}
		return out
	}

	if count < 2 {
		return out
	}
	span := floats.Span(make([]float64, count+1), lo, hi)
	for _, b := range span[1:count] {
		if lo < b && b < hi && (len(out) == 0 || b > out[len(out)-1]) {
			out = append(out, b)
		}
	}
	return out
}
