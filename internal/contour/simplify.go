package contour

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Simplify reduces vertex count with Douglas-Peucker at the given tolerance
// in degrees. A non-positive tolerance returns the lines unchanged. Closed
// lines stay closed; lines reduced below two points or to zero length, as
// small rings collapse to a repeated point, are dropped.
func Simplify(lines []orb.LineString, tolerance float64) []orb.LineString {
	if tolerance <= 0 {
		return lines
	}
	dp := simplify.DouglasPeucker(tolerance)
	out := make([]orb.LineString, 0, len(lines))
	for _, l := range lines {
		s, ok := dp.Simplify(l.Clone()).(orb.LineString)
		if !ok || len(s) < 2 || planar.Length(s) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}
