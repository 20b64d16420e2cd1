// Package geo builds the working region around the samples and prepares the
// land polygon used to clip contours.
package geo

import (
	"iter"
	"math"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/paulmach/orb"
)

// KmPerDegreeLat is the length of one degree of latitude on the WGS-84 mean
// sphere.
const KmPerDegreeLat = 111.32

// minCosLat keeps the longitude margin finite near the poles.
const minCosLat = 0.01

// Region is the axis-aligned working extent, already expanded by the margin.
type Region struct {
	Bound    orb.Bound
	MarginKm float64
	Points   int
}

// BuildRegion bounds every point with finite coordinates and pads the box by
// marginKm.
//
// The margin is converted to degrees with a flat approximation evaluated at
// the box's mid-latitude: one degree of latitude is KmPerDegreeLat km and one
// degree of longitude is that times cos(lat). Over a regional, mid-latitude
// extent the error is a few percent of the margin, far below the grid cell
// size. It is not suitable for polar or global extents.
func BuildRegion(points iter.Seq[domain.Point], marginKm float64) (Region, error) {
	var (
		b     orb.Bound
		found bool
		total int
	)
	for p := range points {
		total++
		if !domain.IsFinite(p.Lon) || !domain.IsFinite(p.Lat) {
			continue
		}
		pt := orb.Point{p.Lon, p.Lat}
		if !found {
			b = pt.Bound()
			found = true
			continue
		}
		b = b.Extend(pt)
	}
	if !found {
		return Region{}, &domain.EmptyInputError{Points: total}
	}

	if marginKm < 0 {
		marginKm = 0
	}
	dLat, dLon := MarginDegrees(marginKm, (b.Min[1]+b.Max[1])/2)

	b.Min[0] -= dLon
	b.Max[0] += dLon
	b.Min[1] = math.Max(b.Min[1]-dLat, -90)
	b.Max[1] = math.Min(b.Max[1]+dLat, 90)

	return Region{Bound: b, MarginKm: marginKm, Points: total}, nil
}

// MarginDegrees converts a distance in km to (latitude, longitude) degree
// offsets at the given latitude.
func MarginDegrees(km, lat float64) (dLat, dLon float64) {
	dLat = km / KmPerDegreeLat
	cosLat := math.Max(math.Cos(lat*math.Pi/180), minCosLat)
	dLon = km / (KmPerDegreeLat * cosLat)
	return dLat, dLon
}

// Contains reports whether the region covers the point.
func (r Region) Contains(lon, lat float64) bool {
	return r.Bound.Contains(orb.Point{lon, lat})
}

// Width and Height are the extent in degrees.
func (r Region) Width() float64  { return r.Bound.Max[0] - r.Bound.Min[0] }
func (r Region) Height() float64 { return r.Bound.Max[1] - r.Bound.Min[1] }
