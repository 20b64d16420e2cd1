// Package field reconstructs a continuous scalar field from scattered samples
// by inverse distance weighting onto a regular grid.
package field

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/geo"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// Units selects the distance metric used for weighting.
type Units string

const (
	// Degrees measures planar distance in coordinate degrees.
	Degrees Units = "degrees"
	// Kilometers measures great-circle distance.
	Kilometers Units = "kilometers"
)

// ParseUnits accepts the two supported unit names.
func ParseUnits(s string) (Units, error) {
	switch u := Units(s); u {
	case Degrees, Kilometers:
		return u, nil
	}
	return "", fmt.Errorf("unsupported distance units %q", s)
}

const (
	// coincidentEpsilon is the distance, in the selected units, below which a
	// cell center takes a sample's value verbatim.
	coincidentEpsilon = 1e-12
	// minWeightSum guards the division when every sample is effectively at
	// infinite distance.
	minWeightSum = 1e-300

	earthRadiusKm = 6371.0088
	minPoints     = 3
)

var (
	// ErrGridTooLarge is returned when the region at the configured cell size
	// would exceed the cell limit.
	ErrGridTooLarge = errors.New("grid exceeds cell limit")
	// ErrCellSize is returned for a non-positive cell size or one below the
	// configured minimum.
	ErrCellSize = errors.New("cell size below minimum")
)

// Options tunes interpolation.
type Options struct {
	CellSize    float64 // degrees
	Power       float64
	Units       Units
	MaxCells    int
	MinCellSize float64
}

// DefaultOptions mirrors the service configuration defaults.
func DefaultOptions() Options {
	return Options{
		CellSize:    0.05,
		Power:       2,
		Units:       Degrees,
		MaxCells:    4_000_000,
		MinCellSize: 0.001,
	}
}

// Grid holds values at cell centers in row-major order, row 0 being the
// southernmost. Invalid cells carry NaN and a false mask entry.
type Grid struct {
	MinLon   float64
	MinLat   float64
	CellSize float64
	NX       int
	NY       int
	Values   []float64
	Valid    []bool
	Min      float64
	Max      float64
}

// Empty reports whether the grid has no cells.
func (g *Grid) Empty() bool { return g == nil || g.NX == 0 || g.NY == 0 }

// Index returns the flat offset of cell (i, j).
func (g *Grid) Index(i, j int) int { return j*g.NX + i }

// At returns the value of cell (i, j) and whether it is defined.
func (g *Grid) At(i, j int) (float64, bool) {
	k := g.Index(i, j)
	return g.Values[k], g.Valid[k]
}

// Center returns the coordinates of the center of cell (i, j).
func (g *Grid) Center(i, j int) (lon, lat float64) {
	return g.MinLon + (float64(i)+0.5)*g.CellSize, g.MinLat + (float64(j)+0.5)*g.CellSize
}

// Dimensions computes the cell counts covering the region and enforces the
// cell size and cell count limits.
func Dimensions(region geo.Region, opts Options) (nx, ny int, err error) {
	if !(opts.CellSize > 0) || opts.CellSize < opts.MinCellSize {
		return 0, 0, fmt.Errorf("%w: %g (min %g)", ErrCellSize, opts.CellSize, opts.MinCellSize)
	}
	fx := math.Max(1, math.Ceil(region.Width()/opts.CellSize))
	fy := math.Max(1, math.Ceil(region.Height()/opts.CellSize))
	if opts.MaxCells > 0 && fx*fy > float64(opts.MaxCells) {
		return 0, 0, fmt.Errorf("%w: %.0f x %.0f cells (max %d)", ErrGridTooLarge, fx, fy, opts.MaxCells)
	}
	return int(fx), int(fy), nil
}

// Extent is the area covered by the grid cells for the region. Cell counts
// are rounded up, so it can reach up to one cell past the region's east and
// north edges; contours traced on the grid stay inside it.
func Extent(region geo.Region, opts Options) (orb.Bound, error) {
	nx, ny, err := Dimensions(region, opts)
	if err != nil {
		return orb.Bound{}, err
	}
	minLon, minLat := region.Bound.Min[0], region.Bound.Min[1]
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{minLon + float64(nx)*opts.CellSize, minLat + float64(ny)*opts.CellSize},
	}, nil
}

// Interpolate grids the points over the region. Points are ordered
// canonically before any summation, so permuting the input yields
// bit-identical output. Fewer than three usable points returns an empty grid
// and domain.ErrInsufficientPoints.
func Interpolate(points iter.Seq[domain.Point], region geo.Region, opts Options) (*Grid, error) {
	pts := usable(points)
	if len(pts) < minPoints {
		return &Grid{}, fmt.Errorf("interpolate %d points: %w", len(pts), domain.ErrInsufficientPoints)
	}
	if !(opts.Power > 0) {
		return &Grid{}, fmt.Errorf("interpolate: power must be positive, got %g", opts.Power)
	}
	nx, ny, err := Dimensions(region, opts)
	if err != nil {
		return &Grid{}, err
	}

	g := &Grid{
		MinLon:   region.Bound.Min[0],
		MinLat:   region.Bound.Min[1],
		CellSize: opts.CellSize,
		NX:       nx,
		NY:       ny,
		Values:   make([]float64, nx*ny),
		Valid:    make([]bool, nx*ny),
		Min:      math.NaN(),
		Max:      math.NaN(),
	}

	dist := distanceFunc(opts.Units)
	vals := make([]float64, len(pts))
	for k, p := range pts {
		vals[k] = p.Value
	}
	d := make([]float64, len(pts))
	w := make([]float64, len(pts))

	for j := range ny {
		for i := range nx {
			lon, lat := g.Center(i, j)
			for k, p := range pts {
				d[k] = dist(lon, lat, p.Lon, p.Lat)
			}
			v, ok := cellValue(d, w, vals, opts.Power)
			idx := g.Index(i, j)
			if !ok {
				g.Values[idx] = math.NaN()
				continue
			}
			g.Values[idx] = v
			g.Valid[idx] = true
			if math.IsNaN(g.Min) || v < g.Min {
				g.Min = v
			}
			if math.IsNaN(g.Max) || v > g.Max {
				g.Max = v
			}
		}
	}
	return g, nil
}

// cellValue computes one IDW estimate from the distances d. w is scratch
// space of the same length.
func cellValue(d, w, vals []float64, power float64) (float64, bool) {
	if v, ok := coincident(d, vals, coincidentEpsilon); ok {
		return v, true
	}
	for k, dk := range d {
		if power == 2 {
			w[k] = 1 / (dk * dk)
		} else {
			w[k] = 1 / math.Pow(dk, power)
		}
	}
	sum := floats.Sum(w)
	if math.IsInf(sum, 1) {
		// A weight overflowed; the nearest samples dominate completely.
		return coincident(d, vals, floats.Min(d))
	}
	if !(sum > minWeightSum) {
		return 0, false
	}
	v := floats.Dot(w, vals) / sum
	if !domain.IsFinite(v) {
		return 0, false
	}
	return v, true
}

// coincident returns the mean value of the samples within eps, in point
// order.
func coincident(d, vals []float64, eps float64) (float64, bool) {
	var sum float64
	n := 0
	for k, dk := range d {
		if dk <= eps {
			sum += vals[k]
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func usable(points iter.Seq[domain.Point]) []domain.Point {
	var pts []domain.Point
	for p := range points {
		if domain.IsFinite(p.Lon) && domain.IsFinite(p.Lat) && domain.IsFinite(p.Value) {
			pts = append(pts, p)
		}
	}
	slices.SortFunc(pts, func(a, b domain.Point) int {
		return cmp.Or(
			cmp.Compare(a.Lon, b.Lon),
			cmp.Compare(a.Lat, b.Lat),
			cmp.Compare(a.Value, b.Value),
		)
	})
	return pts
}

func distanceFunc(u Units) func(lon1, lat1, lon2, lat2 float64) float64 {
	if u == Kilometers {
		return haversineKm
	}
	return func(lon1, lat1, lon2, lat2 float64) float64 {
		return math.Hypot(lon2-lon1, lat2-lat1)
	}
}

func haversineKm(lon1, lat1, lon2, lat2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(math.Min(1, a)))
}
