// Package landclip removes the parts of contour lines that run over land.
package landclip

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	// ErrInvalidLine is returned for lines with fewer than two points or
	// non-finite coordinates.
	ErrInvalidLine = errors.New("invalid line")
	// ErrInvalidLand is returned when the land polygon has a ring with fewer
	// than four points or non-finite coordinates.
	ErrInvalidLand = errors.New("invalid land polygon")
)

type ringEdges struct {
	bound orb.Bound
	ring  orb.Ring
}

// Clipper subtracts a fixed land polygon from lines. It is safe for
// concurrent use.
type Clipper struct {
	land    orb.MultiPolygon
	rings   []ringEdges
	landErr error
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New prepares a clipper for the given land. A nil or empty land polygon
// makes every clip a pass-through. Validation problems with the land are
// reported per clip so ClipAll can fall back instead of failing.
func New(land orb.MultiPolygon, logger *slog.Logger, metrics *observability.Metrics) *Clipper {
	c := &Clipper{land: land, logger: logger, metrics: metrics}
	for pi, poly := range land {
		for ri, r := range poly {
			if len(r) < 4 || !finite(orb.LineString(r)) {
				c.landErr = fmt.Errorf("%w: polygon %d ring %d", ErrInvalidLand, pi, ri)
				return c
			}
			c.rings = append(c.rings, ringEdges{bound: r.Bound(), ring: r})
		}
	}
	return c
}

// Enabled reports whether a land polygon is configured.
func (c *Clipper) Enabled() bool { return len(c.land) > 0 }

// Clip returns the parts of line outside the land. Each segment is split at
// every crossing with a ring edge and a piece is kept when its midpoint is not
// covered by the land; consecutive kept pieces are joined. The result never
// has more length than the input.
func (c *Clipper) Clip(line orb.LineString) ([]orb.LineString, error) {
	if len(line) < 2 || !finite(line) {
		return nil, ErrInvalidLine
	}
	if !c.Enabled() {
		return []orb.LineString{line}, nil
	}
	if c.landErr != nil {
		return nil, c.landErr
	}

	var (
		out     []orb.LineString
		current orb.LineString
	)
	flush := func() {
		if len(current) >= 2 {
			out = append(out, current)
		}
		current = nil
	}

	for k := 0; k+1 < len(line); k++ {
		a, b := line[k], line[k+1]
		if a == b {
			continue
		}
		cuts := c.crossings(a, b)
		for n := 0; n+1 < len(cuts); n++ {
			p0, p1 := lerp(a, b, cuts[n]), lerp(a, b, cuts[n+1])
			if p0 == p1 {
				continue
			}
			mid := orb.Point{(p0[0] + p1[0]) / 2, (p0[1] + p1[1]) / 2}
			if planar.MultiPolygonContains(c.land, mid) {
				flush()
				continue
			}
			if len(current) == 0 || current[len(current)-1] != p0 {
				flush()
				current = orb.LineString{p0}
			}
			current = append(current, p1)
		}
	}
	flush()
	return out, nil
}

// crossings returns the sorted segment parameters, including 0 and 1, where
// a->b meets a ring edge.
func (c *Clipper) crossings(a, b orb.Point) []float64 {
	cuts := []float64{0, 1}
	seg := orb.Bound{Min: a, Max: a}.Extend(b)
	for _, re := range c.rings {
		if !re.bound.Intersects(seg) {
			continue
		}
		for e := 0; e+1 < len(re.ring); e++ {
			if t, ok := intersect(a, b, re.ring[e], re.ring[e+1]); ok {
				cuts = append(cuts, t)
			}
		}
	}
	slices.Sort(cuts)
	return slices.Compact(cuts)
}

// intersect returns the parameter along p->p2 where it crosses q->q2.
// Parallel and collinear pairs report no crossing.
func intersect(p, p2, q, q2 orb.Point) (float64, bool) {
	rx, ry := p2[0]-p[0], p2[1]-p[1]
	sx, sy := q2[0]-q[0], q2[1]-q[1]
	den := rx*sy - ry*sx
	if den == 0 {
		return 0, false
	}
	qpx, qpy := q[0]-p[0], q[1]-p[1]
	t := (qpx*sy - qpy*sx) / den
	u := (qpx*ry - qpy*rx) / den
	if t <= 0 || t >= 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

func lerp(a, b orb.Point, t float64) orb.Point {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

func finite(ls orb.LineString) bool {
	for _, p := range ls {
		if !domain.IsFinite(p[0]) || !domain.IsFinite(p[1]) {
			return false
		}
	}
	return true
}

// ClipAll clips every line of one key. A line that cannot be clipped is kept
// whole; the fallback is logged and counted and processing continues.
func (c *Clipper) ClipAll(key domain.Key, lines []domain.ContourLine) []domain.ContourLine {
	if !c.Enabled() {
		return lines
	}
	out := make([]domain.ContourLine, 0, len(lines))
	for _, l := range lines {
		parts, err := c.Clip(l.Line)
		if err != nil {
			c.logger.Warn("clip fell back",
				"key", key.String(),
				"value", l.Value,
				"points", len(l.Line),
				"error", err,
			)
			c.metrics.ClipFallbacks.Inc()
			out = append(out, l)
			continue
		}
		for _, p := range parts {
			out = append(out, domain.ContourLine{Value: l.Value, Line: p})
		}
	}
	return out
}
