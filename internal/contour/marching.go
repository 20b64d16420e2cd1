// Package contour traces iso-lines through an interpolated grid with marching
// squares and stitches the per-cell segments into polylines.
//
// Grid nodes are the cell centers of a field.Grid. A node is "above" a
// threshold when its value is greater than or equal to it. Saddle cells (two
// diagonally opposite corners above) are resolved by the mean of the four
// corners: when the mean is at or above the threshold the above corners are
// joined through the cell center, otherwise the below corners are.
package contour

import (
	"github.com/couchcryptid/ocean-contour-service/internal/field"
	"github.com/paulmach/orb"
)

// Corner bits of a cell's case index.
const (
	bottomLeft  = 1
	bottomRight = 2
	topRight    = 4
	topLeft     = 8
)

type side uint8

const (
	sideBottom side = iota
	sideRight
	sideTop
	sideLeft
)

// edgeID names a grid edge independently of the cell that sees it. A
// horizontal edge joins node (i, j) to (i+1, j); a vertical one joins (i, j)
// to (i, j+1).
type edgeID struct {
	i, j       int
	horizontal bool
}

func cellEdge(i, j int, s side) edgeID {
	switch s {
	case sideBottom:
		return edgeID{i: i, j: j, horizontal: true}
	case sideTop:
		return edgeID{i: i, j: j + 1, horizontal: true}
	case sideLeft:
		return edgeID{i: i, j: j}
	default:
		return edgeID{i: i + 1, j: j}
	}
}

// cases lists, per case index, the pairs of cell sides joined by a segment.
// Saddles (5 and 10) are resolved separately.
var cases = [16][][2]side{
	0:  nil,
	1:  {{sideLeft, sideBottom}},
	2:  {{sideBottom, sideRight}},
	3:  {{sideLeft, sideRight}},
	4:  {{sideRight, sideTop}},
	6:  {{sideBottom, sideTop}},
	7:  {{sideLeft, sideTop}},
	8:  {{sideTop, sideLeft}},
	9:  {{sideBottom, sideTop}},
	11: {{sideRight, sideTop}},
	12: {{sideLeft, sideRight}},
	13: {{sideBottom, sideRight}},
	14: {{sideLeft, sideBottom}},
	15: nil,
}

// Segments that cut off single corners.
var (
	cutBottomLeft  = [2]side{sideLeft, sideBottom}
	cutBottomRight = [2]side{sideBottom, sideRight}
	cutTopRight    = [2]side{sideRight, sideTop}
	cutTopLeft     = [2]side{sideTop, sideLeft}
)

func cellCase(bl, br, tr, tl, threshold float64) int {
	c := 0
	if bl >= threshold {
		c |= bottomLeft
	}
	if br >= threshold {
		c |= bottomRight
	}
	if tr >= threshold {
		c |= topRight
	}
	if tl >= threshold {
		c |= topLeft
	}
	return c
}

// cellSides returns the side pairs crossed in one cell.
func cellSides(bl, br, tr, tl, threshold float64) [][2]side {
	c := cellCase(bl, br, tr, tl, threshold)
	switch c {
	case bottomLeft | topRight:
		if (bl+br+tr+tl)/4 >= threshold {
			return [][2]side{cutBottomRight, cutTopLeft}
		}
		return [][2]side{cutBottomLeft, cutTopRight}
	case bottomRight | topLeft:
		if (bl+br+tr+tl)/4 >= threshold {
			return [][2]side{cutBottomLeft, cutTopRight}
		}
		return [][2]side{cutBottomRight, cutTopLeft}
	}
	return cases[c]
}

// segment joins two edge crossings inside one cell.
type segment struct {
	a, b edgeID
}

// tracer extracts the lines of one threshold.
type tracer struct {
	grid      *field.Grid
	threshold float64
	points    map[edgeID]orb.Point
}

// crossing interpolates the threshold position along an edge. It always
// walks from the lower-indexed node so both cells sharing the edge get the
// identical point.
func (t *tracer) crossing(e edgeID) orb.Point {
	if p, ok := t.points[e]; ok {
		return p
	}
	i2, j2 := e.i, e.j+1
	if e.horizontal {
		i2, j2 = e.i+1, e.j
	}
	va, _ := t.grid.At(e.i, e.j)
	vb, _ := t.grid.At(i2, j2)
	ax, ay := t.grid.Center(e.i, e.j)
	bx, by := t.grid.Center(i2, j2)

	f := (t.threshold - va) / (vb - va)
	p := orb.Point{ax + f*(bx-ax), ay + f*(by-ay)}
	t.points[e] = p
	return p
}

func (t *tracer) segments() []segment {
	g := t.grid
	var segs []segment
	for j := 0; j+1 < g.NY; j++ {
		for i := 0; i+1 < g.NX; i++ {
			bl, ok1 := g.At(i, j)
			br, ok2 := g.At(i+1, j)
			tr, ok3 := g.At(i+1, j+1)
			tl, ok4 := g.At(i, j+1)
			if !ok1 || !ok2 || !ok3 || !ok4 {
				continue
			}
			for _, pair := range cellSides(bl, br, tr, tl, t.threshold) {
				s := segment{a: cellEdge(i, j, pair[0]), b: cellEdge(i, j, pair[1])}
				if t.crossing(s.a) == t.crossing(s.b) {
					continue
				}
				segs = append(segs, s)
			}
		}
	}
	return segs
}

// stitch joins segments that share an edge crossing. Each edge is seen by at
// most two cells, so the segment graph is a set of paths and cycles. Paths
// are walked from their first free end in scan order, cycles afterwards.
func (t *tracer) stitch(segs []segment) []orb.LineString {
	adj := make(map[edgeID][]int, 2*len(segs))
	for k, s := range segs {
		adj[s.a] = append(adj[s.a], k)
		adj[s.b] = append(adj[s.b], k)
	}
	used := make([]bool, len(segs))

	walk := func(start edgeID, first int) orb.LineString {
		line := orb.LineString{t.crossing(start)}
		cur, k := start, first
		for {
			used[k] = true
			next := segs[k].a
			if next == cur {
				next = segs[k].b
			}
			if p := t.crossing(next); p != line[len(line)-1] {
				line = append(line, p)
			}
			cur = next
			k = -1
			for _, cand := range adj[cur] {
				if !used[cand] {
					k = cand
					break
				}
			}
			if k < 0 {
				return line
			}
		}
	}

	var lines []orb.LineString
	keep := func(l orb.LineString) {
		if len(l) >= 2 {
			lines = append(lines, l)
		}
	}
	for k, s := range segs {
		if used[k] {
			continue
		}
		switch {
		case len(adj[s.a]) == 1:
			keep(walk(s.a, k))
		case len(adj[s.b]) == 1:
			keep(walk(s.b, k))
		}
	}
	for k, s := range segs {
		if !used[k] {
			keep(walk(s.a, k))
		}
	}
	return lines
}

// Extract traces every threshold over the grid. Each requested threshold is
// present in the result; thresholds outside the open interval
// (grid.Min, grid.Max) map to an empty slice.
func Extract(grid *field.Grid, thresholds []float64) map[float64][]orb.LineString {
	out := make(map[float64][]orb.LineString, len(thresholds))
	for _, th := range thresholds {
		out[th] = []orb.LineString{}
		if grid.Empty() || !(grid.Min < th && th < grid.Max) {
			continue
		}
		t := &tracer{grid: grid, threshold: th, points: make(map[edgeID]orb.Point)}
		if lines := t.stitch(t.segments()); len(lines) > 0 {
			out[th] = lines
		}
	}
	return out
}
