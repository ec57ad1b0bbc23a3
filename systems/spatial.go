// Package systems provides the per-tick flocking systems: neighbor discovery,
// steering, predator/prey override and integration.
package systems

import (
	"math"

	"github.com/pthm-cable/flock/vecmath"
)

// Bounds is the world box, centered on the origin. Depth 0 is a 2-D world.
type Bounds struct {
	Width, Height, Depth float64
}

// Is2D reports whether the world has no depth.
func (b Bounds) Is2D() bool { return b.Depth <= 0 }

// Point is one agent entry in the grid.
type Point struct {
	ID  uint32
	Pos vecmath.Vec3
}

// Neighbor holds a nearby point with precomputed spatial data.
type Neighbor struct {
	// Index into the slice passed to Rebuild.
	Index int
	ID    uint32
	// Delta is the neighbor position minus the query position.
	Delta  vecmath.Vec3
	DistSq float64
}

// SpatialGrid is a uniform grid over the world box, rebuilt from scratch every
// tick.
//
// Positions outside the box are clamped into the edge cells. Clamping never
// increases the cell distance between two points, so a true neighbor within
// one cell is still within one cell after clamping.
//
// Precondition: cellSize >= max(perception, separation) radius over all
// species, otherwise a 1-ring search may miss neighbors. QueryRadiusInto
// widens the ring for larger radii so results stay exact either way.
type SpatialGrid struct {
	cellSize float64
	bounds   Bounds
	cols     int
	rows     int
	layers   int
	cells    [][]int32 // flat grid of indices into points
	points   []Point
}

// NewSpatialGrid creates a grid covering bounds.
func NewSpatialGrid(bounds Bounds, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(bounds.Width/cellSize) + 1
	rows := int(bounds.Height/cellSize) + 1
	layers := 1
	if !bounds.Is2D() {
		layers = int(bounds.Depth/cellSize) + 1
	}

	cells := make([][]int32, cols*rows*layers)
	for i := range cells {
		cells[i] = make([]int32, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		bounds:   bounds,
		cols:     cols,
		rows:     rows,
		layers:   layers,
		cells:    cells,
	}
}

// CellSize returns the grid cell edge length.
func (g *SpatialGrid) CellSize() float64 { return g.cellSize }

// Clear removes all points from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.points = nil
}

// Rebuild clears the grid and inserts every point. The grid keeps a reference
// to points until the next Rebuild; callers must not modify it in between.
func (g *SpatialGrid) Rebuild(points []Point) {
	g.Clear()
	g.points = points
	for i := range points {
		c, r, l := g.cellCoord(points[i].Pos)
		idx := g.flatIndex(c, r, l)
		g.cells[idx] = append(g.cells[idx], int32(i))
	}
}

// QueryRadiusInto appends to dst every point whose distance from pos is
// strictly less than radius, excluding the point with id exclude.
// Reuse dst across calls to avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, pos vecmath.Vec3, radius float64, exclude uint32) []Neighbor {
	if radius <= 0 {
		return dst
	}

	ring := int(math.Ceil(radius / g.cellSize))
	if ring < 1 {
		ring = 1
	}

	cc, cr, cl := g.cellCoord(pos)
	radiusSq := radius * radius

	c0, c1 := clampRange(cc-ring, cc+ring, g.cols)
	r0, r1 := clampRange(cr-ring, cr+ring, g.rows)
	l0, l1 := clampRange(cl-ring, cl+ring, g.layers)

	for l := l0; l <= l1; l++ {
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				for _, pi := range g.cells[g.flatIndex(c, r, l)] {
					p := &g.points[pi]
					if p.ID == exclude {
						continue
					}
					delta := vecmath.Sub(p.Pos, pos)
					distSq := vecmath.LenSq(delta)
					if distSq < radiusSq {
						dst = append(dst, Neighbor{Index: int(pi), ID: p.ID, Delta: delta, DistSq: distSq})
					}
				}
			}
		}
	}

	return dst
}

// QueryRadius returns the neighbors of pos within radius.
func (g *SpatialGrid) QueryRadius(pos vecmath.Vec3, radius float64, exclude uint32) []Neighbor {
	return g.QueryRadiusInto(nil, pos, radius, exclude)
}

// cellCoord maps a position to clamped integer cell coordinates using
// floor((coord + size/2) / cellSize) per axis.
func (g *SpatialGrid) cellCoord(p vecmath.Vec3) (col, row, layer int) {
	col = clampCell(axisCell(p.X, g.bounds.Width, g.cellSize), g.cols)
	row = clampCell(axisCell(p.Y, g.bounds.Height, g.cellSize), g.rows)
	if g.layers > 1 {
		layer = clampCell(axisCell(p.Z, g.bounds.Depth, g.cellSize), g.layers)
	}
	return col, row, layer
}

func (g *SpatialGrid) flatIndex(col, row, layer int) int {
	return (layer*g.rows+row)*g.cols + col
}

func axisCell(coord, size, cellSize float64) int {
	v := math.Floor((coord + size/2) / cellSize)
	// Keep far-away or non-finite coordinates from overflowing int.
	if v < -1 || math.IsNaN(v) {
		return -1
	}
	if v > 1<<30 {
		return 1 << 30
	}
	return int(v)
}

func clampCell(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func clampRange(lo, hi, n int) (int, int) {
	return max(lo, 0), min(hi, n-1)
}
