// Package surface indexes the traced contours of all slices in 3D so that arbitrary
// points can be tested for containment and snapped to the nearest contour voxel.
package surface

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/kdtree"

	"sliceflatmap/internal/models"
	"sliceflatmap/pkg/contour"
	"sliceflatmap/pkg/sampling"
)

// ErrNoSurface means no slice produced a contour, so there is nothing to search.
var ErrNoSurface = errors.New("volume has no surface voxels")

// Hit is the result of a nearest-surface query.
type Hit struct {
	// Voxel is the (slice, row, col) index of the surface voxel
	Voxel [3]int

	// World is the voxel's world coordinate
	World [3]float64

	// Distance is the Euclidean distance from the query point
	Distance float64

	// Offset is the contour offset recorded for this voxel
	Offset int
}

// Index holds the surface and interior masks and a k-d tree over surface voxels.
// It is read-only after Build and safe for concurrent queries.
type Index struct {
	grid    *sampling.Grid
	extents [3]int

	surface  []bool
	interior []bool

	// offsets maps a flat voxel index to the offset of its first contour occurrence
	offsets map[int]int

	tree  *kdtree.Tree
	count int
}

// Build scatters the aligned contour tables into the surface mask, fills each slice's
// contour to form the interior mask and indexes every surface voxel. tables is
// indexed by slice; nil entries are slices without a contour.
func Build(tables []*models.ContourTable, grid *sampling.Grid) (*Index, error) {
	ext := grid.Extents
	rows, cols := ext[1], ext[2]
	area := rows * cols

	x := &Index{
		grid:     grid,
		extents:  ext,
		surface:  make([]bool, ext[0]*area),
		interior: make([]bool, ext[0]*area),
		offsets:  make(map[int]int),
	}

	var pts Points
	for _, t := range tables {
		if t == nil || len(t.Points) == 0 {
			continue
		}
		if t.Slice < 0 || t.Slice >= ext[0] {
			return nil, errors.Errorf("contour for slice %d outside grid of %d slices", t.Slice, ext[0])
		}

		base := t.Slice * area
		mask := x.surface[base : base+area]
		for _, p := range t.Points {
			i := p.Row*cols + p.Col
			if mask[i] {
				continue
			}
			mask[i] = true
			x.offsets[base+i] = p.Offset

			w := grid.VoxelToWorld(t.Slice, p.Row, p.Col)
			pts = append(pts, Point{X: w[0], Y: w[1], Z: w[2], Voxel: [3]int{t.Slice, p.Row, p.Col}})
		}

		filled := contour.FillHoles(mask, rows, cols, 4)
		copy(x.interior[base:base+area], filled)
	}

	if len(pts) == 0 {
		return nil, ErrNoSurface
	}
	x.count = len(pts)
	x.tree = kdtree.New(pts, true)
	return x, nil
}

// Count returns the number of surface voxels
func (x *Index) Count() int { return x.count }

// Surface reports whether a voxel is on a contour
func (x *Index) Surface(slice, row, col int) bool {
	i, ok := x.flat(slice, row, col)
	return ok && x.surface[i]
}

// Interior reports whether a voxel is on or enclosed by its slice's contour
func (x *Index) Interior(slice, row, col int) bool {
	i, ok := x.flat(slice, row, col)
	return ok && x.interior[i]
}

// IsInside snaps a world point to the nearest sample and tests the interior mask.
// Points outside the grid are outside.
func (x *Index) IsInside(world [3]float64) bool {
	v, ok := x.grid.Nearest(world)
	if !ok {
		return false
	}
	return x.Interior(v[0], v[1], v[2])
}

// Nearest returns the surface voxel closest to a world point.
func (x *Index) Nearest(world [3]float64) Hit {
	q := Point{X: world[0], Y: world[1], Z: world[2]}
	c, d2 := x.tree.Nearest(q)
	p := c.(Point)
	i, _ := x.flat(p.Voxel[0], p.Voxel[1], p.Voxel[2])
	return Hit{
		Voxel:    p.Voxel,
		World:    [3]float64{p.X, p.Y, p.Z},
		Distance: math.Sqrt(d2),
		Offset:   x.offsets[i],
	}
}

func (x *Index) flat(slice, row, col int) (int, bool) {
	e := x.extents
	if slice < 0 || slice >= e[0] || row < 0 || row >= e[1] || col < 0 || col >= e[2] {
		return 0, false
	}
	return (slice*e[1]+row)*e[2] + col, true
}
