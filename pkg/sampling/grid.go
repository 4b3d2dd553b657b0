// Package sampling derives the coordinates at which a label volume is sampled.
//
// A Grid maps voxel indices (slice, row, col) to world coordinates through a
// voxel-to-world affine transform and back. World coordinates are reported in the
// same axis order as the voxel indices.
package sampling

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Affine is a 4x4 homogeneous voxel-to-world transform in row-major order.
type Affine [16]float64

// Identity returns the voxel-space transform.
func Identity() Affine {
	return Affine{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// ScaleOrigin builds the common six degree of freedom transform: a per-axis voxel
// size and the world position of voxel (0, 0, 0).
func ScaleOrigin(scale, origin [3]float64) Affine {
	return Affine{
		scale[0], 0, 0, origin[0],
		0, scale[1], 0, origin[1],
		0, 0, scale[2], origin[2],
		0, 0, 0, 1,
	}
}

// Grid holds the per-axis sampling coordinates of a volume and the transforms
// between voxel and world space. A Grid is immutable once built.
//
// Axes and Plane are built from the diagonal and translation of the transform and are
// exact only for axis-aligned transforms. VoxelToWorld and InSlice always apply the
// full transform.
type Grid struct {
	// Extents along slice, row and col axes
	Extents [3]int

	// Axes holds the world coordinate of every sample index, one vector per axis
	Axes [3][]float64

	forward *mat.Dense
	inverse *mat.Dense
}

// NewGrid derives the sampling grid for a volume of the given extents.
// The transform must be invertible.
func NewGrid(extents [3]int, affine Affine) (*Grid, error) {
	for a, n := range extents {
		if n <= 0 {
			return nil, errors.Errorf("axis %d has non-positive extent %d", a, n)
		}
	}

	forward := mat.NewDense(4, 4, append([]float64(nil), affine[:]...))
	var inverse mat.Dense
	if err := inverse.Inverse(forward); err != nil {
		return nil, errors.Wrap(err, "voxel-to-world transform is not invertible")
	}

	g := &Grid{
		Extents: extents,
		forward: forward,
		inverse: &inverse,
	}

	// Per-axis vectors follow the diagonal of the transform; off-diagonal terms only
	// matter for full voxel/world conversion.
	for a := 0; a < 3; a++ {
		g.Axes[a] = make([]float64, extents[a])
		for i := range g.Axes[a] {
			g.Axes[a][i] = forward.At(a, a)*float64(i) + forward.At(a, 3)
		}
	}

	return g, nil
}

// ToWorld converts a (possibly fractional) voxel coordinate to world space.
func (g *Grid) ToWorld(voxel [3]float64) [3]float64 {
	return apply(g.forward, voxel)
}

// VoxelToWorld converts an integer voxel index to world space.
func (g *Grid) VoxelToWorld(slice, row, col int) [3]float64 {
	return g.ToWorld([3]float64{float64(slice), float64(row), float64(col)})
}

// ToVoxel converts a world coordinate to a fractional voxel coordinate.
func (g *Grid) ToVoxel(world [3]float64) [3]float64 {
	return apply(g.inverse, world)
}

// Nearest snaps a world coordinate to the nearest voxel index. The second result is
// false when the snapped voxel lies outside the grid.
func (g *Grid) Nearest(world [3]float64) ([3]int, bool) {
	v := g.ToVoxel(world)
	var idx [3]int
	ok := true
	for a := 0; a < 3; a++ {
		if math.IsNaN(v[a]) || math.IsInf(v[a], 0) {
			return idx, false
		}
		idx[a] = int(math.Round(v[a]))
		if idx[a] < 0 || idx[a] >= g.Extents[a] {
			ok = false
		}
	}
	return idx, ok
}

// InSlice returns the world coordinates along the two in-slice axes of a voxel.
func (g *Grid) InSlice(slice, row, col int) (float64, float64) {
	w := g.VoxelToWorld(slice, row, col)
	return w[1], w[2]
}

// Plane returns the 2D grid over the in-slice axes as two row-major arrays of
// world coordinates, rows*cols each.
func (g *Grid) Plane() (rowCoords, colCoords []float64) {
	rows, cols := g.Extents[1], g.Extents[2]
	rowCoords = make([]float64, rows*cols)
	colCoords = make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rowCoords[r*cols+c] = g.Axes[1][r]
			colCoords[r*cols+c] = g.Axes[2][c]
		}
	}
	return rowCoords, colCoords
}

func apply(m *mat.Dense, p [3]float64) [3]float64 {
	in := mat.NewVecDense(4, []float64{p[0], p[1], p[2], 1})
	var out mat.VecDense
	out.MulVec(m, in)
	w := out.AtVec(3)
	if w == 0 {
		w = 1
	}
	return [3]float64{out.AtVec(0) / w, out.AtVec(1) / w, out.AtVec(2) / w}
}
