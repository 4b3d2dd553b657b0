package flatmap

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"sliceflatmap/internal/models"
	"sliceflatmap/pkg/sampling"
)

// SliceContext is what a Rule sees while one slice's column is rasterized.
type SliceContext struct {
	// Slice is the slice index of the contour
	Slice int

	// Table is the aligned contour of the slice
	Table *models.ContourTable

	// Grid is the label volume's sampling grid
	Grid *sampling.Grid

	// Intensity and IntensityGrid are set when an intensity volume is configured
	Intensity     *models.IntensityVolume
	IntensityGrid *sampling.Grid

	curvature []float64
}

// Rule computes the raw value of one contour point for one raster channel set.
// A Rule is selected once per rasterization call.
type Rule interface {
	// Name identifies the channel
	Name() string

	// Kind is the raster kind the rule produces
	Kind() Kind

	// Channels is the number of values written per contour point
	Channels() int

	// Prepare runs once per slice before ComputeValue is called for its points
	Prepare(sc *SliceContext) error

	// ComputeValue writes the values of point i of sc.Table into dst
	ComputeValue(sc *SliceContext, i int, dst []float64)
}

// LabelRule writes the label ID of each contour point.
type LabelRule struct{}

func (LabelRule) Name() string                   { return "label" }
func (LabelRule) Kind() Kind                     { return Discrete }
func (LabelRule) Channels() int                  { return 1 }
func (LabelRule) Prepare(sc *SliceContext) error { return nil }

func (LabelRule) ComputeValue(sc *SliceContext, i int, dst []float64) {
	dst[0] = float64(sc.Table.Points[i].Label)
}

// BorderRule writes 1 where a point's label differs from its predecessor or successor
// in contour order. The first and last points are always borders.
type BorderRule struct{}

func (BorderRule) Name() string                   { return "border" }
func (BorderRule) Kind() Kind                     { return Discrete }
func (BorderRule) Channels() int                  { return 1 }
func (BorderRule) Prepare(sc *SliceContext) error { return nil }

func (BorderRule) ComputeValue(sc *SliceContext, i int, dst []float64) {
	pts := sc.Table.Points
	last := len(pts) - 1
	if i == 0 || i == last || pts[i].Label != pts[i-1].Label || pts[i].Label != pts[i+1].Label {
		dst[0] = 1
		return
	}
	dst[0] = 0
}

// CurvatureRule writes the signed planar curvature of the contour,
// (x'y'' - y'x'') / (x'^2 + y'^2)^(3/2), with x and y the world coordinates of the
// row and column axes and derivatives taken along contour order.
type CurvatureRule struct{}

func (CurvatureRule) Name() string  { return "curvature" }
func (CurvatureRule) Kind() Kind    { return Continuous }
func (CurvatureRule) Channels() int { return 1 }

func (CurvatureRule) Prepare(sc *SliceContext) error {
	pts := sc.Table.Points
	x := make([]float64, len(pts))
	y := make([]float64, len(pts))
	for i, p := range pts {
		x[i], y[i] = sc.Grid.InSlice(sc.Slice, p.Row, p.Col)
	}
	sc.curvature = Curvature(x, y)
	return nil
}

func (CurvatureRule) ComputeValue(sc *SliceContext, i int, dst []float64) {
	dst[0] = sc.curvature[i]
}

// IntensityRule samples a co-registered intensity volume at each contour point's
// world coordinate, nearest sample. Points outside the intensity volume get NaN.
type IntensityRule struct{}

func (IntensityRule) Name() string  { return "intensity" }
func (IntensityRule) Kind() Kind    { return Continuous }
func (IntensityRule) Channels() int { return 1 }

func (IntensityRule) Prepare(sc *SliceContext) error {
	if sc.Intensity == nil || sc.IntensityGrid == nil {
		return ErrNoIntensity
	}
	return nil
}

func (IntensityRule) ComputeValue(sc *SliceContext, i int, dst []float64) {
	p := sc.Table.Points[i]
	w := sc.Grid.VoxelToWorld(sc.Slice, p.Row, p.Col)
	v, ok := sc.IntensityGrid.Nearest(w)
	if !ok {
		dst[0] = math.NaN()
		return
	}
	dst[0] = sc.Intensity.At(v[0], v[1], v[2])
}

// CoordinateRule writes the world coordinates of the two in-slice axes.
type CoordinateRule struct{}

func (CoordinateRule) Name() string                   { return "coordinates" }
func (CoordinateRule) Kind() Kind                     { return Continuous }
func (CoordinateRule) Channels() int                  { return 2 }
func (CoordinateRule) Prepare(sc *SliceContext) error { return nil }

func (CoordinateRule) ComputeValue(sc *SliceContext, i int, dst []float64) {
	p := sc.Table.Points[i]
	dst[0], dst[1] = sc.Grid.InSlice(sc.Slice, p.Row, p.Col)
}

// RuleByName resolves a channel name used in configuration files.
func RuleByName(name string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "label", "raw":
		return LabelRule{}, nil
	case "border":
		return BorderRule{}, nil
	case "curvature":
		return CurvatureRule{}, nil
	case "intensity":
		return IntensityRule{}, nil
	case "coordinates", "coords":
		return CoordinateRule{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownChannel, "%q", name)
}

// Gradient returns the derivative of v with unit spacing: central differences inside,
// one-sided differences at both ends.
func Gradient(v []float64) []float64 {
	n := len(v)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = v[1] - v[0]
	g[n-1] = v[n-1] - v[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (v[i+1] - v[i-1]) / 2
	}
	return g
}

// Curvature returns the signed curvature of the planar curve (x[i], y[i]).
// Points where the curve does not move get NaN.
func Curvature(x, y []float64) []float64 {
	dx, dy := Gradient(x), Gradient(y)
	ddx, ddy := Gradient(dx), Gradient(dy)
	k := make([]float64, len(x))
	for i := range k {
		speed := dx[i]*dx[i] + dy[i]*dy[i]
		if speed == 0 {
			k[i] = math.NaN()
			continue
		}
		k[i] = (dx[i]*ddy[i] - dy[i]*ddx[i]) / math.Pow(speed, 1.5)
	}
	return k
}
