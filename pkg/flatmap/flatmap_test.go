package flatmap

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sliceflatmap/internal/models"
	"sliceflatmap/internal/testvol"
	"sliceflatmap/pkg/contour"
	"sliceflatmap/pkg/sampling"
	"sliceflatmap/pkg/surface"
)

const (
	testIncision = 9
	testOrigin   = 2
)

var diamondLabels = []uint32{9, 3, 2, 4, 5}

var smallRing7 = []string{
	".......",
	".......",
	"..111..",
	"..9.2..",
	"..111..",
	".......",
	".......",
}

var bigRing7 = []string{
	".......",
	".11111.",
	".1...1.",
	".9...2.",
	".1...1.",
	".11111.",
	".......",
}

func buildPipeline(t *testing.T, params *Params) *Pipeline {
	t.Helper()
	params.Incision = testIncision
	params.Origin = testOrigin
	if params.NumCores == 0 {
		params.NumCores = 2
	}
	p, err := Build(context.Background(), params)
	require.NoError(t, err)
	return p
}

func diamondPipeline(t *testing.T) *Pipeline {
	return buildPipeline(t, &Params{Volume: testvol.MustFromArt(testvol.Diamond)})
}

// TestRasterRoundTrip checks that every point of the five-point diamond contour can be
// read back from its raster cell.
func TestRasterRoundTrip(t *testing.T) {
	p := diamondPipeline(t)

	b, err := p.Bounds()
	require.NoError(t, err)
	assert.Equal(t, models.Bounds{Valid: true, FirstValid: 0, LastValid: 0, Top: 2, Bottom: 2}, b)

	table, err := p.Table(0)
	require.NoError(t, err)
	require.Len(t, table.Points, 5)
	assert.Equal(t, uint32(testIncision), table.Points[0].Label)
	assert.Equal(t, 0, table.Points[2].Offset)

	r, err := p.Rasterize(context.Background(), LabelRule{})
	require.NoError(t, err)
	require.Equal(t, Discrete, r.Kind)
	require.Equal(t, 5, r.Rows)
	require.Equal(t, 1, r.Cols)

	for i, pt := range table.Points {
		assert.Equal(t, float64(pt.Label), r.At(pt.Offset+b.Bottom, 0, 0), "point %d", i)
		assert.Equal(t, float64(diamondLabels[i]), r.At(i, 0, 0), "row %d", i)
	}
}

func TestSuppressionBlanksEveryChannel(t *testing.T) {
	v := testvol.MustFromArt(testvol.Diamond)
	iv := models.NewIntensityVolume(v.Slices, v.Rows, v.Cols)
	for i := range iv.Data {
		iv.Data[i] = float64(i + 1)
	}
	p := buildPipeline(t, &Params{Volume: v, Intensity: iv})

	rules := []Rule{LabelRule{}, BorderRule{}, CurvatureRule{}, IntensityRule{}, CoordinateRule{}}
	for _, rule := range rules {
		t.Run(rule.Name(), func(t *testing.T) {
			full, err := p.Rasterize(context.Background(), rule)
			require.NoError(t, err)
			hasData := false
			for row := 0; row < full.Rows; row++ {
				if !full.IsSentinel(row, 0, 0) {
					hasData = true
				}
			}
			assert.True(t, hasData, "unsuppressed raster should hold data")

			r, err := p.Rasterize(context.Background(), rule, diamondLabels...)
			require.NoError(t, err)
			for row := 0; row < r.Rows; row++ {
				for ch := 0; ch < r.Channels; ch++ {
					assert.True(t, r.IsSentinel(row, 0, ch), "row %d channel %d", row, ch)
				}
			}
		})
	}
}

func TestRasterColumn(t *testing.T) {
	p := buildPipeline(t, &Params{Volume: testvol.MustFromArt(testvol.Diamond, testvol.Empty(5, 5), testvol.Diamond)})
	r, err := p.Rasterize(context.Background(), LabelRule{})
	require.NoError(t, err)
	require.Equal(t, 3, r.Cols)

	want := make([]float64, len(diamondLabels))
	for i, l := range diamondLabels {
		want[i] = float64(l)
	}
	assert.Equal(t, want, r.Column(0, 0))
	assert.Equal(t, want, r.Column(2, 0))
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, r.Column(1, 0))
}

func TestSuppressionIsPerLabel(t *testing.T) {
	p := diamondPipeline(t)
	r, err := p.Rasterize(context.Background(), LabelRule{}, 3)
	require.NoError(t, err)
	assert.True(t, r.IsSentinel(1, 0, 0))
	assert.Equal(t, 9.0, r.At(0, 0, 0))
	assert.Equal(t, 2.0, r.At(2, 0, 0))
}

func TestBoundsMonotonicity(t *testing.T) {
	ctx := context.Background()
	small := buildPipeline(t, &Params{Volume: testvol.MustFromArt(smallRing7, smallRing7)})
	grown := buildPipeline(t, &Params{Volume: testvol.MustFromArt(smallRing7, smallRing7, bigRing7)})

	b1, err := small.Bounds()
	require.NoError(t, err)
	b2, err := grown.Bounds()
	require.NoError(t, err)

	assert.Equal(t, 3, b1.Top)
	assert.Equal(t, 4, b1.Bottom)
	assert.Equal(t, 7, b2.Top)
	assert.Equal(t, 8, b2.Bottom)
	assert.GreaterOrEqual(t, b2.Top, b1.Top)
	assert.GreaterOrEqual(t, b2.Bottom, b1.Bottom)
	assert.Equal(t, 2, b2.LastValid)

	r, err := grown.Rasterize(ctx, LabelRule{})
	require.NoError(t, err)
	assert.Equal(t, 16, r.Rows)
	assert.Equal(t, 3, r.Cols)
	// The origin of every slice sits on the same raster row.
	for col := 0; col < r.Cols; col++ {
		assert.Equal(t, float64(testOrigin), r.At(b2.Bottom, col, 0), "column %d", col)
	}
}

func TestOffsetContiguity(t *testing.T) {
	p := buildPipeline(t, &Params{Volume: testvol.MustFromArt(smallRing7, bigRing7)})
	tables, err := p.Tables()
	require.NoError(t, err)
	for _, table := range tables {
		require.NotNil(t, table)
		top, bottom := table.Extents()
		seen := make(map[int]int)
		for _, pt := range table.Points {
			seen[pt.Offset]++
		}
		assert.Len(t, seen, top+bottom+1, "slice %d", table.Slice)
		for off := -bottom; off <= top; off++ {
			assert.Equal(t, 1, seen[off], "slice %d offset %d", table.Slice, off)
		}
	}
}

func TestGapSlicesRasterizeAsBackground(t *testing.T) {
	p := buildPipeline(t, &Params{Volume: testvol.MustFromArt(testvol.Empty(5, 5), testvol.Ring, testvol.Empty(5, 5), testvol.Ring, testvol.Empty(5, 5))})
	b, err := p.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 1, b.FirstValid)
	assert.Equal(t, 3, b.LastValid)

	r, err := p.Rasterize(context.Background(), LabelRule{})
	require.NoError(t, err)
	require.Equal(t, 3, r.Cols)
	for row := 0; row < r.Rows; row++ {
		assert.True(t, r.IsSentinel(row, 1, 0))
		assert.False(t, r.IsSentinel(row, 0, 0))
		assert.False(t, r.IsSentinel(row, 2, 0))
	}
}

func TestPreconditions(t *testing.T) {
	p, err := New(&Params{Volume: testvol.MustFromArt(testvol.Diamond), Incision: testIncision, Origin: testOrigin})
	require.NoError(t, err)
	assert.False(t, p.Accumulated())

	_, err = p.Rasterize(context.Background(), LabelRule{})
	assert.ErrorIs(t, err, ErrNotAccumulated)
	_, err = p.MapPoint([3]float64{0, 1, 1})
	assert.ErrorIs(t, err, ErrNotAccumulated)
	_, err = p.Bounds()
	assert.ErrorIs(t, err, ErrNotAccumulated)

	require.NoError(t, p.Accumulate(context.Background()))
	_, err = p.Rasterize(context.Background(), LabelRule{})
	assert.NoError(t, err)
}

func TestConcurrentAccumulate(t *testing.T) {
	p, err := New(&Params{
		Volume:   testvol.MustFromArt(testvol.Ring, testvol.Diamond, testvol.Ring),
		Incision: testIncision,
		Origin:   testOrigin,
		NumCores: 2,
	})
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				errs[i] = p.Accumulate(ctx)
				return
			}
			// Index requests may land before or after accumulation completes.
			if _, err := p.SurfaceIndex(); err != nil && !errors.Is(err, ErrNotAccumulated) {
				errs[i] = err
			}
		}()
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "goroutine %d", i)
	}

	require.True(t, p.Accumulated())
	b, err := p.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 0, b.FirstValid)
	assert.Equal(t, 2, b.LastValid)
	_, err = p.SurfaceIndex()
	assert.NoError(t, err)
}

func TestConfigurationErrorNamesSlice(t *testing.T) {
	ring := []string{
		"...........",
		".111.......",
		".9.2.......",
		".111.......",
		"...........",
	}
	twoRings := []string{
		"...........",
		".111...111.",
		".9.2...9.2.",
		".111...111.",
		"...........",
	}
	_, err := Build(context.Background(), &Params{
		Volume:   testvol.MustFromArt(ring, ring, twoRings, ring),
		Incision: testIncision,
		Origin:   testOrigin,
		NumCores: 4,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contour.ErrMultipleObjects))

	var se *contour.SliceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.Slice)
}

func TestIntensityExtentMismatch(t *testing.T) {
	v := testvol.MustFromArt(testvol.Diamond)
	_, err := New(&Params{
		Volume:                 v,
		Intensity:              models.NewIntensityVolume(1, 4, 4),
		RequireMatchingExtents: true,
	})
	assert.ErrorIs(t, err, ErrExtentMismatch)

	_, err = New(&Params{Volume: v, Intensity: models.NewIntensityVolume(1, 4, 4)})
	assert.NoError(t, err)
}

func TestIntensityChannel(t *testing.T) {
	v := testvol.MustFromArt(testvol.Diamond)
	iv := models.NewIntensityVolume(1, 5, 5)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			iv.Set(0, r, c, float64(10*r+c))
		}
	}
	p := buildPipeline(t, &Params{Volume: v, Intensity: iv})
	r, err := p.Rasterize(context.Background(), IntensityRule{})
	require.NoError(t, err)
	assert.Equal(t, Continuous, r.Kind)
	// (1,2) has offset -1, (2,3) is the origin
	assert.Equal(t, 12.0, r.At(1, 0, 0))
	assert.Equal(t, 23.0, r.At(2, 0, 0))

	_, err = diamondPipeline(t).Rasterize(context.Background(), IntensityRule{})
	assert.ErrorIs(t, err, ErrNoIntensity)
}

func TestCoordinateChannel(t *testing.T) {
	p := buildPipeline(t, &Params{
		Volume: testvol.MustFromArt(testvol.Diamond),
		Affine: sampling.ScaleOrigin([3]float64{1, 2, 2}, [3]float64{0, 1, 1}),
	})
	r, err := p.Rasterize(context.Background(), CoordinateRule{})
	require.NoError(t, err)
	require.Equal(t, 2, r.Channels)
	assert.Equal(t, 5.0, r.At(2, 0, 0))
	assert.Equal(t, 7.0, r.At(2, 0, 1))
}

func TestBorderChannel(t *testing.T) {
	v := testvol.MustFromArt(smallRing7)
	p := buildPipeline(t, &Params{Volume: v})
	r, err := p.Rasterize(context.Background(), BorderRule{})
	require.NoError(t, err)

	table, err := p.Table(0)
	require.NoError(t, err)
	b, _ := p.Bounds()
	for i, pt := range table.Points {
		want := 0.0
		if i == 0 || i == len(table.Points)-1 || pt.Label != table.Points[i-1].Label || pt.Label != table.Points[i+1].Label {
			want = 1
		}
		assert.Equal(t, want, r.At(pt.Offset+b.Bottom, 0, 0), "point %d", i)
	}
	// incision first, then a run of 1-labels
	assert.Equal(t, 1.0, r.At(0, 0, 0))
	assert.Equal(t, 0.0, r.At(2, 0, 0))
}

func TestCurvatureOfCircle(t *testing.T) {
	const n, radius = 200, 10.0
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		a := 2 * math.Pi * float64(i) / n
		x[i] = radius * math.Cos(a)
		y[i] = radius * math.Sin(a)
	}
	k := Curvature(x, y)
	for i := 2; i < n-2; i++ {
		assert.InDelta(t, 1/radius, k[i], 1e-3, "point %d", i)
	}

	// Reversing the direction flips the sign.
	for i := range y {
		y[i] = -y[i]
	}
	k = Curvature(x, y)
	assert.InDelta(t, -1/radius, k[n/2], 1e-3)
}

func TestCurvatureOfStationaryPoint(t *testing.T) {
	k := Curvature([]float64{1, 1, 1}, []float64{2, 2, 2})
	for _, v := range k {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRuleByName(t *testing.T) {
	for _, name := range []string{"label", "border", "curvature", "intensity", "coordinates"} {
		r, err := RuleByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, r.Name())
	}
	_, err := RuleByName("thickness")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestMappingExactness(t *testing.T) {
	p := buildPipeline(t, &Params{
		Volume: testvol.MustFromArt(testvol.Empty(5, 5), testvol.Diamond),
		Affine: sampling.ScaleOrigin([3]float64{2, 0.5, 0.5}, [3]float64{10, -3, 4}),
	})
	assert.False(t, p.IndexBuilt())

	table, err := p.Table(1)
	require.NoError(t, err)
	b, _ := p.Bounds()

	for _, pt := range table.Points {
		w := p.Grid().VoxelToWorld(1, pt.Row, pt.Col)
		m, err := p.MapPoint(w)
		require.NoError(t, err)
		require.True(t, m.Mapped)
		assert.Equal(t, float64(pt.Offset+b.Bottom), m.Row)
		assert.Equal(t, 0.0, m.Col)
		assert.Equal(t, 0.0, m.Distance)
		assert.Equal(t, [3]int{1, pt.Row, pt.Col}, m.Voxel)
	}
	assert.True(t, p.IndexBuilt())

	// The filled centre snaps to one of its four edge neighbours.
	m, err := p.MapPoint(p.Grid().VoxelToWorld(1, 2, 2))
	require.NoError(t, err)
	assert.True(t, m.Mapped)
	assert.InDelta(t, 0.5, m.Distance, 1e-9)
}

func TestOutsideRejection(t *testing.T) {
	p := diamondPipeline(t)
	for _, w := range [][3]float64{{1e6, 1e6, 1e6}, {0, 0, 0}, {-5, 2, 2}} {
		m, err := p.MapPoint(w)
		require.NoError(t, err)
		assert.False(t, m.Mapped)
		assert.True(t, math.IsNaN(m.Row))
		assert.True(t, math.IsNaN(m.Col))
	}
}

func TestMapPointsBatch(t *testing.T) {
	p := buildPipeline(t, &Params{Volume: testvol.MustFromArt(testvol.Ring, testvol.Ring, testvol.Ring), Verbose: true})
	points := [][3]float64{
		{0, 2, 1},  // incision of slice 0
		{2, 2, 3},  // origin of slice 2
		{1, 0, 0},  // outside
		{50, 2, 2}, // beyond the volume
		{1, 1, 2},  // on slice 1's contour
	}
	out, err := p.MapPoints(context.Background(), points)
	require.NoError(t, err)
	require.Len(t, out, len(points))

	b, _ := p.Bounds()
	assert.True(t, out[0].Mapped)
	assert.Equal(t, float64(-4+b.Bottom), out[0].Row)
	assert.Equal(t, 0.0, out[0].Col)
	assert.Equal(t, float64(b.Bottom), out[1].Row)
	assert.Equal(t, 2.0, out[1].Col)
	assert.False(t, out[2].Mapped)
	assert.False(t, out[3].Mapped)
	assert.True(t, out[4].Mapped)
	assert.Equal(t, 1.0, out[4].Col)
}

func TestNoSurface(t *testing.T) {
	p := buildPipeline(t, &Params{Volume: testvol.MustFromArt(testvol.Empty(4, 4))})
	b, err := p.Bounds()
	require.NoError(t, err)
	assert.False(t, b.Valid)

	r, err := p.Rasterize(context.Background(), LabelRule{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Rows)

	_, err = p.MapPoint([3]float64{0, 1, 1})
	assert.ErrorIs(t, err, surface.ErrNoSurface)
	// the failure is cached
	assert.True(t, p.IndexBuilt())
}
