// Package composite stitches the flatmaps of several independently unrolled regions
// onto one canvas.
//
// The primary region defines the canvas height; the satellite with the most slice
// columns defines its width and the horizontal reference. Each region is placed at a
// fixed row offset and shifted horizontally so that first-valid-slice columns line up
// with the reference's. Overlapping cells are merged additively.
package composite

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sliceflatmap/internal/models"
	"sliceflatmap/pkg/flatmap"
)

// ErrNoSatellites means a compositor was configured without satellite regions.
var ErrNoSatellites = errors.New("compositor needs at least one satellite region")

// RegionSpec describes one region before its pipeline is built.
type RegionSpec struct {
	Name string

	// Params configures the region's pipeline
	Params *flatmap.Params

	// RowOffset is the region's vertical position on the canvas in pixels
	RowOffset int

	// SliceShift moves the region horizontally by whole slice columns
	SliceShift int
}

// Region is a region with a built pipeline.
type Region struct {
	Name       string
	Pipeline   *flatmap.Pipeline
	RowOffset  int
	SliceShift int
}

// Compositor composes the rasters and point mappings of a primary region and its
// satellites.
type Compositor struct {
	Primary    Region
	Satellites []Region

	// Padding is added below the primary region's rows
	Padding int

	Logger zerolog.Logger
}

// Build runs every region's pipeline concurrently and returns the compositor.
// The first region error aborts the build.
func Build(ctx context.Context, primary RegionSpec, satellites []RegionSpec, padding int, logger zerolog.Logger) (*Compositor, error) {
	if len(satellites) == 0 {
		return nil, ErrNoSatellites
	}
	specs := append([]RegionSpec{primary}, satellites...)
	regions := make([]Region, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			p, err := flatmap.Build(gctx, spec.Params)
			if err != nil {
				return errors.Wrapf(err, "region %s", spec.Name)
			}
			regions[i] = Region{Name: spec.Name, Pipeline: p, RowOffset: spec.RowOffset, SliceShift: spec.SliceShift}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Compositor{
		Primary:    regions[0],
		Satellites: regions[1:],
		Padding:    padding,
		Logger:     logger.With().Str("component", "composite").Logger(),
	}, nil
}

// Placement is where a region lands on the canvas.
type Placement struct {
	Name      string
	RowOffset int
	ColOffset int
}

// Layout is the canvas geometry shared by rasters and point mappings.
type Layout struct {
	Rows int
	Cols int

	// Reference names the satellite that defines the width
	Reference string

	// Placements are in region order: primary first
	Placements []Placement
}

func (c *Compositor) regions() []Region {
	return append([]Region{c.Primary}, c.Satellites...)
}

// Layout computes the canvas size and every region's placement.
func (c *Compositor) Layout() (Layout, error) {
	if len(c.Satellites) == 0 {
		return Layout{}, ErrNoSatellites
	}

	ref := -1
	var refBounds models.Bounds
	for i, s := range c.Satellites {
		b, err := boundsOf(s)
		if err != nil {
			return Layout{}, err
		}
		if b.Valid && (ref < 0 || b.Cols() > refBounds.Cols()) {
			ref, refBounds = i, b
		}
	}
	if ref < 0 {
		return Layout{}, errors.New("no satellite region produced a flatmap")
	}
	refAnchor := refBounds.FirstValid + c.Satellites[ref].SliceShift

	pb, err := boundsOf(c.Primary)
	if err != nil {
		return Layout{}, err
	}

	l := Layout{
		Rows:      pb.Rows() + c.Padding,
		Cols:      refBounds.Cols(),
		Reference: c.Satellites[ref].Name,
	}
	for _, r := range c.regions() {
		b, _ := boundsOf(r)
		l.Placements = append(l.Placements, Placement{
			Name:      r.Name,
			RowOffset: r.RowOffset,
			ColOffset: b.FirstValid + r.SliceShift - refAnchor,
		})
	}
	return l, nil
}

// Compose rasterizes every region with rule and overlays the results on the canvas.
func (c *Compositor) Compose(ctx context.Context, rule flatmap.Rule, suppress ...uint32) (*flatmap.Raster, error) {
	layout, err := c.Layout()
	if err != nil {
		return nil, err
	}

	regions := c.regions()
	layers := make([]Layer, len(regions))
	for i, r := range regions {
		raster, err := r.Pipeline.Rasterize(ctx, rule, suppress...)
		if err != nil {
			return nil, errors.Wrapf(err, "region %s", r.Name)
		}
		layers[i] = Layer{
			Raster:    raster,
			RowOffset: layout.Placements[i].RowOffset,
			ColOffset: layout.Placements[i].ColOffset,
		}
	}

	canvas, clipped := ComposeLayers(layout.Rows, layout.Cols, rule.Kind(), rule.Channels(), layers)
	if clipped > 0 {
		c.Logger.Warn().Int("cells", clipped).Str("channel", rule.Name()).Msg("region cells fall outside the canvas")
	}
	return canvas, nil
}

// MapPoints maps world points through every region. A point is expected to fall inside
// at most one region; the first region that maps it wins and its row and column are
// translated by that region's placement.
func (c *Compositor) MapPoints(ctx context.Context, points [][3]float64) ([]flatmap.Mapping, error) {
	layout, err := c.Layout()
	if err != nil {
		return nil, err
	}

	out := make([]flatmap.Mapping, len(points))
	for i := range out {
		out[i] = flatmap.Unmapped()
	}
	for i, r := range c.regions() {
		mapped, err := r.Pipeline.MapPoints(ctx, points)
		if err != nil {
			return nil, errors.Wrapf(err, "region %s", r.Name)
		}
		pl := layout.Placements[i]
		for j, m := range mapped {
			if out[j].Mapped || !m.Mapped {
				continue
			}
			m.Row += float64(pl.RowOffset)
			m.Col += float64(pl.ColOffset)
			out[j] = m
		}
	}
	return out, nil
}

// Layer is a raster positioned on a canvas.
type Layer struct {
	Raster    *flatmap.Raster
	RowOffset int
	ColOffset int
}

// ComposeLayers overlays layers in order on a sentinel-filled canvas and returns it with
// the number of source cells that fell outside it.
func ComposeLayers(rows, cols int, kind flatmap.Kind, channels int, layers []Layer) (*flatmap.Raster, int) {
	canvas := flatmap.NewRaster(kind, rows, cols, channels)
	clipped := 0
	for _, l := range layers {
		clipped += Overlay(canvas, l.Raster, l.RowOffset, l.ColOffset)
	}
	return canvas, clipped
}

// Overlay merges src into dst at the given offset. Where both cells hold no data the
// result is the sentinel, where one does it is that value, and where both do it is
// their sum. Channels beyond dst's are ignored. It returns the number of non-sentinel
// source cells that fell outside dst.
func Overlay(dst, src *flatmap.Raster, rowOff, colOff int) int {
	channels := min(dst.Channels, src.Channels)
	clipped := 0
	for row := 0; row < src.Rows; row++ {
		for col := 0; col < src.Cols; col++ {
			dr, dc := row+rowOff, col+colOff
			for ch := 0; ch < channels; ch++ {
				if src.IsSentinel(row, col, ch) {
					continue
				}
				if !dst.Contains(dr, dc) {
					clipped++
					continue
				}
				v := src.At(row, col, ch)
				if !dst.IsSentinel(dr, dc, ch) {
					v += dst.At(dr, dc, ch)
				}
				dst.Set(dr, dc, ch, v)
			}
		}
	}
	return clipped
}

func boundsOf(r Region) (models.Bounds, error) {
	if r.Pipeline == nil {
		return models.Bounds{}, errors.Errorf("region %s has no pipeline", r.Name)
	}
	b, err := r.Pipeline.Bounds()
	if err != nil {
		return models.Bounds{}, errors.Wrapf(err, "region %s", r.Name)
	}
	return b, nil
}
