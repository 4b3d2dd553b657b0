package flatmap

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"sliceflatmap/pkg/surface"
)

// Mapping is the flatmap position of a query point.
type Mapping struct {
	// Row and Col are the raster cell, NaN when the point is unmapped
	Row float64
	Col float64

	// Mapped is false for points outside the interior mask
	Mapped bool

	// Distance from the query point to the surface voxel it snapped to
	Distance float64

	// Voxel is the (slice, row, col) index of that surface voxel
	Voxel [3]int
}

// Unmapped is the sentinel result for points that cannot be placed on the flatmap.
func Unmapped() Mapping {
	return Mapping{Row: math.NaN(), Col: math.NaN(), Distance: math.NaN()}
}

// SurfaceIndex returns the surface search index, building it on first use.
// The result, including a build failure, is cached for the pipeline's lifetime.
func (p *Pipeline) SurfaceIndex() (*surface.Index, error) {
	if !p.accumulated.Load() {
		return nil, ErrNotAccumulated
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.indexBuilt {
		p.log.Info().Msg("Step 4: building surface index")
		p.index, p.indexErr = surface.Build(p.tables, p.grid)
		if p.indexErr == nil {
			p.log.Info().Int("voxels", p.index.Count()).Msg("surface index ready")
		}
		p.indexBuilt = true
	}
	return p.index, p.indexErr
}

// IndexBuilt reports whether the surface index has been built
func (p *Pipeline) IndexBuilt() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexBuilt
}

// IsInside reports whether a world point lies on or inside the contour of its slice.
func (p *Pipeline) IsInside(world [3]float64) (bool, error) {
	x, err := p.SurfaceIndex()
	if err != nil {
		return false, err
	}
	return x.IsInside(world), nil
}

// MapPoint places a world point on the flatmap. Points outside the interior mask are
// returned as Unmapped with a nil error.
func (p *Pipeline) MapPoint(world [3]float64) (Mapping, error) {
	x, err := p.SurfaceIndex()
	if err != nil {
		return Unmapped(), err
	}
	return p.mapPoint(x, world), nil
}

func (p *Pipeline) mapPoint(x *surface.Index, world [3]float64) Mapping {
	if !x.IsInside(world) {
		return Unmapped()
	}
	hit := x.Nearest(world)
	return Mapping{
		Row:      float64(hit.Offset + p.bounds.Bottom),
		Col:      float64(hit.Voxel[0] - p.bounds.FirstValid),
		Mapped:   true,
		Distance: hit.Distance,
		Voxel:    hit.Voxel,
	}
}

// MapPoints maps a batch of world points concurrently. The result is parallel to
// points. When the pipeline is verbose every unmapped point is logged.
func (p *Pipeline) MapPoints(ctx context.Context, points [][3]float64) ([]Mapping, error) {
	x, err := p.SurfaceIndex()
	if err != nil {
		return nil, err
	}

	out := make([]Mapping, len(points))
	chunk := (len(points) + p.workers() - 1) / p.workers()
	if chunk < 1 {
		chunk = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(points); start += chunk {
		end := min(start+chunk, len(points))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = p.mapPoint(x, points[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "point mapping interrupted")
	}

	skipped := 0
	for i, m := range out {
		if m.Mapped {
			continue
		}
		skipped++
		if p.params.Verbose {
			pt := points[i]
			p.log.Debug().Int("point", i).Floats64("world", pt[:]).Msg("point outside interior mask, not mapped")
		}
	}
	p.log.Info().Int("points", len(points)).Int("unmapped", skipped).Msg("points mapped")
	return out, nil
}
