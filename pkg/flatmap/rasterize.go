package flatmap

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"sliceflatmap/internal/models"
)

// Rasterize produces the raster of one channel rule. Contour points whose label is in
// suppress are left at the sentinel. Point i of slice s lands in cell
// [offset + bottom, s - firstValid]. Slices without a contour stay background columns.
func (p *Pipeline) Rasterize(ctx context.Context, rule Rule, suppress ...uint32) (*Raster, error) {
	if !p.accumulated.Load() {
		return nil, ErrNotAccumulated
	}
	if rule == nil {
		return nil, errors.Wrap(ErrUnknownChannel, "nil rule")
	}

	b := p.bounds
	raster := NewRaster(rule.Kind(), b.Rows(), b.Cols(), rule.Channels())
	if !b.Valid {
		return raster, nil
	}

	suppressed := make(map[uint32]bool, len(suppress))
	for _, l := range suppress {
		suppressed[l] = true
	}

	p.log.Info().Str("channel", rule.Name()).Int("rows", raster.Rows).Int("cols", raster.Cols).Msg("Step 3: rasterizing channel")

	// Every slice writes only its own column.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for s := b.FirstValid; s <= b.LastValid; s++ {
		t := p.tables[s]
		if t == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return p.rasterizeSlice(raster, rule, t, suppressed)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "rasterizing %s", rule.Name())
	}
	return raster, nil
}

func (p *Pipeline) rasterizeSlice(raster *Raster, rule Rule, t *models.ContourTable, suppressed map[uint32]bool) error {
	sc := &SliceContext{
		Slice:         t.Slice,
		Table:         t,
		Grid:          p.grid,
		Intensity:     p.params.Intensity,
		IntensityGrid: p.intensityGrid,
	}
	if err := rule.Prepare(sc); err != nil {
		return errors.Wrapf(err, "slice %d", t.Slice)
	}

	col := t.Slice - p.bounds.FirstValid
	dst := make([]float64, rule.Channels())
	for i, pt := range t.Points {
		if suppressed[pt.Label] {
			continue
		}
		rule.ComputeValue(sc, i, dst)
		row := pt.Offset + p.bounds.Bottom
		for ch, v := range dst {
			if raster.Kind == Discrete && v > MaxDiscrete {
				return errors.Wrapf(ErrValueRange, "slice %d point %d value %v", t.Slice, i, v)
			}
			raster.Set(row, col, ch, v)
		}
	}
	return nil
}
