package flatmap

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"sliceflatmap/internal/models"
	"sliceflatmap/pkg/contour"
)

// sliceResult is the write-once output slot of one slice
type sliceResult struct {
	table  *models.ContourTable
	top    int
	bottom int
	err    error
}

// Accumulate extracts and aligns the contour of every slice and folds the per-slice
// extents into the raster bounds. Slices are processed concurrently; the first
// configuration error in slice order aborts the pipeline and nothing is kept.
// Concurrent calls are serialised; once one succeeds the others return nil.
func (p *Pipeline) Accumulate(ctx context.Context) error {
	p.accMu.Lock()
	defer p.accMu.Unlock()
	if p.accumulated.Load() {
		return nil
	}
	v := p.params.Volume

	extractor := &contour.Extractor{
		Volume:       v,
		Incision:     p.params.Incision,
		Origin:       p.params.Origin,
		Connectivity: p.params.Connectivity,
		Verbose:      p.params.Verbose,
		Logger:       p.log,
	}
	aligner := contour.Aligner{
		Incision: p.params.Incision,
		Origin:   p.params.Origin,
		Sign:     p.params.OffsetSign,
	}

	p.log.Info().Int("slices", v.Slices).Int("workers", p.workers()).Msg("Step 1: extracting and aligning contours")

	results := make([]sliceResult, v.Slices)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for s := 0; s < v.Slices; s++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[s] = processSlice(extractor, aligner, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "contour accumulation interrupted")
	}

	// Step 2: fold per-slice extents into the global bounds
	tables := make([]*models.ContourTable, v.Slices)
	var bounds models.Bounds
	for s, res := range results {
		if res.err != nil {
			return res.err
		}
		if res.table == nil {
			continue
		}
		tables[s] = res.table
		bounds = bounds.Include(s, res.top, res.bottom)
	}

	p.tables = tables
	p.bounds = bounds
	p.accumulated.Store(true)

	p.log.Info().
		Bool("valid", bounds.Valid).
		Int("firstValid", bounds.FirstValid).
		Int("lastValid", bounds.LastValid).
		Int("top", bounds.Top).
		Int("bottom", bounds.Bottom).
		Msg("Step 2: raster bounds fixed")
	return nil
}

func processSlice(e *contour.Extractor, a contour.Aligner, s int) sliceResult {
	raw, err := e.Extract(s)
	if err != nil || raw == nil {
		return sliceResult{err: err}
	}
	aligned, top, bottom, err := a.Align(raw)
	if err != nil {
		return sliceResult{err: err}
	}
	return sliceResult{table: aligned, top: top, bottom: bottom}
}
