// Package flatmap unrolls the landmark-bearing object of a label volume into a 2D
// raster indexed by contour offset and slice, and maps 3D points back onto it.
//
// A Pipeline is built in two phases. New validates the inputs and derives the
// sampling grids; Accumulate extracts and aligns every slice's contour and fixes the
// raster bounds. Build does both. Rasterize and MapPoints require a completed
// accumulation and are safe for concurrent use afterwards.
package flatmap

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sliceflatmap/internal/models"
	"sliceflatmap/pkg/sampling"
	"sliceflatmap/pkg/surface"
)

// Params holds the pipeline configuration.
type Params struct {
	// Volume is the label volume, sliced along axis 0
	Volume *models.LabelVolume

	// Affine is the label volume's voxel-to-world transform.
	// The zero value means voxel space.
	Affine sampling.Affine

	// Incision and Origin are the landmark label IDs
	Incision uint32
	Origin   uint32

	// Connectivity of objects on a slice, 4 or 8
	Connectivity int

	// OffsetSign selects the offset convention, +1 (default) or -1
	OffsetSign int

	// NumCores bounds the number of slices processed concurrently.
	// Zero means all available cores.
	NumCores int

	// Verbose logs expected skips (empty slices, unmapped points) at debug level
	Verbose bool

	// Intensity is an optional co-registered volume for the intensity channel
	Intensity *models.IntensityVolume

	// IntensityAffine is the intensity volume's voxel-to-world transform.
	// The zero value means voxel space.
	IntensityAffine sampling.Affine

	// RequireMatchingExtents rejects an intensity volume whose extents differ
	// from the label volume's
	RequireMatchingExtents bool

	// Logger receives progress and skip messages. The zero value discards them.
	Logger *zerolog.Logger
}

// Pipeline runs contour extraction, alignment, rasterization and point mapping for
// one label volume.
type Pipeline struct {
	params *Params
	log    zerolog.Logger

	grid          *sampling.Grid
	intensityGrid *sampling.Grid

	// tables is indexed by slice; nil entries are skipped slices.
	// tables and bounds are written once under accMu before accumulated is set.
	accMu       sync.Mutex
	tables      []*models.ContourTable
	bounds      models.Bounds
	accumulated atomic.Bool

	mu         sync.Mutex
	index      *surface.Index
	indexErr   error
	indexBuilt bool
}

// New validates params and derives the sampling grids. Contours are not extracted
// until Accumulate is called.
func New(params *Params) (*Pipeline, error) {
	if params == nil || params.Volume == nil {
		return nil, errors.New("no label volume")
	}
	v := params.Volume
	if err := v.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{params: params, log: zerolog.Nop()}
	if params.Logger != nil {
		p.log = params.Logger.With().Str("component", "flatmap").Logger()
	}

	var err error
	p.grid, err = sampling.NewGrid([3]int{v.Slices, v.Rows, v.Cols}, affineOrIdentity(params.Affine))
	if err != nil {
		return nil, errors.Wrap(err, "label volume grid")
	}

	if iv := params.Intensity; iv != nil {
		if params.RequireMatchingExtents && (iv.Slices != v.Slices || iv.Rows != v.Rows || iv.Cols != v.Cols) {
			return nil, errors.Wrapf(ErrExtentMismatch, "intensity %dx%dx%d, labels %dx%dx%d",
				iv.Slices, iv.Rows, iv.Cols, v.Slices, v.Rows, v.Cols)
		}
		p.intensityGrid, err = sampling.NewGrid([3]int{iv.Slices, iv.Rows, iv.Cols}, affineOrIdentity(params.IntensityAffine))
		if err != nil {
			return nil, errors.Wrap(err, "intensity volume grid")
		}
	}

	return p, nil
}

// Build creates a pipeline and accumulates its contours.
func Build(ctx context.Context, params *Params) (*Pipeline, error) {
	p, err := New(params)
	if err != nil {
		return nil, err
	}
	if err := p.Accumulate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Grid returns the label volume's sampling grid
func (p *Pipeline) Grid() *sampling.Grid { return p.grid }

// Accumulated reports whether Accumulate has completed
func (p *Pipeline) Accumulated() bool { return p.accumulated.Load() }

// Bounds returns the accumulated raster bounds.
func (p *Pipeline) Bounds() (models.Bounds, error) {
	if !p.accumulated.Load() {
		return models.Bounds{}, ErrNotAccumulated
	}
	return p.bounds, nil
}

// Table returns the aligned contour of a slice, or nil when the slice was skipped.
func (p *Pipeline) Table(slice int) (*models.ContourTable, error) {
	if !p.accumulated.Load() {
		return nil, ErrNotAccumulated
	}
	if slice < 0 || slice >= len(p.tables) {
		return nil, nil
	}
	return p.tables[slice], nil
}

// Tables returns the aligned contours indexed by slice.
func (p *Pipeline) Tables() ([]*models.ContourTable, error) {
	if !p.accumulated.Load() {
		return nil, ErrNotAccumulated
	}
	return p.tables, nil
}

func (p *Pipeline) workers() int {
	if p.params.NumCores > 0 {
		return p.params.NumCores
	}
	return runtime.NumCPU()
}

func affineOrIdentity(a sampling.Affine) sampling.Affine {
	if a == (sampling.Affine{}) {
		return sampling.Identity()
	}
	return a
}
