// Package contour extracts and aligns the boundary of the landmark-bearing object on
// each slice of a label volume.
package contour

import (
	"github.com/rs/zerolog"

	"sliceflatmap/internal/models"
)

// Extractor finds the single object on a slice that carries both landmark labels and
// traces its outer boundary.
type Extractor struct {
	// Volume is the label volume being sliced along axis 0
	Volume *models.LabelVolume

	// Incision and Origin are the landmark label IDs
	Incision uint32
	Origin   uint32

	// Connectivity of objects, 4 or 8. Zero means 8.
	Connectivity int

	// Verbose enables debug logging of skipped slices
	Verbose bool

	Logger zerolog.Logger
}

// Extract returns the raw contour of the qualifying object on a slice, or nil when the
// slice has no such object. Offsets of the returned table are unset.
//
// A slice with more than one qualifying object is a configuration error wrapped in a
// *SliceError. Holes are filled with the complementary connectivity before tracing, so
// the chosen object is simply connected and its outer boundary is its only boundary.
func (e *Extractor) Extract(slice int) (*models.ContourTable, error) {
	v := e.Volume
	rows, cols := v.Rows, v.Cols
	labels := v.Slice(slice)
	conn := e.Connectivity
	if conn != 4 {
		conn = 8
	}

	// Step 1: non-background mask
	mask := make([]bool, len(labels))
	empty := true
	for i, l := range labels {
		if l != 0 {
			mask[i] = true
			empty = false
		}
	}
	if empty {
		e.skip(slice, "no labelled pixels")
		return nil, nil
	}

	// Step 2: close background pockets so they do not split objects
	filled := FillHoles(mask, rows, cols, complement(conn))

	// Step 3: connected components carrying both landmarks
	ids, n := LabelComponents(filled, rows, cols, conn)
	hasIncision := make([]bool, n+1)
	hasOrigin := make([]bool, n+1)
	for i, l := range labels {
		if l == e.Incision {
			hasIncision[ids[i]] = true
		}
		if l == e.Origin {
			hasOrigin[ids[i]] = true
		}
	}

	chosen := 0
	for id := 1; id <= n; id++ {
		if !hasIncision[id] || !hasOrigin[id] {
			continue
		}
		if chosen != 0 {
			return nil, sliceErr(slice, ErrMultipleObjects)
		}
		chosen = id
	}
	if chosen == 0 {
		e.skip(slice, "no object carries both landmarks")
		return nil, nil
	}

	// Step 4: trace the outer boundary from the component's first raster pixel
	start := -1
	for i, id := range ids {
		if id == chosen {
			start = i
			break
		}
	}
	inside := func(r, c int) bool {
		return r >= 0 && r < rows && c >= 0 && c < cols && ids[r*cols+c] == chosen
	}
	tr := &tracer{rows: rows, cols: cols, connectivity: conn, inside: inside}
	pts, err := tr.trace(pixel{start / cols, start % cols})
	if err != nil {
		return nil, sliceErr(slice, err)
	}

	// Step 5: attach labels
	table := &models.ContourTable{
		Slice:  slice,
		Points: make([]models.ContourPoint, len(pts)),
	}
	for i, p := range pts {
		table.Points[i] = models.ContourPoint{
			Row:   p.row,
			Col:   p.col,
			Label: labels[p.row*cols+p.col],
		}
	}
	return table, nil
}

func (e *Extractor) skip(slice int, reason string) {
	if e.Verbose {
		e.Logger.Debug().Str("component", "contour").Int("slice", slice).Msg(reason)
	}
}
