package contour

import (
	"sliceflatmap/internal/models"
)

// Aligner cuts a contour at the incision point and assigns offsets relative to the
// origin point.
type Aligner struct {
	Incision uint32
	Origin   uint32

	// Sign selects the offset convention: +1 gives offset = i - o, -1 gives o - i.
	// Zero means +1. Use one convention for a whole pipeline.
	Sign int
}

// Align returns a rotated copy of t whose first point is the first occurrence of the
// incision pixel, with offsets set, together with the slice's top and bottom extents.
func (a Aligner) Align(t *models.ContourTable) (*models.ContourTable, int, int, error) {
	n := len(t.Points)

	// A one-pixel-wide spur is walked out and back, so the same incision pixel can
	// appear twice. Only distinct pixels count.
	k := -1
	incisions := make(map[[2]int]bool)
	for i, p := range t.Points {
		if p.Label == a.Incision {
			if k < 0 {
				k = i
			}
			incisions[[2]int{p.Row, p.Col}] = true
		}
	}
	if k < 0 {
		return nil, 0, 0, sliceErr(t.Slice, ErrLandmarkNotOnContour)
	}
	if len(incisions) > 1 {
		return nil, 0, 0, sliceErr(t.Slice, ErrLandmarkCount)
	}

	out := &models.ContourTable{
		Slice:   t.Slice,
		Points:  make([]models.ContourPoint, n),
		Aligned: true,
	}
	for j := range out.Points {
		out.Points[j] = t.Points[(k+j)%n]
	}

	o := -1
	for i, p := range out.Points {
		if p.Label == a.Origin {
			o = i
			break
		}
	}
	if o < 0 {
		return nil, 0, 0, sliceErr(t.Slice, ErrLandmarkNotOnContour)
	}

	sign := 1
	if a.Sign < 0 {
		sign = -1
	}
	for i := range out.Points {
		out.Points[i].Offset = sign * (i - o)
	}

	top, bottom := out.Extents()
	return out, top, bottom, nil
}
