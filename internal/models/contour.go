package models

// ContourPoint is one boundary pixel of the traced object on a slice.
type ContourPoint struct {
	// Row and Col are the in-slice voxel coordinates
	Row int
	Col int

	// Label is the label ID found at (Row, Col)
	Label uint32

	// Offset is the signed position relative to the origin landmark.
	// It is meaningless until the contour has been aligned.
	Offset int
}

// ContourTable is the ordered closed boundary of the single qualifying object on one slice.
// After alignment index 0 is the incision point.
type ContourTable struct {
	// Slice is the index of the slice this contour was traced on
	Slice int

	// Points is a single traversal of the boundary
	Points []ContourPoint

	// Aligned is set once offsets have been assigned
	Aligned bool
}

// Len returns the number of contour points
func (t *ContourTable) Len() int { return len(t.Points) }

// Extents returns the largest offset and the negated smallest offset.
func (t *ContourTable) Extents() (top, bottom int) {
	for i, p := range t.Points {
		if i == 0 || p.Offset > top {
			top = p.Offset
		}
		if i == 0 || -p.Offset > bottom {
			bottom = -p.Offset
		}
	}
	return top, bottom
}

// Bounds are the global raster bounds accumulated over all contour tables.
type Bounds struct {
	// Valid is false until at least one slice produced a contour
	Valid bool

	// FirstValid and LastValid are the first and last slice indices with a contour
	FirstValid int
	LastValid  int

	// Top is the largest offset over all tables, Bottom the largest negated offset
	Top    int
	Bottom int
}

// Rows returns the raster height implied by the bounds
func (b Bounds) Rows() int {
	if !b.Valid {
		return 0
	}
	return b.Top + b.Bottom + 1
}

// Cols returns the raster width implied by the bounds
func (b Bounds) Cols() int {
	if !b.Valid {
		return 0
	}
	return b.LastValid - b.FirstValid + 1
}

// Include folds one slice's extents into the bounds. The fold is associative and
// commutative, so per-slice results can be reduced in any order.
func (b Bounds) Include(slice, top, bottom int) Bounds {
	if !b.Valid {
		return Bounds{Valid: true, FirstValid: slice, LastValid: slice, Top: top, Bottom: bottom}
	}
	if slice < b.FirstValid {
		b.FirstValid = slice
	}
	if slice > b.LastValid {
		b.LastValid = slice
	}
	if top > b.Top {
		b.Top = top
	}
	if bottom > b.Bottom {
		b.Bottom = bottom
	}
	return b
}

// Merge combines two bounds.
func (b Bounds) Merge(o Bounds) Bounds {
	if !o.Valid {
		return b
	}
	b = b.Include(o.FirstValid, o.Top, o.Bottom)
	return b.Include(o.LastValid, o.Top, o.Bottom)
}
