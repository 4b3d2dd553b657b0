package flatmap

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Kind distinguishes discrete and continuous rasters.
type Kind int

const (
	// Discrete rasters hold uint16 values with 0 as the background sentinel
	Discrete Kind = iota
	// Continuous rasters hold float64 values with NaN as the sentinel
	Continuous
)

func (k Kind) String() string {
	if k == Discrete {
		return "discrete"
	}
	return "continuous"
}

// MaxDiscrete is the largest value a discrete raster cell can hold
const MaxDiscrete = math.MaxUint16

// Raster is a flatmap: rows index contour offset, columns index slices, and an
// optional trailing dimension holds channels. Cells default to the sentinel.
type Raster struct {
	Kind     Kind
	Rows     int
	Cols     int
	Channels int

	discrete   []uint16
	continuous []float64
}

// NewRaster allocates a raster with every cell set to the sentinel.
func NewRaster(kind Kind, rows, cols, channels int) *Raster {
	if channels < 1 {
		channels = 1
	}
	r := &Raster{Kind: kind, Rows: rows, Cols: cols, Channels: channels}
	n := rows * cols * channels
	if kind == Discrete {
		r.discrete = make([]uint16, n)
	} else {
		r.continuous = make([]float64, n)
		for i := range r.continuous {
			r.continuous[i] = math.NaN()
		}
	}
	return r
}

// Sentinel returns the no-data value of the raster's kind
func (r *Raster) Sentinel() float64 {
	if r.Kind == Discrete {
		return 0
	}
	return math.NaN()
}

func (r *Raster) index(row, col, ch int) int {
	return (row*r.Cols+col)*r.Channels + ch
}

// Contains reports whether a cell lies inside the raster.
func (r *Raster) Contains(row, col int) bool {
	return row >= 0 && row < r.Rows && col >= 0 && col < r.Cols
}

// At returns a cell value as float64.
func (r *Raster) At(row, col, ch int) float64 {
	i := r.index(row, col, ch)
	if r.Kind == Discrete {
		return float64(r.discrete[i])
	}
	return r.continuous[i]
}

// IsSentinel reports whether a cell holds no data
func (r *Raster) IsSentinel(row, col, ch int) bool {
	v := r.At(row, col, ch)
	if r.Kind == Discrete {
		return v == 0
	}
	return math.IsNaN(v)
}

// Set writes a cell. Discrete values are rounded and clamped to [0, MaxDiscrete].
// Rasters are written only while they are being built.
func (r *Raster) Set(row, col, ch int, v float64) {
	i := r.index(row, col, ch)
	if r.Kind == Continuous {
		r.continuous[i] = v
		return
	}
	switch {
	case math.IsNaN(v) || v <= 0:
		r.discrete[i] = 0
	case v >= MaxDiscrete:
		r.discrete[i] = MaxDiscrete
	default:
		r.discrete[i] = uint16(math.Round(v))
	}
}

// Column returns one channel of a column, top row first.
func (r *Raster) Column(col, ch int) []float64 {
	out := make([]float64, r.Rows)
	for row := range out {
		out[row] = r.At(row, col, ch)
	}
	return out
}

// Range returns the smallest and largest non-sentinel values of a channel.
// ok is false when the channel holds no data.
func (r *Raster) Range(ch int) (lo, hi float64, ok bool) {
	var vals []float64
	for row := 0; row < r.Rows; row++ {
		for col := 0; col < r.Cols; col++ {
			if !r.IsSentinel(row, col, ch) {
				vals = append(vals, r.At(row, col, ch))
			}
		}
	}
	if len(vals) == 0 {
		return 0, 0, false
	}
	return floats.Min(vals), floats.Max(vals), true
}
