package models

import "fmt"

// LabelVolume is a read-only stack of integer label slices.
//
// Axis 0 is the slice axis; axes 1 and 2 are the in-slice row and column axes.
// Data is stored in row-major order: index = (slice*Rows + row)*Cols + col.
// Label 0 is background.
type LabelVolume struct {
	// Data holds one label ID per voxel
	Data []uint32

	// Slices, Rows and Cols are the extents along the three axes
	Slices int
	Rows   int
	Cols   int
}

// NewLabelVolume allocates an all-background label volume.
func NewLabelVolume(slices, rows, cols int) *LabelVolume {
	return &LabelVolume{
		Data:   make([]uint32, slices*rows*cols),
		Slices: slices,
		Rows:   rows,
		Cols:   cols,
	}
}

// Validate checks that the extents agree with the data length.
func (v *LabelVolume) Validate() error {
	if v.Slices <= 0 || v.Rows <= 0 || v.Cols <= 0 {
		return fmt.Errorf("invalid label volume extents %dx%dx%d", v.Slices, v.Rows, v.Cols)
	}
	if len(v.Data) != v.Slices*v.Rows*v.Cols {
		return fmt.Errorf("label volume holds %d voxels, extents %dx%dx%d require %d",
			len(v.Data), v.Slices, v.Rows, v.Cols, v.Slices*v.Rows*v.Cols)
	}
	return nil
}

// Index returns the flat index of a voxel
func (v *LabelVolume) Index(slice, row, col int) int {
	return (slice*v.Rows+row)*v.Cols + col
}

// InBounds reports whether the voxel coordinate lies inside the volume.
func (v *LabelVolume) InBounds(slice, row, col int) bool {
	return slice >= 0 && slice < v.Slices && row >= 0 && row < v.Rows && col >= 0 && col < v.Cols
}

// At returns the label at a voxel. It panics on out-of-range coordinates.
func (v *LabelVolume) At(slice, row, col int) uint32 {
	if !v.InBounds(slice, row, col) {
		panic(fmt.Sprintf("voxel %d,%d,%d out of range (extents %d, %d, %d)",
			slice, row, col, v.Slices, v.Rows, v.Cols))
	}
	return v.Data[v.Index(slice, row, col)]
}

// Set writes a label. Only volume builders use it; the pipeline never mutates a volume.
func (v *LabelVolume) Set(slice, row, col int, label uint32) {
	if !v.InBounds(slice, row, col) {
		panic(fmt.Sprintf("voxel %d,%d,%d out of range (extents %d, %d, %d)",
			slice, row, col, v.Slices, v.Rows, v.Cols))
	}
	v.Data[v.Index(slice, row, col)] = label
}

// Slice returns the labels of one slice as a row-major view into Data.
func (v *LabelVolume) Slice(slice int) []uint32 {
	n := v.Rows * v.Cols
	return v.Data[slice*n : (slice+1)*n]
}

// Labels returns the distinct labels present in the volume, background included.
func (v *LabelVolume) Labels() []uint32 {
	seen := make(map[uint32]bool)
	var labels []uint32
	for _, l := range v.Data {
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	return labels
}

// IntensityVolume is a co-registered scalar volume sampled by the intensity channel.
// It uses the same axis order and layout as LabelVolume.
type IntensityVolume struct {
	Data   []float64
	Slices int
	Rows   int
	Cols   int
}

// NewIntensityVolume allocates a zero-filled intensity volume.
func NewIntensityVolume(slices, rows, cols int) *IntensityVolume {
	return &IntensityVolume{
		Data:   make([]float64, slices*rows*cols),
		Slices: slices,
		Rows:   rows,
		Cols:   cols,
	}
}

// InBounds reports whether the voxel coordinate lies inside the volume.
func (v *IntensityVolume) InBounds(slice, row, col int) bool {
	return slice >= 0 && slice < v.Slices && row >= 0 && row < v.Rows && col >= 0 && col < v.Cols
}

// At returns the sample at a voxel. It panics on out-of-range coordinates.
func (v *IntensityVolume) At(slice, row, col int) float64 {
	if !v.InBounds(slice, row, col) {
		panic(fmt.Sprintf("voxel %d,%d,%d out of range (extents %d, %d, %d)",
			slice, row, col, v.Slices, v.Rows, v.Cols))
	}
	return v.Data[(slice*v.Rows+row)*v.Cols+col]
}

// Set writes a sample.
func (v *IntensityVolume) Set(slice, row, col int, value float64) {
	v.Data[(slice*v.Rows+row)*v.Cols+col] = value
}
