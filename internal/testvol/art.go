// Package testvol builds small label volumes from ASCII pictures for tests.
package testvol

import (
	"fmt"

	"sliceflatmap/internal/models"
)

// FromArt builds a label volume from one picture per slice. '.' is background and
// the digits 1-9 are label IDs. All pictures must have the same shape.
func FromArt(slices ...[]string) (*models.LabelVolume, error) {
	if len(slices) == 0 || len(slices[0]) == 0 {
		return nil, fmt.Errorf("empty picture")
	}
	rows, cols := len(slices[0]), len(slices[0][0])
	v := models.NewLabelVolume(len(slices), rows, cols)
	for s, art := range slices {
		if len(art) != rows {
			return nil, fmt.Errorf("slice %d has %d rows, want %d", s, len(art), rows)
		}
		for r, line := range art {
			if len(line) != cols {
				return nil, fmt.Errorf("slice %d row %d has width %d, want %d", s, r, len(line), cols)
			}
			for c, ch := range line {
				switch {
				case ch == '.':
				case ch >= '1' && ch <= '9':
					v.Set(s, r, c, uint32(ch-'0'))
				default:
					return nil, fmt.Errorf("slice %d row %d: unexpected %q", s, r, ch)
				}
			}
		}
	}
	return v, nil
}

// MustFromArt is FromArt that panics on malformed pictures.
func MustFromArt(slices ...[]string) *models.LabelVolume {
	v, err := FromArt(slices...)
	if err != nil {
		panic(err)
	}
	return v
}

// Empty returns a blank picture of the given shape.
func Empty(rows, cols int) []string {
	line := make([]byte, cols)
	for i := range line {
		line[i] = '.'
	}
	out := make([]string, rows)
	for i := range out {
		out[i] = string(line)
	}
	return out
}

// Diamond is a 5x5 slice whose traced contour has exactly five points:
// (1,1)=9, (1,2)=3, (2,3)=2, (3,2)=4, (2,1)=5 in trace order.
var Diamond = []string{
	".....",
	".93..",
	".5.2.",
	"..4..",
	".....",
}

// Ring is a 5x5 slice whose traced contour is the eight pixels around the centre,
// incision 9 at (2,1) and origin 2 at (2,3).
var Ring = []string{
	".....",
	".111.",
	".9.2.",
	".111.",
	".....",
}
