// Package visualization renders flatmap rasters as images: discrete channels keep
// their exact values in 16-bit grayscale, continuous channels are stretched to the
// channel's value range with missing cells drawn black.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"sliceflatmap/pkg/flatmap"
)

// Viewer turns the channels of one raster into images.
type Viewer struct {
	raster *flatmap.Raster

	// name prefixes every file written by SaveChannels
	name string
}

// NewViewer creates a viewer for a raster
func NewViewer(raster *flatmap.Raster, name string) *Viewer {
	return &Viewer{raster: raster, name: name}
}

// ExtractChannel renders one channel. Rows of the image are raster rows (contour
// offsets) and columns are slices.
func (v *Viewer) ExtractChannel(ch int) (image.Image, error) {
	r := v.raster
	if ch < 0 || ch >= r.Channels {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", ch, r.Channels)
	}

	img := image.NewGray16(image.Rect(0, 0, r.Cols, r.Rows))
	if r.Kind == flatmap.Discrete {
		for y := 0; y < r.Rows; y++ {
			for x := 0; x < r.Cols; x++ {
				img.SetGray16(x, y, color.Gray16{Y: uint16(r.At(y, x, ch))})
			}
		}
		return img, nil
	}

	lo, hi, ok := r.Range(ch)
	if !ok {
		return img, nil
	}
	span := hi - lo
	for y := 0; y < r.Rows; y++ {
		for x := 0; x < r.Cols; x++ {
			if r.IsSentinel(y, x, ch) {
				continue
			}
			// Data cells start at 1 so they stay distinguishable from missing ones
			scaled := 1.0
			if span > 0 {
				scaled = 1 + (r.At(y, x, ch)-lo)/span*65534
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Max(1, math.Min(65535, math.Round(scaled))))})
		}
	}
	return img, nil
}

// SaveImage writes an image, choosing PNG or JPEG from the file extension.
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to encode %s", filename)
	}
	return file.Close()
}

// SaveChannels renders every channel into outputDir as <name>.png, or
// <name>_<ch>.png for multi-channel rasters, and returns the written paths.
func (v *Viewer) SaveChannels(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for ch := 0; ch < v.raster.Channels; ch++ {
		img, err := v.ExtractChannel(ch)
		if err != nil {
			return nil, err
		}

		filename := v.name + ".png"
		if v.raster.Channels > 1 {
			filename = fmt.Sprintf("%s_%d.png", v.name, ch)
		}
		path := filepath.Join(outputDir, filename)
		if err := v.SaveImage(img, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
