// Package volumeio loads label and intensity volumes from directories of 2D slice
// images, one image per slice, ordered by the number embedded in each filename.
package volumeio

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"sliceflatmap/internal/models"
)

// SliceFiles lists the image files of a directory in slice order.
func SliceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no slice images found in %s", dir)
	}

	// Sort by the number in the filename so slice_10 follows slice_9
	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	for i := range files {
		files[i] = filepath.Join(dir, files[i])
	}
	return files, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage decodes one PNG or JPEG slice
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Decode(file)
	default:
		return jpeg.Decode(file)
	}
}

// LoadLabels reads a label volume. Slices must be lossless grayscale or paletted
// images; the gray value (or palette index) is the label ID.
func LoadLabels(dir string) (*models.LabelVolume, error) {
	files, err := SliceFiles(dir)
	if err != nil {
		return nil, err
	}

	var v *models.LabelVolume
	for s, f := range files {
		img, err := loadImage(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load slice %s", f)
		}
		b := img.Bounds()
		if v == nil {
			v = models.NewLabelVolume(len(files), b.Dy(), b.Dx())
		}
		if b.Dy() != v.Rows || b.Dx() != v.Cols {
			return nil, errors.Errorf("slice %s is %dx%d, expected %dx%d", f, b.Dy(), b.Dx(), v.Rows, v.Cols)
		}
		if err := copyLabels(v.Slice(s), img); err != nil {
			return nil, errors.Wrapf(err, "slice %s", f)
		}
	}
	return v, nil
}

func copyLabels(dst []uint32, img image.Image) error {
	b := img.Bounds()
	w := b.Dx()
	switch m := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < w; x++ {
				dst[y*w+x] = uint32(m.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < w; x++ {
				dst[y*w+x] = uint32(m.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Paletted:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < w; x++ {
				dst[y*w+x] = uint32(m.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			}
		}
	default:
		return errors.Errorf("label slices must be grayscale or paletted, got %T", img)
	}
	return nil
}

// LoadIntensity reads an intensity volume. Any image type is accepted; samples are
// the 16-bit luminance scaled to [0, 1].
func LoadIntensity(dir string) (*models.IntensityVolume, error) {
	files, err := SliceFiles(dir)
	if err != nil {
		return nil, err
	}

	var v *models.IntensityVolume
	for s, f := range files {
		img, err := loadImage(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load slice %s", f)
		}
		b := img.Bounds()
		if v == nil {
			v = models.NewIntensityVolume(len(files), b.Dy(), b.Dx())
		}
		if b.Dy() != v.Rows || b.Dx() != v.Cols {
			return nil, errors.Errorf("slice %s is %dx%d, expected %dx%d", f, b.Dy(), b.Dx(), v.Rows, v.Cols)
		}
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				lum := (19595*r + 38470*g + 7471*bl + 1<<15) >> 16
				v.Set(s, y, x, float64(lum)/65535.0)
			}
		}
	}
	return v, nil
}

// SaveLabels writes a label volume as 16-bit grayscale PNG slices named
// slice_000.png, slice_001.png, ...
func SaveLabels(v *models.LabelVolume, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	for s := 0; s < v.Slices; s++ {
		img := image.NewGray16(image.Rect(0, 0, v.Cols, v.Rows))
		for r := 0; r < v.Rows; r++ {
			for c := 0; c < v.Cols; c++ {
				l := v.At(s, r, c)
				if l > 0xffff {
					return errors.Errorf("label %d at slice %d does not fit a 16-bit image", l, s)
				}
				i := img.PixOffset(c, r)
				img.Pix[i] = uint8(l >> 8)
				img.Pix[i+1] = uint8(l)
			}
		}
		if err := writePNG(filepath.Join(dir, sliceName(s)), img); err != nil {
			return err
		}
	}
	return nil
}

func sliceName(s int) string {
	return "slice_" + leftPad(strconv.Itoa(s), 3) + ".png"
}

func leftPad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create image file")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to encode image")
	}
	return f.Close()
}
