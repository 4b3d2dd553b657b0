package volumeio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sliceflatmap/internal/models"
	"sliceflatmap/internal/testvol"
)

func TestExtractNumber(t *testing.T) {
	assert.Equal(t, 12, extractNumber("slice_012.png"))
	assert.Equal(t, 0, extractNumber("cover.png"))
}

func TestSaveAndLoadLabels(t *testing.T) {
	dir := t.TempDir()
	v := testvol.MustFromArt(testvol.Ring, testvol.Diamond)
	v.Set(0, 0, 0, 1000)
	require.NoError(t, SaveLabels(v, dir))

	loaded, err := LoadLabels(dir)
	require.NoError(t, err)
	assert.Equal(t, v.Slices, loaded.Slices)
	assert.Equal(t, v.Rows, loaded.Rows)
	assert.Equal(t, v.Cols, loaded.Cols)
	assert.Equal(t, v.Data, loaded.Data)
}

func TestSliceOrderFollowsFilenameNumbers(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []int{10, 2, 1} {
		img := image.NewGray(image.Rect(0, 0, 2, 2))
		img.SetGray(0, 0, color.Gray{Y: uint8(n)})
		writeTestPNG(t, filepath.Join(dir, fmt.Sprintf("s%d.png", n)), img)
	}

	v, err := LoadLabels(dir)
	require.NoError(t, err)
	require.Equal(t, 3, v.Slices)
	assert.Equal(t, uint32(1), v.At(0, 0, 0))
	assert.Equal(t, uint32(2), v.At(1, 0, 0))
	assert.Equal(t, uint32(10), v.At(2, 0, 0))
}

func TestLoadLabelsRejectsColourAndMismatch(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "s1.png"), image.NewRGBA(image.Rect(0, 0, 2, 2)))
	_, err := LoadLabels(dir)
	assert.Error(t, err)

	dir = t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "s1.png"), image.NewGray(image.Rect(0, 0, 2, 2)))
	writeTestPNG(t, filepath.Join(dir, "s2.png"), image.NewGray(image.Rect(0, 0, 3, 2)))
	_, err = LoadLabels(dir)
	assert.Error(t, err)

	_, err = LoadLabels(t.TempDir())
	assert.Error(t, err)
}

func TestLoadIntensity(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray16(image.Rect(0, 0, 3, 1))
	img.SetGray16(1, 0, color.Gray16{Y: 65535})
	writeTestPNG(t, filepath.Join(dir, "i0.png"), img)

	v, err := LoadIntensity(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.At(0, 0, 0))
	assert.InDelta(t, 1.0, v.At(0, 0, 1), 1e-9)
}

func TestSaveLabelsRejectsWideLabels(t *testing.T) {
	v := models.NewLabelVolume(1, 1, 1)
	v.Set(0, 0, 0, 70000)
	assert.Error(t, SaveLabels(v, t.TempDir()))
}

func writeTestPNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}
