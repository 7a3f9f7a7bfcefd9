package frame

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	switch filepath.Ext(path) {
	case ".png":
		require.NoError(t, png.Encode(f, img))
	case ".bmp":
		require.NoError(t, bmp.Encode(f, img))
	case ".tif":
		require.NoError(t, tiff.Encode(f, img, nil))
	}
}

func TestImageToMatBGROrder(t *testing.T) {
	img := solidImage(4, 3, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	m := ImageToMat(img)
	defer m.Close()

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 4, m.Cols())
	assert.Equal(t, 3, m.Channels())
	assert.Equal(t, uint8(50), m.GetUCharAt(1, 2*3+0))
	assert.Equal(t, uint8(100), m.GetUCharAt(1, 2*3+1))
	assert.Equal(t, uint8(200), m.GetUCharAt(1, 2*3+2))

	back, err := MatToImage(m)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, back.Pix)

	_, err = MatToImage(gocv.NewMat())
	assert.Error(t, err)
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "002.bmp"), solidImage(8, 6, color.RGBA{G: 255, A: 255}))
	writeImage(t, filepath.Join(dir, "001.png"), solidImage(8, 6, color.RGBA{R: 255, A: 255}))
	writeImage(t, filepath.Join(dir, "003.tif"), solidImage(8, 6, color.RGBA{B: 255, A: 255}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	src, err := OpenDirectory(dir)
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, 3, src.Len())

	m := gocv.NewMat()
	defer m.Close()

	// name order: png (red), bmp (green), tif (blue)
	wantBGR := [][3]uint8{{0, 0, 255}, {0, 255, 0}, {255, 0, 0}}
	for i, want := range wantBGR {
		require.NoError(t, src.Read(&m), "frame %d", i)
		assert.Equal(t, 6, m.Rows())
		assert.Equal(t, 8, m.Cols())
		got := [3]uint8{m.GetUCharAt(0, 0), m.GetUCharAt(0, 1), m.GetUCharAt(0, 2)}
		assert.Equal(t, want, got, "frame %d", i)
	}

	err = src.Read(&m)
	assert.True(t, errors.Is(err, ErrEndOfStream))
}

func TestDirectoryMissing(t *testing.T) {
	_, err := OpenDirectory(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestDirectoryCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not a png"), 0644))
	src, err := OpenDirectory(dir)
	require.NoError(t, err)

	m := gocv.NewMat()
	defer m.Close()
	err = src.Read(&m)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEndOfStream))
}

func TestMatsSource(t *testing.T) {
	a := ImageToMat(solidImage(2, 2, color.RGBA{R: 10, A: 255}))
	defer a.Close()
	b := ImageToMat(solidImage(2, 2, color.RGBA{R: 20, A: 255}))
	defer b.Close()

	src := NewMats(a, b)
	m := gocv.NewMat()
	defer m.Close()
	require.NoError(t, src.Read(&m))
	assert.Equal(t, uint8(10), m.GetUCharAt(0, 2))
	require.NoError(t, src.Read(&m))
	assert.Equal(t, uint8(20), m.GetUCharAt(0, 2))
	assert.ErrorIs(t, src.Read(&m), ErrEndOfStream)
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("a/B.TIFF"))
	assert.True(t, IsSupportedFormat("x.bmp"))
	assert.False(t, IsSupportedFormat("x.gif"))
}

func TestOpenPrefersDirectory(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), solidImage(4, 4, color.RGBA{R: 255, A: 255}))

	src, err := Open(dir, CameraOptions{Device: "does-not-exist"})
	require.NoError(t, err)
	defer src.Close()
	_, ok := src.(*Directory)
	assert.True(t, ok)

	_, err = Open(filepath.Join(dir, "missing"), CameraOptions{})
	assert.Error(t, err)
}
