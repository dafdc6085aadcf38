package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(10*y + x), G: 1, B: 2, A: 255})
		}
	}
	return img
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	img, err := Decode(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(2), img.Width)
	require.Equal(t, uint32(3), img.Height)
	require.Len(t, img.Pixels, 2*3*4)
	require.Equal(t, []byte{21, 1, 2, 255}, img.Pixels[5*4:6*4])
	require.False(t, img.HasTransparency)
}

func TestDecodeBMPFlipped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, testImage()))

	img, err := Decode(&buf, &ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	// The last source row comes first.
	require.Equal(t, byte(20), img.Pixels[0])
	require.Equal(t, byte(0), img.Pixels[len(img.Pixels)-8])
}

func TestDecodeScalesDown(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 64, 16))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 128
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := Decode(&buf, &ImageResourceParams{MaxDimension: 16})
	require.NoError(t, err)
	require.Equal(t, uint32(16), img.Width)
	require.Equal(t, uint32(4), img.Height)
	require.True(t, img.HasTransparency)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not an image")), nil)
	require.Error(t, err)
}

func TestImageLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bricks.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, testImage()))
	require.NoError(t, f.Close())

	loader := &ImageLoader{}
	img, err := loader.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "bricks", img.Name)
	require.Equal(t, path, img.Path)

	_, err = loader.Load(filepath.Join(dir, "missing.png"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsImageFile(t *testing.T) {
	require.True(t, IsImageFile("a/b/stone.PNG"))
	require.True(t, IsImageFile("leaf.webp"))
	require.False(t, IsImageFile("shader.shadercfg"))
	require.Equal(t, "stone", ImageName("a/b/stone.png"))
}
