package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type ImageResourceParams struct {
	// Store rows bottom first.
	FlipY bool
	// Images larger than this on either side are scaled down to fit. 0 keeps
	// the original size.
	MaxDimension uint32
}

// Image is a decoded image as tightly packed, non premultiplied RGBA8.
type Image struct {
	Name            string
	Path            string
	Width           uint32
	Height          uint32
	Pixels          []byte
	HasTransparency bool
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile reports whether path has an extension the loader can decode.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ImageName returns the texture name for path: the file name without its
// extension.
func ImageName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params *ImageResourceParams) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	defer file.Close()

	img, err := Decode(file, params)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	img.Name = ImageName(path)
	img.Path = path
	return img, nil
}

func (il *ImageLoader) Unload(img *Image) error {
	img.Pixels = nil
	return nil
}

// Decode reads any registered image format and converts it to RGBA8.
func Decode(r io.Reader, params *ImageResourceParams) (*Image, error) {
	if params == nil {
		params = &ImageResourceParams{}
	}
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, errors.Newf("%s image has no pixels", format)
	}

	rgba := toNRGBA(src, params.MaxDimension)
	if params.FlipY {
		flipRows(rgba)
	}

	size := rgba.Rect.Size()
	return &Image{
		Width:           uint32(size.X),
		Height:          uint32(size.Y),
		Pixels:          rgba.Pix,
		HasTransparency: hasTransparency(rgba.Pix),
	}, nil
}

func toNRGBA(src image.Image, maxDim uint32) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > int(maxDim) || h > int(maxDim)) {
		w, h = fit(w, h, int(maxDim))
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		return dst
	}

	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*w {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// fit scales w x h down so the longer side is limit, keeping the aspect.
func fit(w, h, limit int) (int, int) {
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func flipRows(img *image.NRGBA) {
	h := img.Rect.Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}

func hasTransparency(pix []byte) bool {
	for i := 3; i < len(pix); i += 4 {
		if pix[i] < 255 {
			return true
		}
	}
	return false
}
