package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"math"

	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrDecode reports bytes that are not a supported, well-formed image.
var ErrDecode = errors.New("image decode failed")

// MaxPixels bounds the width*height an image header may declare. Larger
// images are rejected before any pixel memory is allocated.
const MaxPixels = 1 << 26

// DecodeOptions tunes Decode.
type DecodeOptions struct {
	// MaxDimension downscales images whose longer side exceeds it, keeping
	// the aspect ratio. Zero leaves the image at full resolution.
	MaxDimension int

	// ForceColor expands grayscale sources to three BGR channels so every
	// raster can go through Normalize.
	ForceColor bool
}

// Decode parses an encoded PNG, JPEG, GIF, BMP, TIFF or WebP image into a
// Raster at full resolution.
func Decode(data []byte) (*Raster, error) {
	return DecodeWithOptions(data, DecodeOptions{})
}

// DecodeImage parses an encoded image without rasterizing it.
//
// Empty input, input that no registered format accepts and images whose
// header declares more than MaxPixels all wrap ErrDecode. The format name reported by the image package is returned.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: %s image has no pixels", ErrDecode, format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %s image is %dx%d, above the %d pixel limit",
			ErrDecode, format, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: %s image has no pixels", ErrDecode, format)
	}
	return img, format, nil
}

// DecodeWithOptions parses an encoded image into a Raster.
//
// The channel count follows the source colour model: grayscale sources give a
// one-channel raster (unless opts.ForceColor is set), everything else a
// three-channel BGR raster. Alpha is
// discarded. Nothing is returned on failure; there are no partial rasters.
func DecodeWithOptions(data []byte, opts DecodeOptions) (*Raster, error) {
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	gray := isGrayModel(img.ColorModel()) && !opts.ForceColor
	scale := 1.0

	if opts.MaxDimension > 0 {
		b := img.Bounds()
		longer := max(b.Dx(), b.Dy())
		if longer > opts.MaxDimension {
			f := float64(opts.MaxDimension) / float64(longer)
			w := max(1, int(math.Round(float64(b.Dx())*f)))
			h := max(1, int(math.Round(float64(b.Dy())*f)))
			img = transform.Resize(img, w, h, transform.Linear)
			scale = float64(b.Dx()) / float64(w)
		}
	}

	r := fromImage(img, gray)
	r.Scale = scale
	return r, nil
}

func isGrayModel(m color.Model) bool {
	return m == color.GrayModel || m == color.Gray16Model
}
