package imaging

import (
	"errors"
	"fmt"
	"math"
)

// ErrPreprocess reports a raster whose layout the preprocessor cannot handle.
var ErrPreprocess = errors.New("preprocess failed")

// BT.601 luma weights in 14-bit fixed point, the same constants OpenCV uses
// for its BGR->GRAY conversion.
const (
	lumaShift = 14
	lumaB     = 1868
	lumaG     = 9617
	lumaR     = 4899
	lumaRound = 1 << (lumaShift - 1)
)

// Normalize prepares a BGR raster for cascade detection: luma conversion
// followed by histogram equalization.
//
// The source must have exactly three channels. The result has the same
// dimensions, one channel and 8-bit samples. Normalize is pure: the source is
// not modified and equal inputs give equal outputs.
func Normalize(src *Raster) (*Raster, error) {
	gray, err := Grayscale(src)
	if err != nil {
		return nil, err
	}
	return EqualizeHist(gray)
}

// Grayscale converts a BGR raster to one-channel luma.
func Grayscale(src *Raster) (*Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocess, err)
	}
	if src.Channels != 3 {
		return nil, fmt.Errorf("%w: expected 3-channel BGR raster, got %d channel(s)", ErrPreprocess, src.Channels)
	}

	dst := NewRaster(src.Width, src.Height, 1)
	dst.Scale = src.Scale
	for i, j := 0, 0; j < len(dst.Pix); i, j = i+3, j+1 {
		b := int(src.Pix[i+0])
		g := int(src.Pix[i+1])
		r := int(src.Pix[i+2])
		dst.Pix[j] = uint8((b*lumaB + g*lumaG + r*lumaR + lumaRound) >> lumaShift)
	}
	return dst, nil
}

// Histogram counts the samples of a one-channel raster per intensity.
func Histogram(r *Raster) [256]int {
	var hist [256]int
	for _, v := range r.Pix {
		hist[v]++
	}
	return hist
}

// EqualizeHist spreads the intensities of a one-channel raster across the
// full 0-255 range.
//
// The lowest occupied intensity maps to 0 and every other intensity v maps to
// round(255 * (cdf(v) - hist[lowest]) / (N - hist[lowest])). A raster holding a
// single intensity is returned unchanged.
func EqualizeHist(src *Raster) (*Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocess, err)
	}
	if src.Channels != 1 {
		return nil, fmt.Errorf("%w: expected 1-channel raster, got %d channel(s)", ErrPreprocess, src.Channels)
	}

	dst := NewRaster(src.Width, src.Height, 1)
	dst.Scale = src.Scale

	hist := Histogram(src)
	total := len(src.Pix)

	first := 0
	for hist[first] == 0 {
		first++
	}
	if hist[first] == total {
		copy(dst.Pix, src.Pix)
		return dst, nil
	}

	var lut [256]uint8
	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for v := first + 1; v < 256; v++ {
		sum += hist[v]
		lut[v] = uint8(min(255, math.RoundToEven(float64(sum)*scale)))
	}

	for i, v := range src.Pix {
		dst.Pix[i] = lut[v]
	}
	return dst, nil
}
