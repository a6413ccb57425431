package imaging

import (
	"fmt"
	"image"
	"image/color"
)

// Raster is an 8-bit, row-major, channel-interleaved pixel grid.
//
// Three-channel rasters are stored in BGR order, the layout the cascade
// backends expect. One-channel rasters hold luminance.
type Raster struct {
	// Width is the number of columns in pixels.
	Width int

	// Height is the number of rows in pixels.
	Height int

	// Channels is the number of samples per pixel: 1 (gray) or 3 (BGR).
	Channels int

	// Pix holds Width*Height*Channels samples.
	Pix []uint8

	// Scale is the number of source-image pixels per raster pixel. It is 1
	// unless the decoder downscaled the image.
	Scale float64
}

// NewRaster allocates a zeroed raster.
func NewRaster(width, height, channels int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
		Scale:    1,
	}
}

// Validate checks the raster invariants.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("nil raster")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("raster dimensions must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.Channels <= 0 {
		return fmt.Errorf("raster channel count must be positive, got %d", r.Channels)
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return fmt.Errorf("raster data length %d does not match %dx%dx%d", len(r.Pix), r.Width, r.Height, r.Channels)
	}
	return nil
}

// Bounds returns the raster rectangle anchored at the origin.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// ToImage converts the raster to a standard library image: *image.Gray for
// one channel, *image.NRGBA (opaque) for BGR.
func (r *Raster) ToImage() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	switch r.Channels {
	case 1:
		img := image.NewGray(r.Bounds())
		copy(img.Pix, r.Pix)
		return img, nil
	case 3:
		img := image.NewNRGBA(r.Bounds())
		for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
			img.Pix[j+0] = r.Pix[i+2]
			img.Pix[j+1] = r.Pix[i+1]
			img.Pix[j+2] = r.Pix[i+0]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("cannot convert %d-channel raster to an image", r.Channels)
	}
}

// fromImage rasterizes img. Gray colour models become one channel, everything
// else three BGR channels with alpha dropped.
func fromImage(img image.Image, gray bool) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if gray {
		r := NewRaster(w, h, 1)
		if g, ok := img.(*image.Gray); ok {
			for y := 0; y < h; y++ {
				off := g.PixOffset(b.Min.X, b.Min.Y+y)
				copy(r.Pix[y*w:(y+1)*w], g.Pix[off:off+w])
			}
			return r
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				r.Pix[y*w+x] = c.Y
			}
		}
		return r
	}

	r := NewRaster(w, h, 3)
	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			off := n.PixOffset(b.Min.X, b.Min.Y+y)
			row := n.Pix[off : off+w*4]
			for x := 0; x < w; x++ {
				i := (y*w + x) * 3
				r.Pix[i+0] = row[x*4+2]
				r.Pix[i+1] = row[x*4+1]
				r.Pix[i+2] = row[x*4+0]
			}
		}
		return r
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*w + x) * 3
			r.Pix[i+0] = c.B
			r.Pix[i+1] = c.G
			r.Pix[i+2] = c.R
		}
	}
	return r
}
