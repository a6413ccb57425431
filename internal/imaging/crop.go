package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ImageResult contains an encoded image
type ImageResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropResult is one cropped detection
type CropResult struct {
	Index  int             `json:"index"`
	Region image.Rectangle `json:"-"`
	X      int             `json:"x"`
	Y      int             `json:"y"`
	ImageResult
}

// EncodePNG encodes img as base64 PNG
func EncodePNG(img image.Image) (*ImageResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &ImageResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// EncodeRaster encodes a raster as base64 PNG
func EncodeRaster(r *Raster) (*ImageResult, error) {
	img, err := r.ToImage()
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// CropRegions extracts each box from img. Boxes are clipped to the image
// bounds; boxes entirely outside are skipped. When maxSize > 0, crops larger
// than maxSize on either side are shrunk to fit, keeping the aspect ratio.
func CropRegions(img image.Image, boxes []image.Rectangle, maxSize int) ([]CropResult, error) {
	bounds := img.Bounds()
	results := make([]CropResult, 0, len(boxes))

	for i, box := range boxes {
		clipped := box.Intersect(bounds)
		if clipped.Empty() {
			continue
		}

		cropped := imaging.Crop(img, clipped)
		if maxSize > 0 && (cropped.Bounds().Dx() > maxSize || cropped.Bounds().Dy() > maxSize) {
			cropped = imaging.Fit(cropped, maxSize, maxSize, imaging.Lanczos)
		}

		encoded, err := EncodePNG(cropped)
		if err != nil {
			return nil, fmt.Errorf("crop %d: %w", i, err)
		}
		results = append(results, CropResult{
			Index:       i,
			Region:      clipped,
			X:           clipped.Min.X,
			Y:           clipped.Min.Y,
			ImageResult: *encoded,
		})
	}

	return results, nil
}
