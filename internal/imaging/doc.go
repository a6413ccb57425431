// Package imaging decodes and normalizes images for cascade detection.
//
// Images travel between stages as a Raster: an 8-bit, row-major grid with one
// (gray) or three (BGR) interleaved channels. Every stage returns a new
// Raster and never modifies its input, so rasters can be shared read-only.
//
// # Decoding
//
// Decode accepts PNG, JPEG, GIF, BMP, TIFF and WebP. Grayscale sources decode
// to one channel, everything else to three BGR channels. DecodeWithOptions can
// expand grayscale to BGR (ForceColor) and downscale large images
// (MaxDimension). Empty or malformed input fails with an error wrapping
// ErrDecode.
//
// # Normalization
//
// Normalize converts a BGR raster to luma (BT.601 weights, OpenCV fixed-point
// rounding) and equalizes its histogram. Rasters that are not three-channel
// fail with an error wrapping ErrPreprocess.
//
// # Rendering
//
// Annotate, CropRegions and EncodeRaster turn rasters and detection boxes
// back into base64 PNG payloads for the MCP tools.
package imaging
