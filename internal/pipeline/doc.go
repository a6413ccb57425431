// Package pipeline wires decoding, preprocessing and detection into the
// object count call.
//
// Run returns a tagged Result so each stage stays honestly fallible. The
// collapse of data failures into a zero count happens only in CountObjects,
// which logs one diagnostic per failed call. Call adds the host argument
// checks: a malformed call shape is the one failure that is returned as an
// error (ErrCallerContract) instead of a zero.
//
// # Stages
//
//  1. hex: image text to bytes (ErrMalformedInput)
//  2. decode: bytes to a BGR raster (imaging.ErrDecode)
//  3. preprocess: luma and histogram equalization (imaging.ErrPreprocess)
//  4. load_model: cascade file to model (detection.ErrModelLoad)
//  5. detect: scan and group (detection.ErrDetect, ErrTimeout)
package pipeline
