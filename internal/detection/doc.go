// Package detection runs cascade object detectors over rasters and turns the
// raw window hits into one region per object.
//
// # Backends
//
// A backend is a Loader registered by name. Two are built in:
//
//   - "pigo": pure Go, reads pigo binary cascades (github.com/esimov/pigo).
//   - "opencv": reads OpenCV Haar/LBP XML cascades through gocv. It needs a
//     build with -tags gocv; otherwise loading reports ErrModelLoad.
//
// Loaded models are read-only and safe for concurrent Detect calls.
//
// # Scanning
//
// Detection is a multi-scale sliding-window scan. The window side starts at
// Params.MinSize and grows by Params.ScaleFactor until it exceeds
// Params.MaxSize or the shorter image side. At each scale the window moves by
// Params.ShiftFactor times its side.
//
// # Grouping
//
// Raw hits are merged with GroupRegions. A group is accepted when at least
// Params.MinNeighbors hits support it, and the object count is the number of
// accepted groups.
//
// # Coordinate System
//
// Regions use the image convention: origin top-left, X rightward, Y downward.
//
// # Model Cache
//
// ModelCache keeps loaded models by path and reloads a model when its file
// changes on disk.
package detection
