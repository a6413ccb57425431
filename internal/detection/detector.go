package detection

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/objcount-mcp/internal/imaging"
)

var (
	// ErrModelLoad reports a model path that is missing, unreadable or not a
	// well-formed cascade for the selected backend.
	ErrModelLoad = errors.New("model load failed")

	// ErrDetect reports a failure while scanning an image.
	ErrDetect = errors.New("detection failed")
)

// Region is one accepted detection: a window that survived neighbor grouping.
type Region struct {
	// X is the left edge in pixels.
	X int `json:"x"`

	// Y is the top edge in pixels.
	Y int `json:"y"`

	// Width is the horizontal extent in pixels.
	Width int `json:"width"`

	// Height is the vertical extent in pixels.
	Height int `json:"height"`

	// Neighbors is the number of raw window hits merged into this region.
	// Backends that group internally report 0.
	Neighbors int `json:"neighbors"`

	// Score is the best raw classifier score in the group, when the backend
	// exposes one.
	Score float64 `json:"score"`
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Scaled multiplies the region geometry by f, mapping raster coordinates back
// to source-image coordinates after a downscaled decode.
func (r Region) Scaled(f float64) Region {
	if f == 1 {
		return r
	}
	r.X = int(float64(r.X) * f)
	r.Y = int(float64(r.Y) * f)
	r.Width = int(float64(r.Width) * f)
	r.Height = int(float64(r.Height) * f)
	return r
}

// Params controls the multi-scale sliding-window scan.
type Params struct {
	// ScaleFactor is the window growth per scale step. Must be > 1.
	ScaleFactor float64

	// MinNeighbors is the minimum number of overlapping raw hits a group
	// needs to be accepted. Zero disables grouping.
	MinNeighbors int

	// MinSize is the smallest window side in pixels.
	MinSize int

	// MaxSize is the largest window side in pixels. It is further limited by
	// the shorter image side.
	MaxSize int

	// ShiftFactor is the window step as a fraction of the window side.
	ShiftFactor float64

	// GroupEps is the relative tolerance used to decide whether two raw hits
	// describe the same object.
	GroupEps float64
}

// DefaultParams returns the reference scan settings: growth 1.1, three
// neighbors.
func DefaultParams() Params {
	return Params{
		ScaleFactor:  1.1,
		MinNeighbors: 3,
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		GroupEps:     0.2,
	}
}

// Validate rejects parameters that would stall or break the scan.
func (p Params) Validate() error {
	if p.ScaleFactor <= 1 {
		return fmt.Errorf("scale factor must be > 1, got %g", p.ScaleFactor)
	}
	if p.MinSize <= 0 {
		return fmt.Errorf("min size must be positive, got %d", p.MinSize)
	}
	if int(float64(p.MinSize)*p.ScaleFactor) <= p.MinSize {
		return fmt.Errorf("min size %d does not grow with scale factor %g", p.MinSize, p.ScaleFactor)
	}
	if p.MaxSize < p.MinSize {
		return fmt.Errorf("max size %d is below min size %d", p.MaxSize, p.MinSize)
	}
	if p.MinNeighbors < 0 {
		return fmt.Errorf("min neighbors must be >= 0, got %d", p.MinNeighbors)
	}
	if p.ShiftFactor <= 0 || p.ShiftFactor > 1 {
		return fmt.Errorf("shift factor must be in (0,1], got %g", p.ShiftFactor)
	}
	if p.GroupEps < 0 {
		return fmt.Errorf("group eps must be >= 0, got %g", p.GroupEps)
	}
	return nil
}

// Model is a loaded cascade. Implementations are read-only after loading and
// safe for concurrent Detect calls.
type Model interface {
	// Backend names the loader that produced the model.
	Backend() string

	// Path is the file the model was loaded from.
	Path() string

	// Detect scans img and returns the grouped regions. img is either a
	// one-channel luma raster or a three-channel BGR raster.
	Detect(ctx context.Context, img *imaging.Raster, p Params) ([]Region, error)

	// Close releases native resources, if any.
	Close() error
}

// Loader reads a model file for one backend.
type Loader interface {
	Name() string
	Load(path string) (Model, error)
}

// LoadModel loads the cascade at path with loader. Every failure wraps
// ErrModelLoad.
func LoadModel(loader Loader, path string) (Model, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty model path", ErrModelLoad)
	}
	m, err := loader.Load(path)
	if err != nil {
		if errors.Is(err, ErrModelLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	return m, nil
}

// Detect validates its inputs and runs model over img.
//
// The returned slice may be empty but is never nil on success. Failures wrap
// ErrDetect, except context errors which are returned as-is.
func Detect(ctx context.Context, model Model, img *imaging.Raster, p Params) ([]Region, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrDetect)
	}
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetect, err)
	}
	if img.Channels != 1 && img.Channels != 3 {
		return nil, fmt.Errorf("%w: unsupported %d-channel raster", ErrDetect, img.Channels)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetect, err)
	}

	regions, err := model.Detect(ctx, img, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		if errors.Is(err, ErrDetect) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDetect, err)
	}
	if regions == nil {
		regions = []Region{}
	}
	return regions, nil
}
