//go:build gocv

package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ironsheep/objcount-mcp/internal/imaging"
)

func init() {
	Register(opencvLoader{})
}

type opencvLoader struct{}

func (opencvLoader) Name() string { return BackendOpenCV }

func (opencvLoader) Load(path string) (Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: %s: not a valid OpenCV cascade", ErrModelLoad, path)
	}
	return &opencvModel{path: path, classifier: classifier}, nil
}

// opencvModel wraps a native classifier. OpenCV cascades keep scratch state,
// so Detect calls are serialized.
type opencvModel struct {
	mu         sync.Mutex
	path       string
	classifier gocv.CascadeClassifier
	closed     bool
}

func (m *opencvModel) Backend() string { return BackendOpenCV }
func (m *opencvModel) Path() string    { return m.path }

func (m *opencvModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.classifier.Close()
}

// Detect collects the raw multi-scale hits (no internal grouping) and groups
// them with GroupRegions.
func (m *opencvModel) Detect(ctx context.Context, img *imaging.Raster, p Params) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matType := gocv.MatTypeCV8UC1
	if img.Channels == 3 {
		matType = gocv.MatTypeCV8UC3
	}
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, matType, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetect, err)
	}
	defer mat.Close()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: model closed", ErrDetect)
	}
	rects := m.classifier.DetectMultiScaleWithParams(mat, p.ScaleFactor, 0, 0,
		image.Pt(p.MinSize, p.MinSize), image.Pt(p.MaxSize, p.MaxSize))
	m.mu.Unlock()

	hits := make([]Region, 0, len(rects))
	for _, r := range rects {
		hits = append(hits, Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()})
	}
	return GroupRegions(hits, p.MinNeighbors, p.GroupEps), nil
}
