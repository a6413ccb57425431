package detection

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/ironsheep/objcount-mcp/internal/imaging"
)

// BackendPigo is the pure Go backend reading pigo binary cascades.
const BackendPigo = "pigo"

// pigo cascade layout: 8 skipped bytes, uint32 depth, uint32 tree count, then
// per tree (4*2^d-4) int8 codes, 2^d float32 leaf predictions and one float32
// threshold.
const (
	pigoHeaderSize = 16
	pigoMaxDepth   = 16
	pigoMaxTrees   = 1 << 20
)

func init() {
	Register(pigoLoader{})
}

type pigoLoader struct{}

func (pigoLoader) Name() string { return BackendPigo }

func (pigoLoader) Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if err := validatePigoCascade(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	classifier, err := unpackPigo(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	return &pigoModel{path: path, classifier: classifier}, nil
}

// validatePigoCascade checks the header and total length so that a truncated
// or foreign file is rejected before the unpacker indexes into it.
func validatePigoCascade(data []byte) error {
	if len(data) < pigoHeaderSize {
		return fmt.Errorf("cascade too short: %d bytes", len(data))
	}
	depth := binary.LittleEndian.Uint32(data[8:12])
	trees := binary.LittleEndian.Uint32(data[12:16])
	if depth == 0 || depth > pigoMaxDepth {
		return fmt.Errorf("invalid tree depth %d", depth)
	}
	if trees == 0 || trees > pigoMaxTrees {
		return fmt.Errorf("invalid tree count %d", trees)
	}
	leaves := uint64(1) << depth
	perTree := 4*leaves - 4 + 4*leaves + 4
	if want := uint64(pigoHeaderSize) + uint64(trees)*perTree; uint64(len(data)) != want {
		return fmt.Errorf("cascade length %d does not match %d trees of depth %d (want %d)", len(data), trees, depth, want)
	}
	return nil
}

func unpackPigo(data []byte) (classifier *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			classifier, err = nil, fmt.Errorf("malformed cascade: %v", r)
		}
	}()
	return pigo.NewPigo().Unpack(data)
}

type pigoModel struct {
	path       string
	classifier *pigo.Pigo
}

func (m *pigoModel) Backend() string { return BackendPigo }
func (m *pigoModel) Path() string    { return m.path }
func (m *pigoModel) Close() error    { return nil }

// Detect runs the cascade one scale at a time so cancellation is observed
// between scales, then groups the raw hits.
func (m *pigoModel) Detect(ctx context.Context, img *imaging.Raster, p Params) (regions []Region, err error) {
	defer func() {
		if r := recover(); r != nil {
			regions, err = nil, fmt.Errorf("%w: cascade scan: %v", ErrDetect, r)
		}
	}()

	gray := img
	if img.Channels == 3 {
		if gray, err = imaging.Grayscale(img); err != nil {
			return nil, err
		}
	}

	maxSize := min(p.MaxSize, gray.Width, gray.Height)
	hits := make([]Region, 0)
	for scale := p.MinSize; scale <= maxSize; scale = int(float64(scale) * p.ScaleFactor) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dets := m.classifier.RunCascade(pigo.CascadeParams{
			MinSize:     scale,
			MaxSize:     scale,
			ShiftFactor: p.ShiftFactor,
			ScaleFactor: p.ScaleFactor,
			ImageParams: pigo.ImageParams{
				Pixels: gray.Pix,
				Rows:   gray.Height,
				Cols:   gray.Width,
				Dim:    gray.Width,
			},
		}, 0.0)
		for _, d := range dets {
			hits = append(hits, Region{
				X:      d.Col - d.Scale/2,
				Y:      d.Row - d.Scale/2,
				Width:  d.Scale,
				Height: d.Scale,
				Score:  float64(d.Q),
			})
		}
	}

	return GroupRegions(hits, p.MinNeighbors, p.GroupEps), nil
}
