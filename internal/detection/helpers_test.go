package detection

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/objcount-mcp/internal/imaging"
)

// testTree is one depth-1 pigo tree: a single pixel comparison and two leaves.
type testTree struct {
	codes     [4]int8
	preds     [2]float32
	threshold float32
}

// brightCenterTrees accept a window whose center is brighter than the pixels
// roughly 0.4 window sides above and below it.
var brightCenterTrees = []testTree{
	{codes: [4]int8{0, 0, -100, 0}, preds: [2]float32{1, -1}, threshold: 0},
	{codes: [4]int8{0, 0, 100, 0}, preds: [2]float32{1, -1}, threshold: 1.5},
}

// darkCenterTrees accept the opposite pattern: a dark center between bright
// pixels above and below.
var darkCenterTrees = []testTree{
	{codes: [4]int8{-100, 0, 0, 0}, preds: [2]float32{1, -1}, threshold: 0},
	{codes: [4]int8{100, 0, 0, 0}, preds: [2]float32{1, -1}, threshold: 1.5},
}

func encodeCascade(trees []testTree) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 8))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(len(trees)))
	for _, tr := range trees {
		binary.Write(&buf, binary.LittleEndian, tr.codes)
		binary.Write(&buf, binary.LittleEndian, tr.preds)
		binary.Write(&buf, binary.LittleEndian, tr.threshold)
	}
	return buf.Bytes()
}

// writeCascade writes a pigo cascade into a temp dir and returns its path.
func writeCascade(t *testing.T, trees []testTree) string {
	t.Helper()
	return writeFile(t, "cascade.bin", encodeCascade(trees))
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// blobRaster returns a one-channel raster of the given background with filled
// disks of radius r at each (row, col) center.
func blobRaster(width, height int, bg, fg uint8, r int, centers ...[2]int) *imaging.Raster {
	img := imaging.NewRaster(width, height, 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := bg
			for _, c := range centers {
				dy, dx := y-c[0], x-c[1]
				if dx*dx+dy*dy <= r*r {
					v = fg
				}
			}
			img.Pix[y*width+x] = v
		}
	}
	return img
}

// twoBlobs is the reference scene: two bright disks side by side.
func twoBlobs() *imaging.Raster {
	return blobRaster(128, 64, 30, 220, 5, [2]int{32, 32}, [2]int{32, 96})
}

// toBGR replicates a gray raster into three equal channels.
func toBGR(gray *imaging.Raster) *imaging.Raster {
	out := imaging.NewRaster(gray.Width, gray.Height, 3)
	for i, v := range gray.Pix {
		out.Pix[3*i+0] = v
		out.Pix[3*i+1] = v
		out.Pix[3*i+2] = v
	}
	return out
}

func testParams() Params {
	p := DefaultParams()
	p.MinSize = 20
	p.MaxSize = 22
	return p
}

func mustLoad(t *testing.T, path string) Model {
	t.Helper()
	loader, err := Lookup(BackendPigo)
	if err != nil {
		t.Fatalf("Lookup(pigo) error: %v", err)
	}
	m, err := LoadModel(loader, path)
	if err != nil {
		t.Fatalf("LoadModel() error: %v", err)
	}
	return m
}
