package pipeline

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/objcount-mcp/internal/logger"
)

// cascadeTree is one depth-1 pigo tree.
type cascadeTree struct {
	codes     [4]int8
	preds     [2]float32
	threshold float32
}

// brightCenter matches a bright spot with darker pixels above and below.
var brightCenter = []cascadeTree{
	{codes: [4]int8{0, 0, -100, 0}, preds: [2]float32{1, -1}, threshold: 0},
	{codes: [4]int8{0, 0, 100, 0}, preds: [2]float32{1, -1}, threshold: 1.5},
}

// darkCenter matches the inverse pattern and never fires on bright spots.
var darkCenter = []cascadeTree{
	{codes: [4]int8{-100, 0, 0, 0}, preds: [2]float32{1, -1}, threshold: 0},
	{codes: [4]int8{100, 0, 0, 0}, preds: [2]float32{1, -1}, threshold: 1.5},
}

func writeCascade(t *testing.T, trees []cascadeTree) string {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, 8))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(len(trees)))
	for _, tr := range trees {
		binary.Write(&buf, binary.LittleEndian, tr.codes)
		binary.Write(&buf, binary.LittleEndian, tr.preds)
		binary.Write(&buf, binary.LittleEndian, tr.threshold)
	}

	path := filepath.Join(t.TempDir(), "cascade.bin")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write cascade: %v", err)
	}
	return path
}

// blobImage draws filled disks of radius r at each (x, y) center.
func blobImage(width, height int, bg, fg color.Color, r int, centers ...image.Point) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := bg
			for _, p := range centers {
				dx, dy := x-p.X, y-p.Y
				if dx*dx+dy*dy <= r*r {
					c = fg
				}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

var (
	dark   = color.RGBA{30, 30, 30, 255}
	bright = color.RGBA{220, 220, 220, 255}
)

// twoBlobsHex is a 128x64 PNG with two bright disks, as hex text.
func twoBlobsHex(t *testing.T) string {
	t.Helper()
	return hexPNG(t, blobImage(128, 64, dark, bright, 5, image.Pt(32, 32), image.Pt(96, 32)))
}

func hexPNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MinSize = 20
	cfg.Params.MaxSize = 22
	return cfg
}

// newTestPipeline returns a pipeline logging at info level into the returned
// buffer.
func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	p, err := New(cfg, WithLogger(logger.New(&buf, logger.LevelInfo)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(p.Close)
	return p, &buf
}

func logLines(buf *bytes.Buffer) []string {
	var lines []string
	for _, l := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(l) > 0 {
			lines = append(lines, string(l))
		}
	}
	return lines
}
