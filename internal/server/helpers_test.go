package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/objcount-mcp/internal/logger"
	"github.com/ironsheep/objcount-mcp/internal/pipeline"
)

// writeCascade writes a depth-1, two-tree pigo cascade that fires on a bright
// spot with darker pixels above and below it.
func writeCascade(t *testing.T) string {
	t.Helper()
	trees := []struct {
		codes     [4]int8
		preds     [2]float32
		threshold float32
	}{
		{codes: [4]int8{0, 0, -100, 0}, preds: [2]float32{1, -1}, threshold: 0},
		{codes: [4]int8{0, 0, 100, 0}, preds: [2]float32{1, -1}, threshold: 1.5},
	}

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

// twoBlobsHex is a 128x64 PNG with two bright disks on a dark background, as
// hex text.
func twoBlobsHex(t *testing.T) string {
	t.Helper()
	dark := color.RGBA{30, 30, 30, 255}
	bright := color.RGBA{220, 220, 220, 255}
	centers := []image.Point{image.Pt(32, 32), image.Pt(96, 32)}

	img := image.NewRGBA(image.Rect(0, 0, 128, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			c := dark
			for _, p := range centers {
				dx, dy := x-p.X, y-p.Y
				if dx*dx+dy*dy <= 25 {
					c = bright
				}
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

// newTestServer returns a server whose log output goes to the returned buffer.
func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo)

	cfg := pipeline.DefaultConfig()
	cfg.Params.MinSize = 20
	cfg.Params.MaxSize = 22
	p, err := pipeline.New(cfg, pipeline.WithLogger(log))
	if err != nil {
		t.Fatalf("pipeline.New() error: %v", err)
	}
	t.Cleanup(p.Close)

	return New(p, log, "test"), &buf
}

// callTool sends a tools/call request for name with the given arguments.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeContent unmarshals the text content of a successful tool response
// into v.
func decodeContent(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result should be a map, got %T", resp.Result)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	text, ok := content[0]["text"].(string)
	if !ok {
		t.Fatalf("content text should be a string, got %T", content[0]["text"])
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode content %q: %v", text, err)
	}
}
