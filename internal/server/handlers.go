package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/objcount-mcp/internal/detection"
	"github.com/ironsheep/objcount-mcp/internal/imaging"
	"github.com/ironsheep/objcount-mcp/internal/pipeline"
)

// errInvalidArguments reports tool arguments that are missing or malformed.
var errInvalidArguments = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "count_objects").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Argument-shape errors return -32602; any other tool failure returns -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, pipeline.ErrCallerContract) || errors.Is(err, errInvalidArguments) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Counting
	case "count_objects":
		return s.handleCountObjects(ctx, args)
	case "detect_objects":
		return s.handleDetectObjects(ctx, args)

	// Preprocessing
	case "normalize_image":
		return s.handleNormalizeImage(args)

	// Visualization
	case "annotate_detections":
		return s.handleAnnotateDetections(ctx, args)
	case "crop_detections":
		return s.handleCropDetections(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Counting Handlers ===

// countArgNames lists the count_objects arguments in call order.
var countArgNames = []string{"image_hex", "model_path"}

// countCallArgs turns count_objects arguments into the positional arguments
// of pipeline.Call. A JSON array is taken as-is and checked by Call. An object
// must hold exactly the image_hex and model_path keys; a missing or unknown
// key is a caller contract violation.
func countCallArgs(raw json.RawMessage) ([]interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var positional []interface{}
	if err := json.Unmarshal(raw, &positional); err == nil {
		return positional, nil
	}

	var named map[string]interface{}
	if err := json.Unmarshal(raw, &named); err != nil {
		return nil, fmt.Errorf("%w: arguments must be an object or array: %v", pipeline.ErrCallerContract, err)
	}

	args := make([]interface{}, 0, len(countArgNames))
	for _, key := range countArgNames {
		v, ok := named[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing argument %q", pipeline.ErrCallerContract, key)
		}
		args = append(args, v)
		delete(named, key)
	}
	if len(named) > 0 {
		extra := make([]string, 0, len(named))
		for key := range named {
			extra = append(extra, key)
		}
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: unexpected arguments %v", pipeline.ErrCallerContract, extra)
	}
	return args, nil
}

type countResult struct {
	Count int64 `json:"count"`
}

func (s *Server) handleCountObjects(ctx context.Context, args json.RawMessage) (interface{}, error) {
	callArgs, err := countCallArgs(args)
	if err != nil {
		return nil, err
	}
	count, err := s.pipeline.Call(ctx, callArgs...)
	if err != nil {
		return nil, err
	}
	return &countResult{Count: count}, nil
}

type detectArgs struct {
	ImageHex  string `json:"image_hex"`
	ModelPath string `json:"model_path"`
}

func parseDetectArgs(raw json.RawMessage) (*detectArgs, error) {
	var a detectArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArguments, err)
	}
	if a.ImageHex == "" {
		return nil, fmt.Errorf("%w: image_hex is required", errInvalidArguments)
	}
	if a.ModelPath == "" {
		return nil, fmt.Errorf("%w: model_path is required", errInvalidArguments)
	}
	return &a, nil
}

// detectResult is the detect_objects payload.
type detectResult struct {
	pipeline.Result
	Backend string `json:"backend"`
}

// detect runs the pipeline and turns a failed Result into an error naming the
// stage and error kind.
func (s *Server) detect(ctx context.Context, a *detectArgs) (*pipeline.Result, error) {
	res := s.pipeline.Run(ctx, a.ImageHex, a.ModelPath)
	if !res.OK() {
		s.log.Warning("detection failed (%s): model=%q: %v", pipeline.Kind(res.Err), a.ModelPath, res.Err)
		return nil, fmt.Errorf("%s: %w", pipeline.Kind(res.Err), res.Err)
	}
	return &res, nil
}

func (s *Server) handleDetectObjects(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseDetectArgs(args)
	if err != nil {
		return nil, err
	}
	res, err := s.detect(ctx, a)
	if err != nil {
		return nil, err
	}
	return &detectResult{Result: *res, Backend: s.pipeline.Backend()}, nil
}

// === Preprocessing Handlers ===

type normalizeArgs struct {
	ImageHex string `json:"image_hex"`
}

func (s *Server) handleNormalizeImage(args json.RawMessage) (interface{}, error) {
	var a normalizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArguments, err)
	}
	if a.ImageHex == "" {
		return nil, fmt.Errorf("%w: image_hex is required", errInvalidArguments)
	}

	r, err := s.pipeline.Normalize(a.ImageHex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pipeline.Kind(err), err)
	}
	return imaging.EncodeRaster(r)
}

// === Visualization Handlers ===

// sourceImage decodes the original image that regions are reported against.
func sourceImage(imageHex string) (image.Image, error) {
	data, err := pipeline.DecodeHex(imageHex)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.DecodeImage(data)
	return img, err
}

func regionRects(regions []detection.Region, origin image.Point) []image.Rectangle {
	rects := make([]image.Rectangle, len(regions))
	for i, r := range regions {
		rects[i] = r.Rect().Add(origin)
	}
	return rects
}

type annotateArgs struct {
	detectArgs
	BoxColor  string `json:"box_color"`
	Thickness int    `json:"thickness"`
}

type annotateResult struct {
	Count int64 `json:"count"`
	*imaging.AnnotateResult
}

func (s *Server) handleAnnotateDetections(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a annotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArguments, err)
	}
	if _, err := parseDetectArgs(args); err != nil {
		return nil, err
	}
	if a.BoxColor == "" {
		a.BoxColor = imaging.DefaultBoxColor
	}
	if a.Thickness <= 0 {
		a.Thickness = 2
	}

	res, err := s.detect(ctx, &a.detectArgs)
	if err != nil {
		return nil, err
	}
	img, err := sourceImage(a.ImageHex)
	if err != nil {
		return nil, err
	}

	annotated, err := imaging.Annotate(img, regionRects(res.Regions, img.Bounds().Min), a.BoxColor, a.Thickness)
	if err != nil {
		return nil, err
	}
	return &annotateResult{Count: res.Count, AnnotateResult: annotated}, nil
}

type cropArgs struct {
	detectArgs
	MaxSize int `json:"max_size"`
}

type cropResult struct {
	Count int64                `json:"count"`
	Crops []imaging.CropResult `json:"crops"`
}

func (s *Server) handleCropDetections(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a cropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArguments, err)
	}
	if _, err := parseDetectArgs(args); err != nil {
		return nil, err
	}
	if a.MaxSize < 0 {
		return nil, fmt.Errorf("%w: max_size must be >= 0", errInvalidArguments)
	}

	res, err := s.detect(ctx, &a.detectArgs)
	if err != nil {
		return nil, err
	}
	img, err := sourceImage(a.ImageHex)
	if err != nil {
		return nil, err
	}

	crops, err := imaging.CropRegions(img, regionRects(res.Regions, img.Bounds().Min), a.MaxSize)
	if err != nil {
		return nil, err
	}
	return &cropResult{Count: res.Count, Crops: crops}, nil
}
