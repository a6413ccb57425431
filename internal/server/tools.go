package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func imageHexProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "The encoded image file (PNG, JPEG, GIF, BMP, TIFF or WebP) as hexadecimal text",
	}
}

func modelPathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the cascade model file for the configured backend",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Counting
		{
			Name:        "count_objects",
			Description: "Count the objects a cascade model detects in an image. Bad image data or a bad model yields a count of 0, never an error.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_hex":  imageHexProperty(),
					"model_path": modelPathProperty(),
				},
				"required":             []string{"image_hex", "model_path"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "detect_objects",
			Description: "Run a cascade model over an image and return every detected region with its bounding box, neighbor count and score. Failures are reported with the pipeline stage that caused them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_hex":  imageHexProperty(),
					"model_path": modelPathProperty(),
				},
				"required": []string{"image_hex", "model_path"},
			},
		},

		// Preprocessing
		{
			Name:        "normalize_image",
			Description: "Return the grayscale, histogram-equalized image the detector scans, as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_hex": imageHexProperty(),
				},
				"required": []string{"image_hex"},
			},
		},

		// Visualization
		{
			Name:        "annotate_detections",
			Description: "Draw a numbered box around every detected object and return the annotated image as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_hex":  imageHexProperty(),
					"model_path": modelPathProperty(),
					"box_color": map[string]interface{}{
						"type":        "string",
						"description": "Box color as hex, e.g. '#FF0000' (default red)",
						"default":     "#FF0000",
					},
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Box line thickness in pixels (default 2)",
						"default":     2,
					},
				},
				"required": []string{"image_hex", "model_path"},
			},
		},
		{
			Name:        "crop_detections",
			Description: "Crop every detected object out of the image and return each crop as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_hex":  imageHexProperty(),
					"model_path": modelPathProperty(),
					"max_size": map[string]interface{}{
						"type":        "integer",
						"description": "Shrink crops larger than this many pixels on either side, keeping the aspect ratio. 0 keeps full size (default 0)",
						"default":     0,
					},
				},
				"required": []string{"image_hex", "model_path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
