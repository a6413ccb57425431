// Package server implements the MCP (Model Context Protocol) server for object
// counting.
//
// # Protocol
//
// The server speaks JSON-RPC 2.0 over two transports:
//   - stdio: one request per line on stdin, one response per line on stdout
//   - WebSocket: one request per text message on /ws (when a listen address
//     is configured)
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Counting:
//   - count_objects: Number of detected objects (data failures give 0)
//   - detect_objects: Detected regions with geometry and scores
//
// Preprocessing:
//   - normalize_image: Equalized grayscale image the detector scans
//
// Visualization:
//   - annotate_detections: Image with numbered boxes around detections
//   - crop_detections: One cropped image per detection
//
// Images are passed as hexadecimal text of the encoded file; models as file
// paths readable by the server.
//
// # Error Handling
//
// count_objects follows the host call contract: exactly two string arguments
// (image_hex, model_path), given as an object or a positional array. Anything
// else is rejected with -32602. Bad image or model data never fails the call;
// it returns a count of 0 and logs one diagnostic.
//
// The other tools return -32000 with the failing stage and error kind (for
// example "ModelLoadError: load_model stage: ...") and -32602 for missing
// arguments.
//
// # Usage
//
//	p, _ := pipeline.New(pipeline.DefaultConfig())
//	srv := server.New(p, logger.New(os.Stderr, logger.LevelInfo), version)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
