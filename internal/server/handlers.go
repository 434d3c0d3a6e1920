package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ironsheep/route-vision/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "frame_load", "detect_object").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errNoImage is returned by the debug tools before anything was published.
var errNoImage = errors.New("nothing published yet")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
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
	// Frames
	case "frame_load":
		return s.handleFrameLoad(args)

	// Detection
	case "detect_object":
		return s.handleDetectObject(ctx, args)
	case "detection_history":
		return s.handleDetectionHistory(args)

	// Debug outputs
	case "debug_annotated":
		return s.handleDebugAnnotated()
	case "debug_vest_mask":
		return s.handleDebugVestMask()

	// Node
	case "vest_range":
		return s.handleVestRange(args)
	case "node_status":
		return s.node.Status(), nil

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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments; absent arguments decode as zero values.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Frame Handlers ===

type frameLoadArgs struct {
	Path string `json:"path"`
}

type frameLoadResult struct {
	Seq      uint64    `json:"seq"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Received time.Time `json:"received"`
}

func (s *Server) handleFrameLoad(args json.RawMessage) (interface{}, error) {
	var a frameLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	f, err := s.node.IngestFile(a.Path)
	if err != nil {
		return nil, err
	}
	b := f.Image.Bounds()
	return frameLoadResult{Seq: f.Seq, Width: b.Dx(), Height: b.Dy(), Received: f.Received}, nil
}

// === Detection Handlers ===

type detectObjectArgs struct {
	Target string `json:"target"`
}

func (s *Server) handleDetectObject(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectObjectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	rep, err := s.node.Detect(ctx, a.Target)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

type detectionHistoryArgs struct {
	Limit int `json:"limit"`
}

func (s *Server) handleDetectionHistory(args json.RawMessage) (interface{}, error) {
	var a detectionHistoryArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Limit <= 0 {
		a.Limit = 20
	}
	return s.node.History(a.Limit)
}

// === Debug Output Handlers ===

type debugImageResult struct {
	*imaging.EncodedImage
	Seq       uint64    `json:"seq"`
	Published time.Time `json:"published"`
}

func (s *Server) handleDebugAnnotated() (interface{}, error) {
	item, ok := s.node.Annotated()
	if !ok {
		return nil, fmt.Errorf("annotated frame: %w", errNoImage)
	}
	enc, err := imaging.Encode(item.Value)
	if err != nil {
		return nil, err
	}
	return debugImageResult{EncodedImage: enc, Seq: item.Seq, Published: item.Published}, nil
}

func (s *Server) handleDebugVestMask() (interface{}, error) {
	item, ok := s.node.VestMask()
	if !ok {
		return nil, fmt.Errorf("vest mask: %w", errNoImage)
	}
	enc, err := imaging.Encode(item.Value)
	if err != nil {
		return nil, err
	}
	return debugImageResult{EncodedImage: enc, Seq: item.Seq, Published: item.Published}, nil
}

// === Node Handlers ===

type vestRangeArgs struct {
	Lower *imaging.HSV `json:"lower"`
	Upper *imaging.HSV `json:"upper"`
}

// handleVestRange returns the current range, replacing it first when both
// bounds are given.
func (s *Server) handleVestRange(args json.RawMessage) (interface{}, error) {
	var a vestRangeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	switch {
	case a.Lower == nil && a.Upper == nil:
	case a.Lower == nil || a.Upper == nil:
		return nil, fmt.Errorf("lower and upper must be given together")
	default:
		if err := s.node.SetVestRange(imaging.HSVRange{Lower: *a.Lower, Upper: *a.Upper}); err != nil {
			return nil, err
		}
	}
	return s.node.VestRange(), nil
}
