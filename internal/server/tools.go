package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func hsvSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"h": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 179},
			"s": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 255},
			"v": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 255},
		},
		"required": []string{"h", "s", "v"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Frames
		{
			Name:        "frame_load",
			Description: "Load a camera frame from an image file, preprocess it (letterbox, optional flip) and cache it for the next detection request. Replaces any frame not yet consumed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to a PNG, JPEG or GIF file",
					},
				},
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "detect_object",
			Description: "Run detection on the cached frame and consume it. Returns count and size (largest box area as percent of the frame). count is -1 when no frame is cached and 0 for an unknown target.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"target": map[string]interface{}{
						"type":        "string",
						"description": "Detection mode",
						"enum":        []string{"stop", "tire", "person"},
					},
				},
				"required": []string{"target"},
			},
		},
		{
			Name:        "detection_history",
			Description: "List recent detection requests, newest first. Requires a history store.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of records. Default 20",
						"default":     20,
					},
				},
			},
		},

		// Debug outputs
		{
			Name:        "debug_annotated",
			Description: "Get the most recent annotated frame as base64-encoded PNG: counted boxes with labels, rejected stop signs crossed out.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "debug_vest_mask",
			Description: "Get the most recent high-visibility vest mask as base64-encoded PNG (white = vest colour).",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Node
		{
			Name:        "vest_range",
			Description: "Get the vest HSV colour window, or replace it by passing both lower and upper bounds. Hue is 0-179, saturation and value 0-255.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"lower": hsvSchema("Inclusive lower bound"),
					"upper": hsvSchema("Inclusive upper bound"),
				},
			},
		},
		{
			Name:        "node_status",
			Description: "Report frame cache occupancy and counters, debug output sequence numbers and OCR backend info.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
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
