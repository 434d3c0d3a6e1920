// Package server implements the MCP (Model Context Protocol) front end of the
// detection node.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - frame_load: Cache a frame from an image file
//   - detect_object: Run a stop, tire or person request on the cached frame
//   - detection_history: Recent requests from the history store
//   - debug_annotated: Latest annotated frame as base64 PNG
//   - debug_vest_mask: Latest vest mask as base64 PNG
//   - vest_range: Read or replace the vest HSV window
//   - node_status: Cache, publication and OCR status
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A request that finds no cached frame or names an unknown target is not an
// error; its result carries count -1 or 0.
package server
