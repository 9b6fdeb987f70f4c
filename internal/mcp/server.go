// Package mcp exposes project listing and annotation counts as MCP tools over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cosyq/internal/backend"
	"cosyq/internal/count"

	"github.com/rs/zerolog/log"
)

// JSONRPCRequest represents a standard MCP/JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a standard MCP/JSON-RPC response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// Server answers tool calls against one backend.
type Server struct {
	backend backend.Backend
	engine  *count.Engine
	version string
}

// NewServer creates a new MCP server.
func NewServer(b backend.Backend, e *count.Engine, version string) *Server {
	return &Server{backend: b, engine: e, version: version}
}

// Serve runs the JSON-RPC loop, one message per line, until in is exhausted or
// ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			var req JSONRPCRequest
			if jerr := json.Unmarshal(line, &req); jerr != nil {
				log.Error().Err(jerr).Msg("Failed to unmarshal request")
			} else if resp, ok := s.handleRequest(ctx, req); ok {
				data, _ := json.Marshal(resp)
				fmt.Fprintf(out, "%s\n", data)
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// handleRequest returns false for notifications, which get no response.
func (s *Server) handleRequest(ctx context.Context, req JSONRPCRequest) (JSONRPCResponse, bool) {
	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		log.Debug().Str("method", req.Method).Msg("Notification received")
		return JSONRPCResponse{}, false
	}

	var result interface{}
	var errRes interface{}

	switch req.Method {
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "cosyq",
				"version": s.version,
			},
		}
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, errRes = s.callTool(ctx, req.Params)
	default:
		errRes = map[string]interface{}{
			"code":    -32601,
			"message": fmt.Sprintf("Method %s not found", req.Method),
		}
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   errRes,
	}, true
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, interface{}) {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, map[string]interface{}{"code": -32602, "message": "Invalid params"}
	}

	log.Info().Str("tool", call.Name).Msg("Tool call")

	var data interface{}
	var err error

	switch call.Name {
	case "list_projects":
		data, err = s.backend.ProjectNames(ctx)
	case "count_annotations":
		var args CountArgs
		if len(call.Arguments) > 0 {
			if uerr := json.Unmarshal(call.Arguments, &args); uerr != nil {
				return nil, map[string]interface{}{"code": -32602, "message": "Invalid arguments: " + uerr.Error()}
			}
		}
		data, err = s.handleCount(ctx, args)
	default:
		return nil, map[string]interface{}{"code": -32601, "message": "Tool not found"}
	}

	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("Tool call failed")
		return nil, map[string]interface{}{"code": -32000, "message": err.Error()}
	}

	return map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": formatResult(data),
			},
		},
	}, nil
}

func formatResult(data interface{}) string {
	out, _ := json.MarshalIndent(data, "", "  ")
	return string(out)
}
