package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	. "github.com/fixxit/fixxit/internal/logging"
)

const protocolVersion = "2024-11-05"

// maxFrameSize bounds a single request line.
const maxFrameSize = 16 * 1024 * 1024

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// textContent is the MCP tools/call result body: one text block
// carrying JSON-encoded rows.
type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callToolResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// server dispatches newline-delimited JSON-RPC requests to the tool
// handlers. One goroutine reads; responses are serialized by writeMu.
type server struct {
	store   *store
	limits  limitsConfig
	tools   map[string]tool
	writeMu sync.Mutex
	out     io.Writer
}

// tool pairs a backend function with its listing metadata.
type tool struct {
	description string
	schema      map[string]any
	handler     func(args map[string]any) (any, error)
}

func newServer(st *store, limits limitsConfig) *server {
	s := &server{store: st, limits: limits}
	s.tools = s.registerTools()
	return s
}

// serve reads requests until EOF. Malformed frames are logged and
// skipped; the protocol has no way to answer a request without an id.
func (s *server) serve(r io.Reader, w io.Writer) error {
	s.out = w

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			L_warn("malformed request frame", "error", err)
			continue
		}
		s.dispatch(req)
	}
	return scanner.Err()
}

func (s *server) dispatch(req rpcRequest) {
	// Notifications carry no id and get no response.
	if req.ID == nil {
		L_debug("notification", "method", req.Method)
		return
	}

	switch req.Method {
	case "initialize":
		s.reply(*req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    "fixxit-server",
				"version": version,
			},
		})
	case "tools/list":
		s.reply(*req.ID, map[string]any{"tools": s.listTools()})
	case "tools/call":
		s.reply(*req.ID, s.callTool(req.Params))
	case "ping":
		s.reply(*req.ID, map[string]any{})
	default:
		s.replyError(*req.ID, -32601, "method not found: "+req.Method)
	}
}

func (s *server) listTools() []map[string]any {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := s.tools[name]
		out = append(out, map[string]any{
			"name":        name,
			"description": t.description,
			"inputSchema": t.schema,
		})
	}
	return out
}

// callTool runs one handler. Handler errors become isError results with
// a text message, never protocol errors; the client decides what to do.
func (s *server) callTool(params json.RawMessage) callToolResult {
	var call struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return errorResult("malformed tools/call params: " + err.Error())
	}

	t, ok := s.tools[call.Name]
	if !ok {
		return errorResult("unknown tool: " + call.Name)
	}

	L_debug("tool call", "tool", call.Name, "args", call.Arguments)
	result, err := t.handler(call.Arguments)
	if err != nil {
		L_warn("tool call failed", "tool", call.Name, "error", err)
		return errorResult(err.Error())
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return errorResult("failed to encode result: " + err.Error())
	}
	return callToolResult{Content: []textContent{{Type: "text", Text: string(encoded)}}}
}

func errorResult(msg string) callToolResult {
	return callToolResult{
		Content: []textContent{{Type: "text", Text: msg}},
		IsError: true,
	}
}

func (s *server) reply(id int64, result any) {
	s.send(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *server) replyError(id int64, code int, msg string) {
	s.send(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

func (s *server) send(resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		L_error("failed to encode response", "error", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := fmt.Fprintf(s.out, "%s\n", data); err != nil {
		L_error("failed to write response", "error", err)
	}
}
