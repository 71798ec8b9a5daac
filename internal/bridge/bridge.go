// Package bridge owns the session to the maintenance query backend. It
// translates abstract tool calls into backend RPCs over an MCP stdio
// channel and normalizes every response and failure into a CallResult.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fixxit/fixxit/internal/logging"
	"github.com/fixxit/fixxit/internal/types"
)

// ErrNotConnected is returned by Connect-dependent operations before a
// successful handshake.
var ErrNotConnected = errors.New("not connected to MCP server")

// Mappings supplies the current name and parameter mappings. Satisfied by
// *registry.Registry; snapshots are taken per call so config reloads take
// effect immediately.
type Mappings interface {
	Mapping() map[string]string
	ParameterMapping() map[string]map[string]string
}

// Config describes how to reach the backend.
type Config struct {
	// Command and Args launch the backend subprocess.
	Command string
	Args    []string
	Dir     string

	// ConnectTimeout bounds the handshake, CallTimeout each RPC. A call
	// that exceeds CallTimeout surfaces as a backend-unavailable error
	// instead of hanging the loop.
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
}

// ToolInfo is one entry of the backend's capability list (diagnostics
// only; the registry decides what the model sees).
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Bridge is one persistent backend session. One Agent owns one Bridge.
type Bridge struct {
	cfg      Config
	mappings Mappings

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.Closer
	sess      *session
	connected bool

	serverTools []ToolInfo
	invocations atomic.Int64
}

// New creates a bridge that will launch the configured backend subprocess
// on Connect.
func New(cfg Config, mappings Mappings) *Bridge {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	return &Bridge{cfg: cfg, mappings: mappings}
}

// NewWithTransport creates a bridge over an existing read/write pair
// instead of a subprocess. Used by tests and by callers that manage the
// backend process themselves.
func NewWithTransport(cfg Config, mappings Mappings, w io.WriteCloser, r io.Reader) *Bridge {
	b := New(cfg, mappings)
	b.stdin = w
	b.sess = newSession(w, r)
	return b
}

// Connect performs the MCP handshake and discovers the backend's exposed
// tools. Returns an error on failure; no partial state is left behind.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		return nil
	}

	if b.sess == nil {
		if err := b.startSubprocessLocked(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.ConnectTimeout)
	defer cancel()

	_, err := b.sess.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "fixxit",
			"version": "1.0.0",
		},
	})
	if err != nil {
		b.teardownLocked()
		return fmt.Errorf("MCP handshake failed: %w", err)
	}
	if err := b.sess.notify("notifications/initialized", map[string]any{}); err != nil {
		b.teardownLocked()
		return fmt.Errorf("MCP handshake failed: %w", err)
	}

	b.connected = true

	// Capability discovery is diagnostics only; a failure here does not
	// break the session.
	if tools, err := b.listToolsLocked(ctx); err == nil {
		b.serverTools = tools
		names := make([]string, len(tools))
		for i, t := range tools {
			names[i] = t.Name
		}
		logging.L_info("connected to MCP server", "tools", names)
	} else {
		logging.L_warn("connected but tool discovery failed", "error", err)
	}

	return nil
}

func (b *Bridge) startSubprocessLocked() error {
	cmd := exec.Command(b.cfg.Command, b.cfg.Args...)
	cmd.Dir = b.cfg.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("backend stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("backend stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("backend start: %w", err)
	}

	logging.L_debug("backend subprocess started", "command", b.cfg.Command, "pid", cmd.Process.Pid)
	b.cmd = cmd
	b.stdin = stdin
	b.sess = newSession(stdin, stdout)
	return nil
}

// Disconnect releases the channel and the subprocess. Safe to call
// multiple times.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected && b.sess == nil {
		return
	}
	b.teardownLocked()
	logging.L_info("disconnected from MCP server")
}

func (b *Bridge) teardownLocked() {
	if b.sess != nil {
		b.sess.close()
		b.sess = nil
	}
	if b.stdin != nil {
		b.stdin.Close()
		b.stdin = nil
	}
	if b.cmd != nil {
		if b.cmd.Process != nil {
			b.cmd.Process.Kill()
		}
		b.cmd.Wait()
		b.cmd = nil
	}
	b.connected = false
	b.serverTools = nil
}

// IsConnected reports whether the handshake has completed.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// ServerTools returns the capability list discovered at connect time.
func (b *Bridge) ServerTools() []ToolInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ToolInfo, len(b.serverTools))
	copy(out, b.serverTools)
	return out
}

// Invocations returns how many RPCs actually reached the backend.
func (b *Bridge) Invocations() int64 {
	return b.invocations.Load()
}

// Call translates an abstract tool call into a backend RPC. Every failure
// path returns an error-tagged CallResult; nothing propagates as a Go
// error to the loop.
func (b *Bridge) Call(ctx context.Context, function string, args map[string]any) types.CallResult {
	// The sentinel finalize tool echoes its answer without backend
	// contact.
	if function == types.AnswerFunction {
		answer, _ := args["answer"].(string)
		if answer == "" {
			answer = "No answer provided"
		}
		return types.Success(function, "", types.TextPayload(answer))
	}

	b.mu.Lock()
	sess := b.sess
	connected := b.connected
	b.mu.Unlock()

	if !connected || sess == nil {
		return types.Failure(function, "", ErrNotConnected.Error())
	}

	backend, ok := b.mappings.Mapping()[function]
	if !ok || backend == "" {
		return types.Failure(function, "", "unknown function: "+function)
	}

	mapped := b.mapParameters(function, args)
	logging.L_debug("calling MCP tool", "function", function, "backend", backend, "params", mapped)

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	b.invocations.Add(1)
	result, err := sess.call(ctx, "tools/call", map[string]any{
		"name":      backend,
		"arguments": mapped,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.Failure(function, backend, "backend unavailable: call timed out")
		}
		return types.Failure(function, backend, "MCP tool call failed: "+err.Error())
	}

	text, err := extractText(result)
	if err != nil {
		return types.Failure(function, backend, err.Error())
	}
	return types.Success(function, backend, types.ParsePayload(text))
}

// mapParameters renames abstract argument names to backend names using
// the registry's per-tool rename table (identity when unmapped).
func (b *Bridge) mapParameters(function string, args map[string]any) map[string]any {
	table := b.mappings.ParameterMapping()[function]
	mapped := make(map[string]any, len(args))
	for name, value := range args {
		if renamed, ok := table[name]; ok {
			mapped[renamed] = value
		} else {
			mapped[name] = value
		}
	}
	return mapped
}

// callToolResult is the MCP tools/call response body.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// extractText pulls the first text content block out of a tools/call
// result. Malformed bodies become errors here, never panics.
func extractText(result json.RawMessage) (string, error) {
	var parsed callToolResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", fmt.Errorf("malformed backend response: %v", err)
	}
	if len(parsed.Content) == 0 {
		return "", errors.New("empty response from MCP server")
	}
	text := parsed.Content[0].Text
	if parsed.IsError {
		return "", errors.New("backend error: " + text)
	}
	return text, nil
}

// ListTools queries the backend's exposed tools.
func (b *Bridge) ListTools(ctx context.Context) ([]ToolInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected || b.sess == nil {
		return nil, ErrNotConnected
	}
	return b.listToolsLocked(ctx)
}

func (b *Bridge) listToolsLocked(ctx context.Context) ([]ToolInfo, error) {
	result, err := b.sess.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("malformed tools/list response: %v", err)
	}
	return parsed.Tools, nil
}
