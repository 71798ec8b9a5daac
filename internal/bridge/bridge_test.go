package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fixxit/fixxit/internal/types"
)

// fakeMappings is a static stand-in for the registry.
type fakeMappings struct{}

func (fakeMappings) Mapping() map[string]string {
	return map[string]string{
		types.AnswerFunction:       "",
		"search_equipment":         "machines.search",
		"get_troubleshooting_help": "faultcodes.lookup",
	}
}

func (fakeMappings) ParameterMapping() map[string]map[string]string {
	return map[string]map[string]string{
		types.AnswerFunction:       {"answer": "answer"},
		"search_equipment":         {"location": "location", "status": "status"},
		"get_troubleshooting_help": {"fault_code": "code"},
	}
}

// fakeServer speaks the stdio protocol over pipes. Each tools/call is
// answered by the configured handler; a nil handler leaves the request
// hanging to exercise timeouts.
type fakeServer struct {
	onCall func(name string, args map[string]any) (text string, isError bool)
	calls  []string
}

func (f *fakeServer) run(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var req struct {
			ID     *int64 `json:"id"`
			Method string `json:"method"`
			Params struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || req.ID == nil {
			continue
		}

		var result string
		switch req.Method {
		case "initialize":
			result = `{"protocolVersion": "2024-11-05", "serverInfo": {"name": "fake", "version": "0"}}`
		case "tools/list":
			result = `{"tools": [{"name": "machines.search", "description": "search"}, {"name": "faultcodes.lookup", "description": "lookup"}]}`
		case "tools/call":
			f.calls = append(f.calls, req.Params.Name)
			if f.onCall == nil {
				continue // never answer; the caller times out
			}
			text, isError := f.onCall(req.Params.Name, req.Params.Arguments)
			body, _ := json.Marshal(map[string]any{
				"content": []map[string]any{{"type": "text", "text": text}},
				"isError": isError,
			})
			result = string(body)
		default:
			continue
		}
		fmt.Fprintf(w, `{"jsonrpc": "2.0", "id": %d, "result": %s}`+"\n", *req.ID, result)
	}
}

// newTestBridge wires a bridge to a fake server over in-memory pipes.
func newTestBridge(t *testing.T, srv *fakeServer) *Bridge {
	t.Helper()

	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	go srv.run(serverR, serverW)
	t.Cleanup(func() {
		clientW.Close()
		serverW.Close()
	})

	return NewWithTransport(Config{
		ConnectTimeout: 2 * time.Second,
		CallTimeout:    200 * time.Millisecond,
	}, fakeMappings{}, clientW, clientR)
}

func connect(t *testing.T, b *Bridge) {
	t.Helper()
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
}

func TestConnectDiscoversTools(t *testing.T) {
	b := newTestBridge(t, &fakeServer{})
	connect(t, b)

	if !b.IsConnected() {
		t.Error("bridge should report connected")
	}
	if got := len(b.ServerTools()); got != 2 {
		t.Errorf("discovered %d tools, want 2", got)
	}
}

func TestCallStructuredResult(t *testing.T) {
	srv := &fakeServer{onCall: func(name string, args map[string]any) (string, bool) {
		if name != "machines.search" {
			return "wrong backend function: " + name, true
		}
		return `[{"id": 7, "serial_number": "PRESS-A", "status": "down"}]`, false
	}}
	b := newTestBridge(t, srv)
	connect(t, b)

	result := b.Call(context.Background(), "search_equipment", map[string]any{"status": "down"})
	if !result.OK() {
		t.Fatalf("call failed: %s", result.ErrorMessage())
	}
	if _, ok := result.Payload().Structured(); !ok {
		t.Error("JSON array should come back structured")
	}
	if result.Backend != "machines.search" {
		t.Errorf("backend = %q", result.Backend)
	}
	if b.Invocations() != 1 {
		t.Errorf("invocations = %d, want 1", b.Invocations())
	}
}

func TestCallTextResultStaysText(t *testing.T) {
	srv := &fakeServer{onCall: func(string, map[string]any) (string, bool) {
		return "no matching records", false
	}}
	b := newTestBridge(t, srv)
	connect(t, b)

	result := b.Call(context.Background(), "search_equipment", nil)
	if !result.OK() {
		t.Fatalf("call failed: %s", result.ErrorMessage())
	}
	text, ok := result.Payload().Text()
	if !ok || text != "no matching records" {
		t.Errorf("text = %q, ok = %v", text, ok)
	}
}

func TestParameterRename(t *testing.T) {
	var seen map[string]any
	srv := &fakeServer{onCall: func(name string, args map[string]any) (string, bool) {
		seen = args
		return `{"code": "E001"}`, false
	}}
	b := newTestBridge(t, srv)
	connect(t, b)

	result := b.Call(context.Background(), "get_troubleshooting_help", map[string]any{"fault_code": "E001"})
	if !result.OK() {
		t.Fatalf("call failed: %s", result.ErrorMessage())
	}
	if _, ok := seen["fault_code"]; ok {
		t.Error("abstract parameter name leaked to the backend")
	}
	if seen["code"] != "E001" {
		t.Errorf("renamed parameter = %v", seen["code"])
	}
}

func TestSentinelSkipsBackend(t *testing.T) {
	b := newTestBridge(t, &fakeServer{})
	// No Connect: the sentinel works without a session.

	result := b.Call(context.Background(), types.AnswerFunction, map[string]any{"answer": "All presses are fine."})
	if !result.OK() {
		t.Fatalf("sentinel call failed: %s", result.ErrorMessage())
	}
	text, _ := result.Payload().Text()
	if text != "All presses are fine." {
		t.Errorf("answer = %q", text)
	}
	if b.Invocations() != 0 {
		t.Errorf("sentinel reached the backend: invocations = %d", b.Invocations())
	}
}

func TestSentinelDefaultAnswer(t *testing.T) {
	b := newTestBridge(t, &fakeServer{})
	result := b.Call(context.Background(), types.AnswerFunction, map[string]any{})
	text, _ := result.Payload().Text()
	if text != "No answer provided" {
		t.Errorf("default answer = %q", text)
	}
}

func TestNotConnected(t *testing.T) {
	b := newTestBridge(t, &fakeServer{})

	result := b.Call(context.Background(), "search_equipment", nil)
	if result.OK() {
		t.Fatal("call should fail before connect")
	}
	if !strings.Contains(result.ErrorMessage(), "not connected") {
		t.Errorf("error = %q", result.ErrorMessage())
	}
}

func TestUnknownFunction(t *testing.T) {
	b := newTestBridge(t, &fakeServer{onCall: func(string, map[string]any) (string, bool) { return "", false }})
	connect(t, b)

	result := b.Call(context.Background(), "made_up_tool", nil)
	if result.OK() || !strings.Contains(result.ErrorMessage(), "unknown function") {
		t.Errorf("result = %v %q", result.OK(), result.ErrorMessage())
	}
	if b.Invocations() != 0 {
		t.Error("unknown function should not reach the backend")
	}
}

func TestBackendErrorResult(t *testing.T) {
	srv := &fakeServer{onCall: func(string, map[string]any) (string, bool) {
		return "unknown fault code: Z999", true
	}}
	b := newTestBridge(t, srv)
	connect(t, b)

	result := b.Call(context.Background(), "get_troubleshooting_help", map[string]any{"fault_code": "Z999"})
	if result.OK() {
		t.Fatal("isError result should fail the call")
	}
	if !strings.Contains(result.ErrorMessage(), "unknown fault code") {
		t.Errorf("error = %q", result.ErrorMessage())
	}
}

func TestCallTimeout(t *testing.T) {
	b := newTestBridge(t, &fakeServer{onCall: nil}) // never answers tools/call
	connect(t, b)

	result := b.Call(context.Background(), "search_equipment", nil)
	if result.OK() {
		t.Fatal("unanswered call should fail")
	}
	if !strings.Contains(result.ErrorMessage(), "timed out") {
		t.Errorf("error = %q", result.ErrorMessage())
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	b := newTestBridge(t, &fakeServer{})
	connect(t, b)

	b.Disconnect()
	if b.IsConnected() {
		t.Error("still connected after disconnect")
	}
	b.Disconnect() // second call must be a no-op

	result := b.Call(context.Background(), "search_equipment", nil)
	if result.OK() {
		t.Error("call should fail after disconnect")
	}
}
