// ABOUTME: Tests for the MCP HTTP server including envelope validation, routing and tool execution.
// ABOUTME: Drives the handler through httptest with the real builtin packs on a memory store.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/2389/cmf-gateway/internal/builtins"
	"github.com/2389/cmf-gateway/internal/metrics"
	"github.com/2389/cmf-gateway/internal/packs"
	"github.com/2389/cmf-gateway/internal/store"
)

var financeHandshake = Handshake{ServerName: "mcp-open-finance", ServerVersion: "0.6.0", ProtocolVersion: "2024-11-05"}

var astroHandshake = Handshake{ServerName: "mcp-astro", ServerVersion: "0.2.0", EchoProtocolVersion: true}

type testServer struct {
	mux     *http.ServeMux
	metrics *metrics.Gateway
}

// setupTestServer creates a server serving the given packs.
func setupTestServer(t *testing.T, hs Handshake, extra ...*packs.BuiltinPack) *testServer {
	t.Helper()

	registry := packs.NewRegistry(slog.Default())
	s := store.NewMemoryStore(store.Options{Now: func() time.Time {
		return time.Date(2025, 10, 31, 9, 0, 0, 0, time.UTC)
	}})
	if hs.EchoProtocolVersion {
		extra = append([]*packs.BuiltinPack{builtins.AstroPack()}, extra...)
	} else {
		extra = append([]*packs.BuiltinPack{builtins.FinancePack(s)}, extra...)
	}
	for _, p := range extra {
		if err := registry.RegisterBuiltinPack(p); err != nil {
			t.Fatalf("failed to register pack: %v", err)
		}
	}

	m := metrics.NewGateway()
	server, err := NewServer(Config{
		Registry:     registry,
		Router:       packs.NewRouter(packs.RouterConfig{Registry: registry, Logger: slog.Default()}),
		Logger:       slog.Default(),
		Metrics:      m,
		Handshake:    hs,
		MaxBodyBytes: 1024,
		LogTruncate:  100,
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return &testServer{mux: mux, metrics: m}
}

// post sends body to /mcp and returns the recorder.
func (ts *testServer) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error"`
}

// rpc posts body, requires HTTP 200 and decodes the envelope.
func (ts *testServer) rpc(t *testing.T, body string) rawResponse {
	t.Helper()
	rr := ts.post(t, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp rawResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

// toolText extracts the text payload of a tools/call result.
func toolText(t *testing.T, resp rawResponse) string {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result MCPCallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("expected one text content block, got %+v", result.Content)
	}
	return result.Content[0].Text
}

func TestEnvelopeValidation(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{"wrong version echoes numeric id", `{"jsonrpc":"1.0","id":7,"method":"tools/list"}`, `7`},
		{"missing version echoes string id", `{"id":"abc","method":"tools/list"}`, `"abc"`},
		{"numeric version", `{"jsonrpc":2.0,"id":1,"method":"tools/list"}`, `1`},
		{"object id becomes null", `{"jsonrpc":"1.0","id":{"x":1},"method":"tools/list"}`, `null`},
		{"method not a string", `{"jsonrpc":"2.0","id":3,"method":42}`, `3`},
		{"missing method", `{"jsonrpc":"2.0","id":3}`, `3`},
		{"null method", `{"jsonrpc":"2.0","id":3,"method":null}`, `3`},
		{"null method without id", `{"jsonrpc":"2.0","method":null}`, `null`},
		{"request without id", `{"jsonrpc":"2.0","method":"tools/list"}`, `null`},
		{"boolean id", `{"jsonrpc":"2.0","id":true,"method":"initialize"}`, `null`},
		{"null id on a request", `{"jsonrpc":"2.0","id":null,"method":"tools/call"}`, `null`},
		{"non-object body", `[{"jsonrpc":"2.0","id":1,"method":"tools/list"}]`, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.rpc(t, tt.body)
			if resp.Error == nil || resp.Error.Code != JSONRPCInvalidRequest {
				t.Fatalf("expected -32600, got %+v", resp.Error)
			}
			if resp.Error.Message != "Invalid Request (JSON-RPC 2.0)" {
				t.Errorf("unexpected message %q", resp.Error.Message)
			}
			if string(resp.ID) != tt.wantID {
				t.Errorf("expected id %s, got %s", tt.wantID, resp.ID)
			}
			if resp.Result != nil {
				t.Error("error response must not carry a result")
			}
		})
	}
}

func TestParseError(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	for _, body := range []string{`{"jsonrpc":`, `not json`, `{} {}`} {
		resp := ts.rpc(t, body)
		if resp.Error == nil || resp.Error.Code != JSONRPCParseError {
			t.Errorf("body %q: expected -32700, got %+v", body, resp.Error)
		}
		if string(resp.ID) != "null" {
			t.Errorf("body %q: expected null id, got %s", body, resp.ID)
		}
	}
}

func TestOnlyPostIsAllowed(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", rr.Header().Get("Allow"))
	}
}

func TestBodyTooLarge(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"pad":"` + strings.Repeat("x", 2048) + `"}}`
	resp := ts.rpc(t, body)
	if resp.Error == nil || resp.Error.Code != JSONRPCInvalidRequest {
		t.Fatalf("expected -32600, got %+v", resp.Error)
	}
}

func TestInitializedNotification(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	for _, body := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":5,"method":"notifications/initialized","params":{}}`,
	} {
		rr := ts.post(t, body)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if got := strings.TrimSpace(rr.Body.String()); got != `{"jsonrpc":"2.0","id":null,"result":{}}` {
			t.Errorf("unexpected body %s", got)
		}
	}
}

func TestInitialize_FixedProtocolVersion(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	rr := ts.post(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"curl","version":"0.0.1"}}}`)
	want := `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"mcp-open-finance","version":"0.6.0"},"capabilities":{"tools":{}}}}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Errorf("unexpected initialize response:\n got %s\nwant %s", got, want)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestInitialize_EchoProtocolVersion(t *testing.T) {
	ts := setupTestServer(t, astroHandshake)

	resp := ts.rpc(t, `{"jsonrpc":"2.0","id":"init","method":"initialize","params":{"protocolVersion":"2024-06-01"}}`)
	if string(resp.ID) != `"init"` {
		t.Errorf("expected id \"init\", got %s", resp.ID)
	}
	want := `{"protocolVersion":"2024-06-01","serverInfo":{"name":"mcp-astro","version":"0.2.0"},"capabilities":{"tools":{}}}`
	if string(resp.Result) != want {
		t.Errorf("unexpected result:\n got %s\nwant %s", resp.Result, want)
	}

	resp = ts.rpc(t, `{"jsonrpc":"2.0","id":2,"method":"initialize"}`)
	if bytes.Contains(resp.Result, []byte("protocolVersion")) {
		t.Errorf("expected protocolVersion to be omitted, got %s", resp.Result)
	}
}

func TestToolsList(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	first := ts.rpc(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)
	second := ts.rpc(t, `{"jsonrpc":"2.0","id":3,"method":"tools/list","params":{"ignored":true}}`)

	if !bytes.Equal(first.Result, second.Result) {
		t.Errorf("tools/list results differ:\n%s\n%s", first.Result, second.Result)
	}

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(first.Result, &result); err != nil {
		t.Fatalf("failed to decode tools: %v", err)
	}
	if len(result.Tools) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(result.Tools))
	}
	if result.Tools[0].Name != "cmf.consent.status" || result.Tools[6].Name != "cmf.events.emit" {
		t.Errorf("unexpected order: first %s, last %s", result.Tools[0].Name, result.Tools[6].Name)
	}
	if !bytes.Contains(result.Tools[3].InputSchema, []byte(`"required":["accountId","from","to"]`)) {
		t.Errorf("unexpected tx.search schema %s", result.Tools[3].InputSchema)
	}
}

func TestToolsCall_ConsentFlow(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)
	args := `"customerId":"cust-001","resource":"transactions","scope":"TRANSACTIONS_READ"`

	status := ts.rpc(t, `{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"cmf.consent.status","arguments":{`+args+`}}}`)
	if string(status.ID) != "10" {
		t.Errorf("expected id 10, got %s", status.ID)
	}
	if got := toolText(t, status); got != `{"status":"inactive","expiresAt":""}` {
		t.Errorf("unexpected status before grant: %s", got)
	}

	grant := ts.rpc(t, `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"cmf.consent.grant","arguments":{`+args+`,"durationDays":30}}}`)
	if got := toolText(t, grant); got != `{"granted":true,"expiresAt":"2025-11-30"}` {
		t.Errorf("unexpected grant: %s", got)
	}

	status = ts.rpc(t, `{"jsonrpc":"2.0","id":"s-2","method":"tools/call","params":{"name":"cmf.consent.status","arguments":{`+args+`}}}`)
	if string(status.ID) != `"s-2"` {
		t.Errorf("expected id \"s-2\", got %s", status.ID)
	}
	if got := toolText(t, status); got != `{"status":"active","expiresAt":"2025-11-30"}` {
		t.Errorf("unexpected status after grant: %s", got)
	}
}

func TestToolsCall_MissingArguments(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	for _, params := range []string{`{"name":"cmf.accounts.list"}`, `{"name":"cmf.accounts.list","arguments":null}`} {
		resp := ts.rpc(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":`+params+`}`)
		if got := toolText(t, resp); got != `{"accounts":[]}` {
			t.Errorf("params %s: unexpected payload %s", params, got)
		}
	}
}

func TestToolsCall_UnknownTool(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	tests := []struct {
		body    string
		message string
	}{
		{`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"cmf.nope","arguments":{}}}`, "Unknown tool: cmf.nope"},
		{`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"astro.getSign"}}`, "Unknown tool: astro.getSign"},
		{`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{}}`, "Unknown tool: undefined"},
		{`{"jsonrpc":"2.0","id":4,"method":"tools/call"}`, "Unknown tool: undefined"},
		{`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":5}}`, "Unknown tool: 5"},
		{`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":null}}`, "Unknown tool: null"},
	}

	for _, tt := range tests {
		resp := ts.rpc(t, tt.body)
		if resp.Error == nil || resp.Error.Code != JSONRPCMethodNotFound {
			t.Fatalf("expected -32601 for %s, got %+v", tt.body, resp.Error)
		}
		if resp.Error.Message != tt.message {
			t.Errorf("expected message %q, got %q", tt.message, resp.Error.Message)
		}
		if string(resp.ID) != "4" {
			t.Errorf("expected id 4, got %s", resp.ID)
		}
	}

	if got := testutil.ToFloat64(ts.metrics.ToolCalls.WithLabelValues("unknown", metrics.OutcomeUnknown)); got != float64(len(tests)) {
		t.Errorf("expected %d unknown tool calls recorded, got %v", len(tests), got)
	}
}

func TestUnknownMethod(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	resp := ts.rpc(t, `{"jsonrpc":"2.0","id":9,"method":"resources/list"}`)
	if resp.Error == nil || resp.Error.Code != JSONRPCMethodNotFound {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
	if resp.Error.Message != "Method not found: resources/list" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}

	// Method matching is case-sensitive.
	resp = ts.rpc(t, `{"jsonrpc":"2.0","id":9,"method":"Tools/List"}`)
	if resp.Error == nil || resp.Error.Code != JSONRPCMethodNotFound {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
}

func TestToolsCall_ExecutionErrorIsGeneric(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	resp := ts.rpc(t, `{"jsonrpc":"2.0","id":12,"method":"tools/call","params":{"name":"cmf.consent.grant","arguments":{"durationDays":"soon"}}}`)
	if resp.Error == nil || resp.Error.Code != JSONRPCServerError {
		t.Fatalf("expected -32000, got %+v", resp.Error)
	}
	if resp.Error.Message != "Server error" {
		t.Errorf("internal detail leaked: %q", resp.Error.Message)
	}
	if got := testutil.ToFloat64(ts.metrics.ToolCalls.WithLabelValues("cmf.consent.grant", metrics.OutcomeError)); got != 1 {
		t.Errorf("expected one error outcome recorded, got %v", got)
	}
}

func TestToolsCall_PanicIsRecovered(t *testing.T) {
	boom := &packs.BuiltinPack{
		ID: "builtin:boom",
		Tools: []*packs.BuiltinTool{{
			Definition: packs.ToolDefinition{Name: "boom", Description: "panics", InputSchema: json.RawMessage(`{"type":"object"}`)},
			Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
				panic("secret internal state")
			},
		}},
	}
	ts := setupTestServer(t, financeHandshake, boom)

	rr := ts.post(t, `{"jsonrpc":"2.0","id":13,"method":"tools/call","params":{"name":"boom"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret") {
		t.Errorf("panic detail leaked: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"code":-32000`) {
		t.Errorf("expected -32000, got %s", rr.Body.String())
	}
}

func TestAstroVariantTools(t *testing.T) {
	ts := setupTestServer(t, astroHandshake)

	resp := ts.rpc(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"astro.getSign","arguments":{"date":"1993-07-11"}}}`)
	if got := toolText(t, resp); got != `{"sign":"Cancer"}` {
		t.Errorf("unexpected payload %s", got)
	}

	resp = ts.rpc(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"cmf.accounts.list","arguments":{}}}`)
	if resp.Error == nil || resp.Error.Code != JSONRPCMethodNotFound {
		t.Errorf("expected finance tools to be absent, got %+v", resp.Error)
	}
}

func TestRPCMetrics(t *testing.T) {
	ts := setupTestServer(t, financeHandshake)

	ts.rpc(t, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	ts.rpc(t, `{"jsonrpc":"2.0","id":2,"method":"bogus"}`)
	ts.rpc(t, `not json`)

	if got := testutil.ToFloat64(ts.metrics.RPCRequests.WithLabelValues("initialize", "0")); got != 1 {
		t.Errorf("expected 1 initialize, got %v", got)
	}
	if got := testutil.ToFloat64(ts.metrics.RPCRequests.WithLabelValues("other", "-32601")); got != 1 {
		t.Errorf("expected 1 unknown method, got %v", got)
	}
	if got := testutil.ToFloat64(ts.metrics.RPCRequests.WithLabelValues("other", "-32700")); got != 1 {
		t.Errorf("expected 1 parse error, got %v", got)
	}
}

func TestNewServerRequiresDependencies(t *testing.T) {
	registry := packs.NewRegistry(nil)
	router := packs.NewRouter(packs.RouterConfig{Registry: registry})

	cases := []Config{
		{Router: router, Handshake: financeHandshake},
		{Registry: registry, Handshake: financeHandshake},
		{Registry: registry, Router: router},
		{Registry: registry, Router: router, Handshake: Handshake{ServerName: "x"}},
	}
	for i, cfg := range cases {
		if _, err := NewServer(cfg); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}

	if _, err := NewServer(Config{Registry: registry, Router: router, Handshake: astroHandshake}); err != nil {
		t.Errorf("echo handshake needs no fixed version: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abcd…(+2)" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncate("añb", 2); got != "añ…(+1)" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncate("anything", 0); got != "anything" {
		t.Errorf("zero must disable truncation, got %q", got)
	}
}
