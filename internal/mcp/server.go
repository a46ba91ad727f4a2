// ABOUTME: MCP JSON-RPC endpoint: handshake, tool discovery and tool invocation over HTTP POST.
// ABOUTME: Protocol failures are JSON-RPC errors with HTTP 200; only non-POST and unreadable bodies fail at HTTP level.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/2389/cmf-gateway/internal/metrics"
	"github.com/2389/cmf-gateway/internal/packs"
)

// DefaultMaxRequestBodySize is the request body limit when Config leaves it unset (4MB).
const DefaultMaxRequestBodySize = 4 << 20

// DefaultPath is the MCP endpoint path when Config leaves it unset.
const DefaultPath = "/mcp"

var errTrailingData = errors.New("unexpected data after JSON value")

// MCP-specific types

// ServerInfo identifies the gateway in initialize responses.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities advertises tool support with an empty object.
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// InitializeResult is the result for initialize. Field order is the wire order.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion,omitempty"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []packs.ToolDefinition `json:"tools"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
}

// MCPContent represents content in a tool result. Tool results are always text.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Handshake controls the initialize response.
type Handshake struct {
	ServerName    string
	ServerVersion string
	// ProtocolVersion is advertised as-is unless EchoProtocolVersion is set.
	ProtocolVersion string
	// EchoProtocolVersion returns the caller's params.protocolVersion instead,
	// omitting the field when the caller sent none.
	EchoProtocolVersion bool
}

// Config holds configuration for the MCP server.
type Config struct {
	Registry  *packs.Registry
	Router    *packs.Router
	Logger    *slog.Logger
	Metrics   *metrics.Gateway
	Handshake Handshake
	// Path defaults to DefaultPath.
	Path string
	// MaxBodyBytes defaults to DefaultMaxRequestBodySize.
	MaxBodyBytes int64
	// LogTruncate caps logged payloads; zero disables truncation.
	LogTruncate int
}

// methodHandler computes the result or error for one validated envelope.
type methodHandler func(ctx context.Context, env *envelope, requestID string) (any, *JSONRPCError)

// Server implements the MCP JSON-RPC endpoint.
type Server struct {
	registry  *packs.Registry
	router    *packs.Router
	logger    *slog.Logger
	metrics   *metrics.Gateway
	handshake Handshake
	path      string
	maxBody   int64
	truncate  int
	methods   map[string]methodHandler
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Handshake.ServerName == "" {
		return nil, errors.New("handshake server name is required")
	}
	if !cfg.Handshake.EchoProtocolVersion && cfg.Handshake.ProtocolVersion == "" {
		return nil, errors.New("protocol version is required unless echoing the caller's")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry:  cfg.Registry,
		router:    cfg.Router,
		logger:    logger,
		metrics:   cfg.Metrics,
		handshake: cfg.Handshake,
		path:      cfg.Path,
		maxBody:   cfg.MaxBodyBytes,
		truncate:  cfg.LogTruncate,
	}
	if s.path == "" {
		s.path = DefaultPath
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxRequestBodySize
	}

	s.methods = map[string]methodHandler{
		MethodInitialize:  s.handleInitialize,
		MethodInitialized: s.handleInitialized,
		MethodToolsList:   s.handleToolsList,
		MethodToolsCall:   s.handleToolsCall,
	}

	return s, nil
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(s.path, s.handleMCP)
}

// Path returns the endpoint path.
func (s *Server) Path() string {
	return s.path
}

// handleMCP accepts only POST.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handlePost(w, r)
}

// handlePost processes one JSON-RPC envelope.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		s.logger.Warn("failed to read request body", "error", err)
		s.reply(w, "", errorResponse(nil, JSONRPCParseError, msgParseError))
		return
	}
	if int64(len(body)) > s.maxBody {
		s.logger.Warn("INVALID request body too large", "limit", s.maxBody)
		s.reply(w, "", errorResponse(nil, JSONRPCInvalidRequest, msgInvalidRequest))
		return
	}

	env, err := parseEnvelope(body)
	if err != nil {
		s.logger.Warn("INVALID unparseable body", "error", err, "body", truncate(string(body), s.truncate))
		s.reply(w, "", errorResponse(nil, JSONRPCParseError, msgParseError))
		return
	}

	if !env.validate() {
		s.logger.Warn("INVALID envelope",
			"id", idForLog(env.id),
			"body", truncate(string(body), s.truncate),
		)
		s.reply(w, "", errorResponse(env.id, JSONRPCInvalidRequest, msgInvalidRequest))
		return
	}

	handler, ok := s.methods[env.method]
	if !ok {
		s.logger.Warn("INVALID method not found", "id", idForLog(env.id), "method", env.method)
		s.reply(w, "", errorResponse(env.id, JSONRPCMethodNotFound, "Method not found: "+env.method))
		return
	}

	requestID := uuid.New().String()
	result, rpcErr := s.dispatch(r.Context(), handler, env, requestID)

	// The handshake notification is acknowledged with a null id.
	id := env.id
	if env.method == MethodInitialized {
		id = nil
	}

	var resp JSONRPCResponse
	if rpcErr != nil {
		resp = errorResponse(id, rpcErr.Code, rpcErr.Message)
	} else {
		resp = resultResponse(id, result)
	}

	s.logger.Debug("RESP",
		"id", idForLog(id),
		"method", env.method,
		"request_id", requestID,
		"ms", time.Since(start).Milliseconds(),
	)
	s.reply(w, env.method, resp)
}

// dispatch runs handler, converting a panic into a server error.
func (s *Server) dispatch(ctx context.Context, handler methodHandler, env *envelope, requestID string) (result any, rpcErr *JSONRPCError) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("ERROR handler panic",
				"id", idForLog(env.id),
				"method", env.method,
				"request_id", requestID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			result, rpcErr = nil, &JSONRPCError{Code: JSONRPCServerError, Message: msgServerError}
		}
	}()
	return handler(ctx, env, requestID)
}

// reply writes resp and counts it. method is empty for envelopes that never
// reached routing.
func (s *Server) reply(w http.ResponseWriter, method string, resp JSONRPCResponse) {
	code := "0"
	if resp.Error != nil {
		code = strconv.Itoa(resp.Error.Code)
	}
	if _, known := s.methods[method]; !known {
		method = "other"
	}
	s.metrics.IncrementRPC(method, code)

	if err := writeJSON(w, resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// handleInitialize answers the handshake.
func (s *Server) handleInitialize(_ context.Context, env *envelope, requestID string) (any, *JSONRPCError) {
	s.logger.Info("INIT",
		"id", idForLog(env.id),
		"request_id", requestID,
		"params", truncate(string(env.params), s.truncate),
	)

	result := InitializeResult{
		ServerInfo: ServerInfo{Name: s.handshake.ServerName, Version: s.handshake.ServerVersion},
	}
	if s.handshake.EchoProtocolVersion {
		result.ProtocolVersion = requestedProtocolVersion(env.params)
	} else {
		result.ProtocolVersion = s.handshake.ProtocolVersion
	}
	return result, nil
}

// requestedProtocolVersion returns params.protocolVersion when it is a string.
func requestedProtocolVersion(params json.RawMessage) string {
	var p struct {
		ProtocolVersion any `json:"protocolVersion"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ""
	}
	v, _ := p.ProtocolVersion.(string)
	return v
}

// handleInitialized acknowledges the handshake notification without side effects.
func (s *Server) handleInitialized(_ context.Context, env *envelope, _ string) (any, *JSONRPCError) {
	s.logger.Info("NOTIFY notifications/initialized", "params", truncate(string(env.params), s.truncate))
	return struct{}{}, nil
}

// handleToolsList returns the full registry; params are ignored.
func (s *Server) handleToolsList(_ context.Context, env *envelope, requestID string) (any, *JSONRPCError) {
	tools := s.registry.ListTools()
	s.logger.Info("LIST", "id", idForLog(env.id), "request_id", requestID, "tools", len(tools))
	return MCPListToolsResult{Tools: tools}, nil
}

// missingToolName is how an absent params.name reads in the error message.
const missingToolName = "undefined"

// callParams extracts the tool name and arguments. A missing or non-string
// name yields ok=false with a printable rendering for the error message.
func callParams(params json.RawMessage) (name string, args json.RawMessage, ok bool) {
	var p map[string]json.RawMessage
	if err := json.Unmarshal(params, &p); err != nil || p == nil {
		return missingToolName, nil, false
	}

	args = p["arguments"]
	if string(args) == "null" {
		args = nil
	}

	rawName, present := p["name"]
	if !present {
		return missingToolName, args, false
	}
	name, ok = decodeString(rawName)
	if !ok {
		return string(rawName), args, false
	}
	return name, args, true
}

// handleToolsCall runs a tool and wraps its payload as text content.
func (s *Server) handleToolsCall(ctx context.Context, env *envelope, requestID string) (any, *JSONRPCError) {
	name, args, ok := callParams(env.params)

	s.logger.Info("CALL",
		"id", idForLog(env.id),
		"tool", name,
		"request_id", requestID,
		"args", truncate(string(args), s.truncate),
	)

	if !ok || !s.router.HasTool(name) {
		s.logger.Warn("CALL unknown tool", "id", idForLog(env.id), "tool", name, "request_id", requestID)
		s.metrics.ObserveToolCall("unknown", metrics.OutcomeUnknown, 0)
		return nil, &JSONRPCError{Code: JSONRPCMethodNotFound, Message: "Unknown tool: " + name}
	}

	start := time.Now()
	payload, err := s.router.RouteToolCall(ctx, name, args, requestID)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, packs.ErrToolNotFound) {
			s.metrics.ObserveToolCall("unknown", metrics.OutcomeUnknown, 0)
			return nil, &JSONRPCError{Code: JSONRPCMethodNotFound, Message: "Unknown tool: " + name}
		}
		s.logger.Error("ERROR tool execution failed",
			"id", idForLog(env.id),
			"tool", name,
			"request_id", requestID,
			"error", err,
		)
		s.metrics.ObserveToolCall(name, metrics.OutcomeError, elapsed)
		return nil, &JSONRPCError{Code: JSONRPCServerError, Message: msgServerError}
	}

	s.metrics.ObserveToolCall(name, metrics.OutcomeOK, elapsed)
	s.logger.Debug("RESP",
		"id", idForLog(env.id),
		"tool", name,
		"request_id", requestID,
		"result", truncate(string(payload), s.truncate),
		"ms", elapsed.Milliseconds(),
	)

	return MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(payload)}},
	}, nil
}

// idForLog renders an id for log attributes.
func idForLog(id json.RawMessage) string {
	if id == nil {
		return "null"
	}
	return string(id)
}

// truncate caps s at max characters, noting how many were dropped.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + fmt.Sprintf("…(+%d)", len(runes)-max)
}
