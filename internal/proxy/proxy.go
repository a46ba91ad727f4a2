// ABOUTME: Passthrough/logging proxy that relays JSON-RPC envelopes to an upstream gateway
// ABOUTME: Bodies are forwarded byte for byte; each call is recorded as a LogEvent

package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/cmf-gateway/internal/mcp"
	"github.com/2389/cmf-gateway/internal/metrics"
)

// DefaultTimeout bounds each upstream round trip when Config leaves it unset.
const DefaultTimeout = 30 * time.Second

// DefaultMaxBody caps logged body snippets when Config leaves it unset.
const DefaultMaxBody = 200

// LogPath serves and drains the event log.
const LogPath = "/proxy-log"

var errNonJSON = errors.New("upstream returned a non-JSON body")

// Config holds configuration for the proxy.
type Config struct {
	// Upstream is the full URL of the gateway's MCP endpoint.
	Upstream string
	// Path is the inbound MCP route, defaults to mcp.DefaultPath.
	Path string
	// Timeout bounds the upstream call, defaults to DefaultTimeout.
	Timeout time.Duration
	// DerivePhase tags calls that carry no ?phase= from their method.
	DerivePhase bool
	// LogBodies records request and response snippets on each event.
	LogBodies bool
	// MaxBody caps snippets, defaults to DefaultMaxBody.
	MaxBody int
	// MaxRequestBytes defaults to mcp.DefaultMaxRequestBodySize.
	MaxRequestBytes int64

	// Client overrides the upstream HTTP client; Timeout is ignored when set.
	Client  *http.Client
	Logger  *slog.Logger
	Metrics *metrics.Proxy
	// Console renders events as they happen; nil disables rendering.
	Console *Console
	// Now defaults to time.Now.
	Now func() time.Time
}

// Proxy relays MCP calls and keeps a drainable telemetry log.
type Proxy struct {
	upstream    string
	path        string
	derivePhase bool
	logBodies   bool
	maxBody     int
	maxRequest  int64
	client      *http.Client
	logger      *slog.Logger
	metrics     *metrics.Proxy
	console     *Console
	now         func() time.Time
	events      *EventLog
}

// New creates a proxy for the given upstream.
func New(cfg Config) (*Proxy, error) {
	if cfg.Upstream == "" {
		return nil, errors.New("upstream URL is required")
	}

	p := &Proxy{
		upstream:    cfg.Upstream,
		path:        cfg.Path,
		derivePhase: cfg.DerivePhase,
		logBodies:   cfg.LogBodies,
		maxBody:     cfg.MaxBody,
		maxRequest:  cfg.MaxRequestBytes,
		client:      cfg.Client,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		console:     cfg.Console,
		now:         cfg.Now,
		events:      NewEventLog(),
	}
	if p.path == "" {
		p.path = mcp.DefaultPath
	}
	if p.maxBody <= 0 {
		p.maxBody = DefaultMaxBody
	}
	if p.maxRequest <= 0 {
		p.maxRequest = mcp.DefaultMaxRequestBodySize
	}
	if p.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		p.client = &http.Client{Timeout: timeout}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// RegisterRoutes registers the MCP relay and the event log endpoint.
func (p *Proxy) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(p.path, p.handleMCP)
	mux.HandleFunc(LogPath, p.handleLog)
}

// Events exposes the telemetry log.
func (p *Proxy) Events() *EventLog {
	return p.events
}

// Path returns the inbound MCP route.
func (p *Proxy) Path() string {
	return p.path
}

// inbound holds the fields the proxy reads from an envelope without
// interpreting it.
type inbound struct {
	id        json.RawMessage
	method    string
	tool      string
	arguments json.RawMessage
}

func parseInbound(body []byte) inbound {
	var env struct {
		ID     json.RawMessage `json:"id"`
		Method any             `json:"method"`
		Params struct {
			Name      any             `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"params"`
	}
	// Mistyped members leave zero values; the upstream judges validity.
	_ = json.Unmarshal(body, &env)

	in := inbound{arguments: env.Params.Arguments}
	in.method, _ = env.Method.(string)
	in.tool, _ = env.Params.Name.(string)
	if isStringOrNumber(env.ID) {
		in.id = env.ID
	}
	return in
}

func isStringOrNumber(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '"' || c == '-' || (c >= '0' && c <= '9')
}

// derivePhase tags a call by its place in the MCP session.
func derivePhase(in inbound) string {
	switch in.method {
	case mcp.MethodInitialize:
		return "init"
	case mcp.MethodToolsList:
		return "discover"
	case mcp.MethodToolsCall:
		if in.tool == "" {
			return "call:unknown"
		}
		return "call:" + in.tool
	case "":
		return "unknown"
	default:
		return in.method
	}
}

// handleMCP accepts only POST.
func (p *Proxy) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	p.handleForward(w, r)
}

func (p *Proxy) handleForward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, p.maxRequest+1))
	if err != nil {
		p.logger.Warn("failed to read request body", "error", err)
		writeStatus(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if int64(len(body)) > p.maxRequest {
		writeStatus(w, http.StatusRequestEntityTooLarge, "request too large")
		return
	}
	if !json.Valid(body) {
		writeStatus(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	in := parseInbound(body)
	phase := r.URL.Query().Get("phase")
	if phase == "" && p.derivePhase {
		phase = derivePhase(in)
	}

	start := p.now()
	ev := LogEvent{
		ID:        in.id,
		Method:    in.method,
		Tool:      in.tool,
		Arguments: in.arguments,
		Phase:     phase,
		StartedAt: start.UnixMilli(),
	}
	if p.logBodies {
		ev.ReqSnippet = snippet(string(body), p.maxBody)
	}
	ev = p.events.Begin(ev)
	p.metrics.SetBuffered(p.events.Len())
	p.console.Started(ev)

	status, respBody, err := p.roundTrip(r, body)
	ev.EndedAt = p.now().UnixMilli()
	elapsed := p.now().Sub(start)

	if err != nil {
		ev.Status = http.StatusBadGateway
		ev.Error = err.Error()
		p.finish(ev, "error", elapsed)
		p.logger.Warn("upstream call failed", "id", string(in.id), "method", in.method, "error", err)
		writeProxyError(w, in.id, err)
		return
	}

	ev.Status = status
	if p.logBodies {
		ev.RespSnippet = snippet(string(respBody), p.maxBody)
	}
	p.finish(ev, strconv.Itoa(status), elapsed)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(respBody)
}

// roundTrip posts body upstream and returns the status and JSON body.
func (p *Proxy) roundTrip(r *http.Request, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.upstream, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading upstream body: %w", err)
	}
	if !json.Valid(respBody) {
		return 0, nil, fmt.Errorf("%w (HTTP %d)", errNonJSON, resp.StatusCode)
	}
	return resp.StatusCode, respBody, nil
}

func (p *Proxy) finish(ev LogEvent, status string, elapsed time.Duration) {
	p.events.Finish(ev)
	p.metrics.ObserveForward(methodLabel(ev.Method), status, elapsed)
	p.console.Finished(ev)
}

// methodLabel bounds metric cardinality to the MCP methods.
func methodLabel(method string) string {
	switch method {
	case mcp.MethodInitialize, mcp.MethodInitialized, mcp.MethodToolsList, mcp.MethodToolsCall:
		return method
	default:
		return "other"
	}
}

// handleLog returns and clears the buffered events.
func (p *Proxy) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	events := p.events.Drain()
	p.metrics.SetBuffered(p.events.Len())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		OK     bool       `json:"ok"`
		Events []LogEvent `json:"events"`
	}{OK: true, Events: events})
}

func writeStatus(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{OK: false, Error: message})
}

// writeProxyError answers with HTTP 502 and a -32000 envelope carrying id.
func writeProxyError(w http.ResponseWriter, id json.RawMessage, cause error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &mcp.JSONRPCError{Code: mcp.JSONRPCServerError, Message: "Proxy error: " + cause.Error()},
	})
}
