// ABOUTME: JSON-RPC 2.0 envelope types, validation and response writers.
// ABOUTME: Envelopes are read field by field so mistyped members map to -32600, not a parse error.

package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// JSON-RPC 2.0 types

// JSONRPCResponse represents a JSON-RPC 2.0 response. A nil ID encodes as null.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCServerError    = -32000
)

// Client-visible error messages
const (
	msgParseError     = "Parse error"
	msgInvalidRequest = "Invalid Request (JSON-RPC 2.0)"
	msgServerError    = "Server error"
)

// Methods
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// envelope is a request object with each member kept raw.
type envelope struct {
	fields map[string]json.RawMessage
	method string
	id     json.RawMessage // valid string or number id, else nil
	params json.RawMessage
}

// parseEnvelope decodes body. It fails only for bodies that are not JSON;
// valid JSON that is not an object yields an envelope with no members.
func parseEnvelope(body []byte) (*envelope, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errTrailingData
	}

	env := &envelope{fields: map[string]json.RawMessage{}}
	if _, ok := v.(map[string]any); !ok {
		return env, nil
	}
	if err := json.Unmarshal(body, &env.fields); err != nil {
		return nil, err
	}

	env.method, _ = stringField(env.fields, "method")
	if isValidID(env.fields["id"]) {
		env.id = env.fields["id"]
	}
	env.params = env.fields["params"]
	return env, nil
}

// validate applies the envelope checks in order: version, method type, id type.
func (e *envelope) validate() bool {
	if v, ok := stringField(e.fields, "jsonrpc"); !ok || v != "2.0" {
		return false
	}
	if _, ok := stringField(e.fields, "method"); !ok {
		return false
	}
	if e.id == nil && e.method != MethodInitialized {
		return false
	}
	return true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	return decodeString(raw)
}

// decodeString decodes raw only when it is a JSON string token. JSON null
// would otherwise unmarshal into "" and pass as a string.
func decodeString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// isValidID reports whether raw is a JSON string or number.
func isValidID(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch c := raw[0]; {
	case c == '"':
		return true
	case c == '-' || (c >= '0' && c <= '9'):
		return true
	default:
		return false
	}
}

// writeJSON writes v as the HTTP 200 response body.
func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func resultResponse(id json.RawMessage, result any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &JSONRPCError{Code: code, Message: message}}
}
