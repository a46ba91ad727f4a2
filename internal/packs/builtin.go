// ABOUTME: Built-in tool types: definitions, handlers and packs.
// ABOUTME: Every tool in the gateway is a builtin that executes in-process.

package packs

import (
	"context"
	"encoding/json"
)

// ToolDefinition is the descriptor advertised by tools/list. Field order is
// the wire order.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolHandler is a function that executes a built-in tool.
// It receives the tool arguments as a JSON object (never null).
// Returns the result payload as JSON or an error.
type ToolHandler func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// BuiltinTool represents a tool that executes in the gateway process.
type BuiltinTool struct {
	Definition ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID for registry lookup.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
}
