// Package packs provides the tool catalog and dispatch table behind tools/list
// and tools/call.
//
// # Overview
//
// Tools are grouped into packs. Each tool pairs a ToolDefinition (name,
// description, JSON Schema) with an in-process ToolHandler. The set of tools
// is fixed once the gateway starts.
//
// # Architecture
//
//   - Registry: ordered catalog of builtin packs and their tools
//   - Router: resolves a tool name to its handler and runs it
//   - Built-in packs: the tools themselves (see internal/builtins)
//
// # Ordering
//
// ListTools returns tools in registration order, so tools/list is fixed-size
// and fixed-order across calls.
//
// # Errors
//
// RouteToolCall returns ErrToolNotFound (wrapped) for names that are not
// registered; lookup is exact and case-sensitive. Any other error is an
// execution failure, including ErrToolPanic when a handler panics.
package packs
