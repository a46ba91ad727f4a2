// ABOUTME: Thread-safe registry for tool packs and their tools in the gateway.
// ABOUTME: Keeps registration order so tools/list is fixed-size and fixed-order.

package packs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrToolCollision indicates a tool name already exists from another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidTool indicates a tool without a name, handler or object schema.
var ErrInvalidTool = errors.New("invalid tool")

// Registry maintains the catalog of builtin packs and their tools.
type Registry struct {
	mu       sync.RWMutex
	order    []string                 // tool names in registration order
	packIDs  []string                 // pack IDs in registration order
	builtins map[string]*builtinEntry // builtin tool name -> builtin entry
	logger   *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// RegisterBuiltinPack registers a pack of built-in tools that execute in-process.
// Returns error if any tool is malformed or its name collides with an existing tool;
// nothing from the pack is registered in that case.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(pack.Tools))
	for _, tool := range pack.Tools {
		name := tool.Definition.Name
		if name == "" || tool.Handler == nil || len(tool.Definition.InputSchema) == 0 {
			return fmt.Errorf("%w: %q in pack '%s'", ErrInvalidTool, name, pack.ID)
		}
		if entry, exists := r.builtins[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, entry.PackID)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: tool '%s' appears twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		seen[name] = struct{}{}
	}

	for _, tool := range pack.Tools {
		name := tool.Definition.Name
		r.builtins[name] = &builtinEntry{
			Tool:   tool,
			PackID: pack.ID,
		}
		r.order = append(r.order, name)
	}
	r.packIDs = append(r.packIDs, pack.ID)

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.order),
	)

	return nil
}

// GetBuiltinTool returns a builtin tool by exact name, or nil if not found.
func (r *Registry) GetBuiltinTool(name string) *BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.builtins[name]; ok {
		return entry.Tool
	}
	return nil
}

// ListTools returns every tool definition in registration order.
func (r *Registry) ListTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.builtins[name].Tool.Definition)
	}
	return defs
}

// BuiltinPackInfo contains information about a registered builtin pack for display.
type BuiltinPackInfo struct {
	ID        string
	ToolNames []string
}

// ListBuiltinPacks returns information about all registered builtin packs
// in registration order.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPack := make(map[string][]string, len(r.packIDs))
	for _, name := range r.order {
		id := r.builtins[name].PackID
		byPack[id] = append(byPack[id], name)
	}

	result := make([]BuiltinPackInfo, 0, len(r.packIDs))
	for _, id := range r.packIDs {
		result = append(result, BuiltinPackInfo{ID: id, ToolNames: byPack[id]})
	}
	return result
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
