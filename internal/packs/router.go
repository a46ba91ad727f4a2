// ABOUTME: Routes tool calls to the registered builtin handler by exact name.
// ABOUTME: Recovers handler panics so one bad tool never takes down the gateway.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolPanic indicates the tool handler panicked.
var ErrToolPanic = errors.New("tool handler panicked")

// Router routes tool calls to the appropriate builtin handler.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: cfg.Registry,
		logger:   logger,
	}
}

// RouteToolCall runs the named tool with input. A nil or empty input is
// passed to the handler as {}. Returns ErrToolNotFound for unknown names;
// any other error is an execution failure of the tool itself.
func (r *Router) RouteToolCall(ctx context.Context, toolName string, input json.RawMessage, requestID string) (json.RawMessage, error) {
	builtin := r.registry.GetBuiltinTool(toolName)
	if builtin == nil {
		r.logger.Debug("tool not found in registry",
			"tool_name", toolName,
			"request_id", requestID,
		)
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	r.logger.Debug("→ dispatching to builtin",
		"tool_name", toolName,
		"request_id", requestID,
	)

	result, err := r.invoke(ctx, builtin, input)
	if err != nil {
		r.logger.Warn("builtin tool error",
			"tool_name", toolName,
			"request_id", requestID,
			"error", err,
		)
		return nil, fmt.Errorf("tool %s: %w", toolName, err)
	}

	r.logger.Debug("← builtin responded",
		"tool_name", toolName,
		"request_id", requestID,
	)
	return result, nil
}

func (r *Router) invoke(ctx context.Context, tool *BuiltinTool, input json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("builtin tool panic",
				"tool_name", tool.Definition.Name,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			result, err = nil, fmt.Errorf("%w: %v", ErrToolPanic, p)
		}
	}()
	return tool.Handler(ctx, input)
}

// HasTool checks if a tool with the given name exists in the registry.
func (r *Router) HasTool(toolName string) bool {
	return r.registry.GetBuiltinTool(toolName) != nil
}

// GetToolDefinition returns the tool definition for a given tool name.
// Returns nil if the tool is not found.
func (r *Router) GetToolDefinition(toolName string) *ToolDefinition {
	builtin := r.registry.GetBuiltinTool(toolName)
	if builtin == nil {
		return nil
	}
	def := builtin.Definition
	return &def
}
