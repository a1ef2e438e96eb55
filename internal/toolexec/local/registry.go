// Package local adapts an in-process tools.ToolRegistry to the
// toolexec.Client contract, for tests and deployments that don't need
// a separate Model Context Protocol server.
package local

import (
	"context"
	"encoding/json"
	"fmt"

	"meridian/internal/service/llm/tools"
	"meridian/internal/toolexec"
)

// Registry is a toolexec.Client backed by native Go tool
// implementations. Tool calls run sequentially by default; the
// underlying tools.ToolRegistry still exposes ExecuteParallel as an
// opt-in the Tool node does not currently exercise.
type Registry struct {
	inner       *tools.ToolRegistry
	descriptors []toolexec.ToolDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{inner: tools.NewToolRegistry()}
}

// Register adds one native tool, keyed by the descriptor's name.
func (r *Registry) Register(desc toolexec.ToolDescriptor, exec tools.ToolExecutor) {
	r.inner.Register(desc.Name, exec)
	r.descriptors = append(r.descriptors, desc)
}

// ListTools returns the descriptors of every registered tool.
func (r *Registry) ListTools(_ context.Context) ([]toolexec.ToolDescriptor, error) {
	out := make([]toolexec.ToolDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out, nil
}

// CallTool invokes a tool by name and renders its result as text for
// the model. Tool-level errors are wrapped in a *toolexec.ToolError
// so the graph's Tool node can fold them into ToolResult{is_error:true}
// without treating them as fatal.
func (r *Registry) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	result := r.inner.Execute(ctx, tools.ToolCall{Name: name, Input: arguments})
	if result.IsError {
		msg := "tool execution failed"
		if result.Error != nil {
			msg = result.Error.Error()
		}
		return "", &toolexec.ToolError{Message: msg, Timeout: ctx.Err() != nil}
	}

	switch v := result.Result.(type) {
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("local tool registry: marshal result for %q: %w", name, err)
		}
		return string(b), nil
	}
}
