// Package toolexec defines the contract the graph's Tool node consumes.
// Production deployments reach tool servers over the Model Context
// Protocol (internal/toolexec/mcp); internal/toolexec/local wraps native
// Go tools behind the same contract for tests and simple deployments.
package toolexec

import "context"

// ToolDescriptor is handed to the LLM client at request time so the
// model knows which tools it may call.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolError is the structured error a failed or timed-out tool call
// produces. The graph's Tool node folds it into a ToolResult with
// IsError set rather than treating it as fatal.
type ToolError struct {
	Message string
	Timeout bool
}

func (e *ToolError) Error() string { return e.Message }

// Client is the capability contract the graph consumes from a tool
// backend: enumerate callable tools, and invoke one by name.
type Client interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
}
