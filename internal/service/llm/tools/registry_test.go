package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockTool struct {
	name       string
	shouldFail bool
}

func (m *mockTool) Execute(_ context.Context, input map[string]interface{}) (interface{}, error) {
	if m.shouldFail {
		return nil, errors.New("mock tool failed")
	}
	return map[string]interface{}{"tool": m.name, "input": input}, nil
}

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	registry := NewToolRegistry()
	tool := &mockTool{name: "test_tool"}
	registry.Register("test_tool", tool)

	require.Same(t, tool, registry.Get("test_tool"))
	require.Nil(t, registry.Get("non_existent"))
}

func TestToolRegistry_Execute(t *testing.T) {
	registry := NewToolRegistry()
	ctx := context.Background()

	t.Run("successful execution", func(t *testing.T) {
		registry.Register("success_tool", &mockTool{name: "success_tool"})
		result := registry.Execute(ctx, ToolCall{ID: "call_1", Name: "success_tool", Input: map[string]interface{}{"param": "value"}})

		require.False(t, result.IsError)
		require.Equal(t, "call_1", result.ID)
		require.NotNil(t, result.Result)
	})

	t.Run("tool not found", func(t *testing.T) {
		result := registry.Execute(ctx, ToolCall{ID: "call_2", Name: "non_existent_tool"})

		require.True(t, result.IsError)
		require.Error(t, result.Error)
	})

	t.Run("tool execution failure", func(t *testing.T) {
		registry.Register("fail_tool", &mockTool{name: "fail_tool", shouldFail: true})
		result := registry.Execute(ctx, ToolCall{ID: "call_3", Name: "fail_tool"})

		require.True(t, result.IsError)
		require.Error(t, result.Error)
	})

	t.Run("context cancellation still routes through the registered tool", func(t *testing.T) {
		registry.Register("noop_tool", &mockTool{name: "noop_tool"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := registry.Execute(ctx, ToolCall{ID: "call_4", Name: "noop_tool"})
		require.False(t, result.IsError)
	})
}

func TestToolRegistry_ExecuteParallel(t *testing.T) {
	t.Run("empty calls", func(t *testing.T) {
		registry := NewToolRegistry()
		results := registry.ExecuteParallel(context.Background(), []ToolCall{})
		require.Empty(t, results)
	})

	t.Run("order preservation across mixed outcomes", func(t *testing.T) {
		registry := NewToolRegistry()
		registry.Register("success_tool", &mockTool{name: "success_tool"})
		registry.Register("fail_tool", &mockTool{name: "fail_tool", shouldFail: true})

		calls := []ToolCall{
			{ID: "call_0", Name: "success_tool"},
			{ID: "call_1", Name: "fail_tool"},
			{ID: "call_2", Name: "non_existent"},
			{ID: "call_3", Name: "success_tool"},
		}
		results := registry.ExecuteParallel(context.Background(), calls)

		require.Len(t, results, 4)
		for i, result := range results {
			require.Equal(t, fmt.Sprintf("call_%d", i), result.ID)
		}
		require.False(t, results[0].IsError)
		require.True(t, results[1].IsError)
		require.True(t, results[2].IsError)
		require.False(t, results[3].IsError)
	})

	t.Run("cancelled context fails every call", func(t *testing.T) {
		registry := NewToolRegistry()
		registry.Register("tool_0", &mockTool{name: "tool_0"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := registry.ExecuteParallel(ctx, []ToolCall{{ID: "call_0", Name: "tool_0"}})
		require.Len(t, results, 1)
		require.True(t, results[0].IsError)
		require.ErrorIs(t, results[0].Error, context.Canceled)
	})
}
