package local

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/toolexec"
)

type echoTool struct{}

func (echoTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	return input, nil
}

type stringTool struct{ value string }

func (s stringTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	return s.value, nil
}

type failingTool struct{}

func (failingTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	return nil, errors.New("boom")
}

func TestRegistry_ListTools_ReturnsRegisteredDescriptors(t *testing.T) {
	r := NewRegistry()
	desc := toolexec.ToolDescriptor{Name: "echo", Description: "echoes input"}
	r.Register(desc, echoTool{})

	got, err := r.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, desc, got[0])
}

func TestRegistry_CallTool_StringResultPassesThrough(t *testing.T) {
	r := NewRegistry()
	r.Register(toolexec.ToolDescriptor{Name: "greeter"}, stringTool{value: "hello"})

	out, err := r.CallTool(context.Background(), "greeter", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRegistry_CallTool_NonStringResultIsMarshalled(t *testing.T) {
	r := NewRegistry()
	r.Register(toolexec.ToolDescriptor{Name: "echo"}, echoTool{})

	out, err := r.CallTool(context.Background(), "echo", map[string]any{"x": float64(1)})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, float64(1), decoded["x"])
}

func TestRegistry_CallTool_UnknownToolReturnsToolError(t *testing.T) {
	r := NewRegistry()

	_, err := r.CallTool(context.Background(), "missing", nil)
	require.Error(t, err)
	var toolErr *toolexec.ToolError
	require.ErrorAs(t, err, &toolErr)
}

func TestRegistry_CallTool_ExecutorErrorReturnsToolError(t *testing.T) {
	r := NewRegistry()
	r.Register(toolexec.ToolDescriptor{Name: "broken"}, failingTool{})

	_, err := r.CallTool(context.Background(), "broken", nil)
	require.Error(t, err)
	var toolErr *toolexec.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "boom", toolErr.Message)
	assert.False(t, toolErr.Timeout)
}

func TestRegistry_CallTool_CancelledContextMarksTimeout(t *testing.T) {
	r := NewRegistry()
	r.Register(toolexec.ToolDescriptor{Name: "broken"}, failingTool{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.CallTool(ctx, "broken", nil)
	require.Error(t, err)
	var toolErr *toolexec.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.True(t, toolErr.Timeout)
}
