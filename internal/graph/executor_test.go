package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/domain"
	"meridian/internal/llmclient"
	"meridian/internal/toolexec"
)

// fakeLLM replays one canned event sequence per call to
// ChatStream/ReasonStream, in call order.
type fakeLLM struct {
	responses [][]domain.StreamEvent
	calls     int
}

func (f *fakeLLM) next() <-chan domain.StreamEvent {
	idx := f.calls
	f.calls++
	var evs []domain.StreamEvent
	if idx < len(f.responses) {
		evs = f.responses[idx]
	}
	ch := make(chan domain.StreamEvent, len(evs))
	for _, e := range evs {
		ch <- e
	}
	close(ch)
	return ch
}

func (f *fakeLLM) ChatStream(context.Context, llmclient.Config, []domain.Message, []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return f.next(), nil
}

func (f *fakeLLM) ReasonStream(context.Context, llmclient.Config, []domain.Message, []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return f.next(), nil
}

// fakeTools answers every CallTool with a fixed result.
type fakeTools struct {
	result string
	err    error
}

func (f *fakeTools) ListTools(context.Context) ([]toolexec.ToolDescriptor, error) { return nil, nil }

func (f *fakeTools) CallTool(context.Context, string, map[string]any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func drain(ch <-chan domain.StreamEvent) []domain.StreamEvent {
	var out []domain.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func strp(s string) *string { return &s }

func TestExecutor_SimpleReply_EndsAfterOneLLMTurn(t *testing.T) {
	llm := &fakeLLM{responses: [][]domain.StreamEvent{
		{domain.NewMessage("hello there"), domain.NewDone("stop")},
	}}
	exec := New(llm, &fakeTools{})

	events := drain(exec.Run(context.Background(), "run-1", "conv-1",
		[]domain.Message{{Role: domain.RoleHuman, Text: "hi"}}, Config{Model: "claude-haiku-4-5-20251001"}))

	require.NotEmpty(t, events)
	assert.True(t, events[0].IsInitStream())
	last := events[len(events)-1]
	require.True(t, last.IsEndStream())
	assert.Equal(t, domain.StatusSuccess, last.EndStream.Status)
	assert.Equal(t, 1, llm.calls)
}

func TestExecutor_ToolCallLoop_ExecutesToolAndReturnsToLLM(t *testing.T) {
	argsDelta := `{"city":"NYC"}`
	llm := &fakeLLM{responses: [][]domain.StreamEvent{
		{
			domain.NewToolCall(0, strp("tc_1"), strp("get_weather"), nil),
			domain.NewToolCall(0, nil, nil, &argsDelta),
			domain.NewDone("tool_calls"),
		},
		{domain.NewMessage("it's sunny and 72F"), domain.NewDone("stop")},
	}}
	tools := &fakeTools{result: "72F and sunny"}
	exec := New(llm, tools)

	events := drain(exec.Run(context.Background(), "run-2", "conv-2",
		[]domain.Message{{Role: domain.RoleHuman, Text: "what's the weather"}}, Config{Model: "claude-haiku-4-5-20251001"}))

	require.Equal(t, 2, llm.calls)

	var sawToolResult bool
	for _, ev := range events {
		if ev.IsToolResult() {
			sawToolResult = true
			_, result, isError, _, ok := ev.ExtractToolResultFields()
			require.True(t, ok)
			assert.False(t, isError)
			assert.Equal(t, "72F and sunny", result)
		}
	}
	assert.True(t, sawToolResult)

	last := events[len(events)-1]
	require.True(t, last.IsEndStream())
	assert.Equal(t, domain.StatusSuccess, last.EndStream.Status)
}

func TestExecutor_ToolArgumentParseFailure_SurfacesAsErrorResultNotHalt(t *testing.T) {
	llm := &fakeLLM{responses: [][]domain.StreamEvent{
		{
			domain.NewToolCall(0, strp("tc_1"), strp("get_weather"), strp("{not valid json")),
			domain.NewDone("tool_calls"),
		},
		{domain.NewMessage("couldn't check the weather"), domain.NewDone("stop")},
	}}
	exec := New(llm, &fakeTools{result: "unused"})

	events := drain(exec.Run(context.Background(), "run-3", "conv-3", nil, Config{Model: "claude-haiku-4-5-20251001"}))

	var found bool
	for _, ev := range events {
		if ev.IsToolResult() {
			_, _, isError, _, _ := ev.ExtractToolResultFields()
			assert.True(t, isError)
			found = true
		}
	}
	assert.True(t, found)

	last := events[len(events)-1]
	assert.Equal(t, domain.StatusSuccess, last.EndStream.Status)
	assert.Equal(t, 2, llm.calls)
}

func TestExecutor_MaxIterationsGuardrail_StopsWithErrorStatus(t *testing.T) {
	llm := &fakeLLM{responses: [][]domain.StreamEvent{
		{domain.NewToolCall(0, strp("tc_1"), strp("loop"), strp("{}")), domain.NewDone("tool_calls")},
	}}
	exec := New(llm, &fakeTools{result: "ok"})

	events := drain(exec.Run(context.Background(), "run-4", "conv-4", nil, Config{
		Model:         "claude-haiku-4-5-20251001",
		MaxIterations: 2,
	}))

	var sawGuardrailError bool
	for _, ev := range events {
		if ev.IsError() {
			sawGuardrailError = true
		}
	}
	assert.True(t, sawGuardrailError)

	last := events[len(events)-1]
	require.True(t, last.IsEndStream())
	assert.Equal(t, domain.StatusError, last.EndStream.Status)
	assert.Equal(t, 1, llm.calls)
}

func TestExecutor_Cancellation_EndsWithCancelledStatus(t *testing.T) {
	block := make(chan struct{})
	llm := &blockingLLM{unblock: block}
	exec := New(llm, &fakeTools{})

	ctx, cancel := context.WithCancel(context.Background())
	out := exec.Run(ctx, "run-5", "conv-5", nil, Config{Model: "claude-haiku-4-5-20251001", EventChannelCapacity: 1})

	init := <-out
	assert.True(t, init.IsInitStream())

	cancel()
	close(block)

	events := drain(out)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.IsEndStream())
	assert.Equal(t, domain.StatusCancelled, last.EndStream.Status)
}

// blockingLLM never completes until unblock is closed, letting tests
// cancel a run mid-flight.
type blockingLLM struct {
	unblock <-chan struct{}
}

func (b *blockingLLM) ChatStream(ctx context.Context, _ llmclient.Config, _ []domain.Message, _ []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	ch := make(chan domain.StreamEvent)
	go func() {
		defer close(ch)
		select {
		case <-b.unblock:
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}()
	return ch, nil
}

func (b *blockingLLM) ReasonStream(ctx context.Context, cfg llmclient.Config, msgs []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return b.ChatStream(ctx, cfg, msgs, tools)
}
