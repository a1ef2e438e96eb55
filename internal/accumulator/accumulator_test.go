package accumulator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"meridian/internal/accumulator"
	"meridian/internal/domain"
)

type fakeSink struct {
	blocks []domain.PersistedBlock
}

func (s *fakeSink) SaveBlock(_ context.Context, _, _ string, block domain.PersistedBlock) error {
	s.blocks = append(s.blocks, block)
	return nil
}

func strp(s string) *string { return &s }

func TestAccumulator_ScenarioA_SimpleReply(t *testing.T) {
	sink := &fakeSink{}
	acc := accumulator.New("thread-1", "run-1", sink, nil)
	ctx := context.Background()

	events := []domain.StreamEvent{
		domain.NewReasoning("greeting user"),
		domain.NewMessage("Hi"),
		domain.NewMessage("!"),
		domain.NewDone("stop"),
	}
	for _, ev := range events {
		_, err := acc.Observe(ctx, ev)
		require.NoError(t, err)
	}

	require.Len(t, sink.blocks, 2)
	require.Equal(t, domain.BlockReasoning, sink.blocks[0].Kind)
	require.Equal(t, "greeting user", sink.blocks[0].Payload["text"])
	require.Equal(t, domain.BlockMessage, sink.blocks[1].Kind)
	require.Equal(t, "Hi!", sink.blocks[1].Payload["text"])
}

func TestAccumulator_ScenarioB_OneToolCall(t *testing.T) {
	sink := &fakeSink{}
	acc := accumulator.New("thread-1", "run-1", sink, nil)
	ctx := context.Background()

	id, name, args := "c1", "get_weather", `{"loc":"SF"}`
	_, err := acc.Observe(ctx, domain.NewToolCall(0, &id, &name, &args))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewDone("tool_calls"))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewToolResult("c1", "sunny", false, 37))
	require.NoError(t, err)

	require.Len(t, sink.blocks, 2)
	require.Equal(t, domain.BlockToolCall, sink.blocks[0].Kind)
	require.Equal(t, "c1", sink.blocks[0].Payload["id"])
	require.Equal(t, map[string]any{"loc": "SF"}, sink.blocks[0].Payload["arguments"])
	require.Equal(t, domain.BlockToolResult, sink.blocks[1].Kind)
	require.Equal(t, "sunny", sink.blocks[1].Payload["result"])
	require.Equal(t, false, sink.blocks[1].Payload["is_error"])
}

func TestAccumulator_ToolCallArgumentsAcrossFragments(t *testing.T) {
	sink := &fakeSink{}
	acc := accumulator.New("thread-1", "run-1", sink, nil)
	ctx := context.Background()

	id, name := "c1", "get_weather"
	frag1, frag2 := `{"loc":`, `"SF"}`
	_, err := acc.Observe(ctx, domain.NewToolCall(0, &id, &name, nil))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewToolCall(0, nil, nil, &frag1))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewToolCall(0, nil, nil, &frag2))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewDone("tool_calls"))
	require.NoError(t, err)

	require.Len(t, sink.blocks, 1)
	require.Equal(t, map[string]any{"loc": "SF"}, sink.blocks[0].Payload["arguments"])
}

func TestAccumulator_MalformedArgumentsNeverFailsTheAccumulator(t *testing.T) {
	sink := &fakeSink{}
	acc := accumulator.New("thread-1", "run-1", sink, nil)
	ctx := context.Background()

	id, name, broken := "c1", "get_weather", `{not json`
	_, err := acc.Observe(ctx, domain.NewToolCall(0, &id, &name, &broken))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewDone("tool_calls"))
	require.NoError(t, err)

	require.Len(t, sink.blocks, 1)
	require.Equal(t, broken, sink.blocks[0].Payload["arguments_text"])
	_, hasParsed := sink.blocks[0].Payload["arguments"]
	require.False(t, hasParsed)
}

func TestAccumulator_NoBlockCommittedTwice(t *testing.T) {
	sink := &fakeSink{}
	acc := accumulator.New("thread-1", "run-1", sink, nil)
	ctx := context.Background()

	id, name, args := "c1", "noop", "{}"
	_, err := acc.Observe(ctx, domain.NewToolCall(0, &id, &name, &args))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewDone("tool_calls"))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewToolResult("c1", "ok", false, 5))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewEndStream(domain.StatusSuccess, 100))
	require.NoError(t, err)

	toolCallBlocks := 0
	for _, b := range sink.blocks {
		if b.Kind == domain.BlockToolCall {
			toolCallBlocks++
		}
	}
	require.Equal(t, 1, toolCallBlocks)
}

func TestAccumulator_TwoIterationsKeepDistinctIterationNumbers(t *testing.T) {
	sink := &fakeSink{}
	acc := accumulator.New("thread-1", "run-1", sink, nil)
	ctx := context.Background()

	id1, name1, args1 := "c1", "get_weather", `{"loc":"SF"}`
	_, err := acc.Observe(ctx, domain.NewToolCall(0, &id1, &name1, &args1))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewDone("tool_calls"))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewToolResult("c1", "sunny", false, 10))
	require.NoError(t, err)

	id2, name2, args2 := "c2", "get_forecast", `{"loc":"SF"}`
	_, err = acc.Observe(ctx, domain.NewToolCall(0, &id2, &name2, &args2))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewDone("tool_calls"))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewToolResult("c2", "rain tomorrow", false, 10))
	require.NoError(t, err)

	_, err = acc.Observe(ctx, domain.NewMessage("It's sunny today, rain tomorrow."))
	require.NoError(t, err)
	_, err = acc.Observe(ctx, domain.NewDone("stop"))
	require.NoError(t, err)

	var toolCallIterations, finalTextIteration []int
	for _, b := range sink.blocks {
		switch b.Kind {
		case domain.BlockToolCall:
			toolCallIterations = append(toolCallIterations, b.Iteration)
		case domain.BlockMessage:
			finalTextIteration = append(finalTextIteration, b.Iteration)
		}
	}

	require.Equal(t, []int{0, 1}, toolCallIterations)
	require.Equal(t, []int{2}, finalTextIteration)
}

func TestAccumulator_CloseFlushesOpenBlockAsCancelled(t *testing.T) {
	sink := &fakeSink{}
	acc := accumulator.New("thread-1", "run-1", sink, nil)
	ctx := context.Background()

	_, err := acc.Observe(ctx, domain.NewMessage("partial"))
	require.NoError(t, err)

	committed, err := acc.Close(ctx)
	require.NoError(t, err)
	require.Len(t, committed, 1)
	require.True(t, committed[0].Cancelled)
	require.Equal(t, "partial", committed[0].Payload["text"])
}
