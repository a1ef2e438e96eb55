package lorem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/llmclient"
)

func TestAdapter_SupportsModel(t *testing.T) {
	a := New()
	assert.True(t, a.SupportsModel("lorem-fast"))
	assert.True(t, a.SupportsModel("lorem-slow"))
	assert.False(t, a.SupportsModel("claude-opus"))
	assert.False(t, a.SupportsModel(""))
}

func TestAdapter_ChatStream_EmitsMessageEvents(t *testing.T) {
	a := New()
	maxTokens := 10
	ch, err := a.ChatStream(context.Background(), llmclient.Config{Model: "lorem-fast", MaxTokens: &maxTokens}, nil, nil)
	require.NoError(t, err)

	var words int
	var sawDone bool
	var finish string
	for ev := range ch {
		switch {
		case ev.IsMessage():
			words++
		case ev.IsDone():
			sawDone = true
			finish = ev.Done.FinishReason
		default:
			t.Fatalf("unexpected event kind %q from ChatStream", ev.Kind)
		}
	}

	assert.True(t, sawDone, "expected a terminal done event")
	assert.LessOrEqual(t, words, maxTokens)
	assert.Contains(t, []string{"end_turn", "max_tokens"}, finish)
}

func TestAdapter_ReasonStream_EmitsReasoningEvents(t *testing.T) {
	a := New()
	maxTokens := 6
	ch, err := a.ReasonStream(context.Background(), llmclient.Config{Model: "lorem-fast", MaxTokens: &maxTokens}, nil, nil)
	require.NoError(t, err)

	for ev := range ch {
		if ev.IsMessage() {
			t.Fatal("ReasonStream should not emit Message events")
		}
	}
}

func TestAdapter_CutoffModelHitsMaxTokens(t *testing.T) {
	a := New()
	maxTokens := 1
	ch, err := a.ChatStream(context.Background(), llmclient.Config{Model: "lorem-cutoff-fast", MaxTokens: &maxTokens}, nil, nil)
	require.NoError(t, err)

	var words int
	var finish string
	for ev := range ch {
		if ev.IsMessage() {
			words++
		}
		if ev.IsDone() {
			finish = ev.Done.FinishReason
		}
	}

	assert.Equal(t, maxTokens, words)
	assert.Equal(t, "max_tokens", finish)
}

func TestAdapter_ContextCancellation(t *testing.T) {
	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := a.ChatStream(ctx, llmclient.Config{Model: "lorem-fast"}, nil, nil)
	require.NoError(t, err)

	for range ch {
		t.Fatal("expected no events once context is already cancelled")
	}
}
