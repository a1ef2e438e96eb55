package llmclient

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/domain"
	"meridian/internal/toolexec"
)

// fakeAdapter is a minimal Client + ModelAware used to exercise Router
// dispatch without a real provider.
type fakeAdapter struct {
	prefix string
	calls  int
}

func (f *fakeAdapter) SupportsModel(model string) bool {
	return strings.HasPrefix(model, f.prefix)
}

func (f *fakeAdapter) ChatStream(ctx context.Context, cfg Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	f.calls++
	ch := make(chan domain.StreamEvent, 1)
	ch <- domain.NewMessage(f.prefix)
	close(ch)
	return ch, nil
}

func (f *fakeAdapter) ReasonStream(ctx context.Context, cfg Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	f.calls++
	ch := make(chan domain.StreamEvent, 1)
	ch <- domain.NewReasoning(f.prefix)
	close(ch)
	return ch, nil
}

// unaware implements Client but not ModelAware, exercising Router's
// silent skip of adapters that can't declare model support.
type unaware struct{}

func (unaware) ChatStream(context.Context, Config, []domain.Message, []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return nil, nil
}
func (unaware) ReasonStream(context.Context, Config, []domain.Message, []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return nil, nil
}

func TestRouter_ChatStream_DispatchesByModelPrefix(t *testing.T) {
	claude := &fakeAdapter{prefix: "claude-"}
	gpt := &fakeAdapter{prefix: "gpt-"}
	router := NewRouter(claude, gpt)

	ch, err := router.ChatStream(context.Background(), Config{Model: "gpt-5"}, nil, nil)
	require.NoError(t, err)
	ev := <-ch
	assert.Equal(t, "gpt-", ev.Message.Content)
	assert.Equal(t, 1, gpt.calls)
	assert.Equal(t, 0, claude.calls)
}

func TestRouter_ReasonStream_DispatchesByModelPrefix(t *testing.T) {
	claude := &fakeAdapter{prefix: "claude-"}
	router := NewRouter(claude)

	ch, err := router.ReasonStream(context.Background(), Config{Model: "claude-opus"}, nil, nil)
	require.NoError(t, err)
	ev := <-ch
	assert.Equal(t, "claude-", ev.Reasoning.Content)
}

func TestRouter_NoAdapterRegistered(t *testing.T) {
	router := NewRouter(&fakeAdapter{prefix: "claude-"})

	_, err := router.ChatStream(context.Background(), Config{Model: "unknown-model"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown-model")
}

func TestRouter_SkipsClientsWithoutModelAware(t *testing.T) {
	claude := &fakeAdapter{prefix: "claude-"}
	router := NewRouter(unaware{}, claude)

	ch, err := router.ChatStream(context.Background(), Config{Model: "claude-sonnet"}, nil, nil)
	require.NoError(t, err)
	ev := <-ch
	assert.Equal(t, "claude-", ev.Message.Content)
}
