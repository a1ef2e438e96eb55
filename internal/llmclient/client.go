// Package llmclient defines the capability the graph's LLM node
// consumes from a model provider: a streaming chat call and an
// optional streaming reasoning call, both producing StreamEvents.
package llmclient

import (
	"context"

	"meridian/internal/domain"
	"meridian/internal/toolexec"
)

// Config carries the immutable, per-run model configuration selected
// for a single graph execution.
type Config struct {
	Model           string
	ReasoningEffort string
	Temperature     *float64
	MaxTokens       *int
}

// Client is the interface translation-layer adapters implement. Every
// event on the returned channel is already a fully-formed
// domain.StreamEvent; the channel closes after the terminal Done or
// Error event has been sent.
type Client interface {
	ChatStream(ctx context.Context, cfg Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error)
	ReasonStream(ctx context.Context, cfg Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error)
}
