package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go/v2"

	"meridian/internal/domain"
	"meridian/internal/llmclient"
	"meridian/internal/toolexec"
)

// ChatStream streams a response. OpenAI's Chat Completions API exposes
// no separate reasoning channel for non-o-series models, so both
// methods share one implementation; ReasonStream additionally sets
// the reasoning effort for o-series models.
func (a *Adapter) ChatStream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return a.stream(ctx, cfg, messages, tools, false)
}

// ReasonStream streams a response with the reasoning effort knob set.
func (a *Adapter) ReasonStream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return a.stream(ctx, cfg, messages, tools, true)
}

func (a *Adapter) stream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor, reasoning bool) (<-chan domain.StreamEvent, error) {
	if !a.SupportsModel(cfg.Model) {
		return nil, fmt.Errorf("openai: model %q is not an OpenAI model", cfg.Model)
	}

	apiMessages, err := convertMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("openai: convert messages: %w", err)
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(cfg.Model),
		Messages: apiMessages,
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	if cfg.Temperature != nil {
		params.Temperature = sdk.Float(*cfg.Temperature)
	}
	if cfg.MaxTokens != nil {
		params.MaxCompletionTokens = sdk.Int(int64(*cfg.MaxTokens))
	}
	if reasoning {
		if effort := reasoningEffort(cfg.ReasoningEffort); effort != "" {
			params.ReasoningEffort = effort
		}
	}
	params.StreamOptions.IncludeUsage = sdk.Bool(true)

	out := make(chan domain.StreamEvent, 16)

	go func() {
		defer close(out)

		stream := a.client.Chat.Completions.NewStreaming(ctx, params)
		defer func() { _ = stream.Close() }()

		toolCalls := map[int64]*domain.ToolCall{}
		finishReason := "stop"

		send := func(ev domain.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			delta := choice.Delta

			if delta.Content != "" {
				if !send(domain.NewMessage(delta.Content)) {
					return
				}
			}

			for _, tc := range delta.ToolCalls {
				idx := tc.Index
				first := toolCalls[idx] == nil
				if first {
					toolCalls[idx] = &domain.ToolCall{Index: int(idx)}
				}
				var id, name, argsDelta *string
				if first {
					toolID, toolName := tc.ID, tc.Function.Name
					id, name = &toolID, &toolName
				}
				if tc.Function.Arguments != "" {
					args := tc.Function.Arguments
					argsDelta = &args
				}
				if !send(domain.NewToolCall(int(idx), id, name, argsDelta)) {
					return
				}
			}

			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
		}

		if err := stream.Err(); err != nil {
			send(domain.NewError(fmt.Sprintf("openai streaming error: %v", err), nil))
			return
		}

		send(domain.NewDone(finishReason))
	}()

	return out, nil
}
