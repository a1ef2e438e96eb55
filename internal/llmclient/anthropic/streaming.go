package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"meridian/internal/domain"
	"meridian/internal/llmclient"
	"meridian/internal/toolexec"
)

// ChatStream streams a response with extended thinking disabled.
func (a *Adapter) ChatStream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return a.stream(ctx, cfg, messages, tools, false)
}

// ReasonStream streams a response with extended thinking enabled at
// the budget implied by cfg.ReasoningEffort.
func (a *Adapter) ReasonStream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return a.stream(ctx, cfg, messages, tools, true)
}

func (a *Adapter) stream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor, reasoning bool) (<-chan domain.StreamEvent, error) {
	if !a.SupportsModel(cfg.Model) {
		return nil, fmt.Errorf("anthropic: model %q is not an Anthropic model", cfg.Model)
	}

	apiMessages, err := convertMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	maxTokens := int64(4096)
	if cfg.MaxTokens != nil {
		maxTokens = int64(*cfg.MaxTokens)
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		Messages:  apiMessages,
		MaxTokens: maxTokens,
	}
	if cfg.Temperature != nil {
		apiParams.Temperature = anthropic.Float(*cfg.Temperature)
	}
	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			apiParams.System = []anthropic.TextBlockParam{{Text: msg.Text}}
			break
		}
	}
	if len(tools) > 0 {
		apiTools, err := convertTools(tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		apiParams.Tools = apiTools
	}
	if reasoning {
		if budget := thinkingBudgetTokens(cfg.ReasoningEffort); budget > 0 {
			apiParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
		}
	}

	out := make(chan domain.StreamEvent, 16)

	go func() {
		defer close(out)

		stream := a.client.Messages.NewStreaming(ctx, apiParams)

		send := func(ev domain.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stopReason := "end_turn"

		for stream.Next() {
			event := stream.Current()

			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if e.ContentBlock.Type == "tool_use" {
					id, name := e.ContentBlock.ID, e.ContentBlock.Name
					idx := int(e.Index)
					if !send(domain.NewToolCall(idx, &id, &name, nil)) {
						return
					}
				}

			case anthropic.ContentBlockDeltaEvent:
				switch e.Delta.Type {
				case "text_delta":
					if !send(domain.NewMessage(e.Delta.Text)) {
						return
					}
				case "thinking_delta":
					if !send(domain.NewReasoning(e.Delta.Thinking)) {
						return
					}
				case "input_json_delta":
					partial := e.Delta.PartialJSON
					idx := int(e.Index)
					if !send(domain.NewToolCall(idx, nil, nil, &partial)) {
						return
					}
				}

			case anthropic.MessageDeltaEvent:
				if e.Delta.StopReason != "" {
					stopReason = string(e.Delta.StopReason)
				}

			case anthropic.MessageStopEvent:
				send(domain.NewDone(stopReason))
				return
			}
		}

		if err := stream.Err(); err != nil {
			send(domain.NewError(fmt.Sprintf("anthropic streaming error: %v", err), nil))
			return
		}

		send(domain.NewDone(stopReason))
	}()

	return out, nil
}
