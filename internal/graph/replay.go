package graph

import (
	"context"
	"fmt"

	"meridian/internal/domain"
)

// BlockSource is the narrow read path a Replayer needs out of
// persistence: every block committed for one run, in commit order.
type BlockSource interface {
	LoadBlocks(ctx context.Context, threadID, runID string) ([]domain.PersistedBlock, error)
}

// Replayer reconstructs the StreamEvent sequence a reconnecting
// client needs to catch up to a run's current persisted state,
// without re-invoking the LLM or tools.
type Replayer struct {
	source BlockSource
}

func NewReplayer(source BlockSource) *Replayer {
	return &Replayer{source: source}
}

// Catchup loads every block committed so far for runID and renders it
// back as the StreamEvent a live client would have seen.
func (r *Replayer) Catchup(ctx context.Context, threadID, runID string) ([]domain.StreamEvent, error) {
	blocks, err := r.source.LoadBlocks(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: load blocks for run %q: %w", runID, err)
	}

	events := make([]domain.StreamEvent, 0, len(blocks))
	for _, b := range blocks {
		events = append(events, blockToEvent(b))
	}
	return events, nil
}

func blockToEvent(b domain.PersistedBlock) domain.StreamEvent {
	switch b.Kind {
	case domain.BlockReasoning:
		return domain.NewReasoning(payloadString(b.Payload, "text"))
	case domain.BlockMessage:
		return domain.NewMessage(payloadString(b.Payload, "text"))
	case domain.BlockToolCall:
		index := payloadInt(b.Payload, "index")
		id := optionalString(b.Payload, "id")
		name := optionalString(b.Payload, "name")
		args := optionalString(b.Payload, "arguments_text")
		return domain.NewToolCall(index, id, name, args)
	case domain.BlockToolResult:
		toolCallID := payloadString(b.Payload, "tool_call_id")
		result := payloadString(b.Payload, "result")
		isError, _ := b.Payload["is_error"].(bool)
		durationMs := payloadInt64(b.Payload, "duration_ms")
		return domain.NewToolResult(toolCallID, result, isError, durationMs)
	default:
		return domain.NewError(fmt.Sprintf("replay: unrecognized block kind %q", b.Kind), nil)
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func optionalString(payload map[string]any, key string) *string {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func payloadInt64(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
