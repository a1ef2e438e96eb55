// Package accumulator folds an ordered StreamEvent sequence into
// PersistedBlocks.
//
// Flow:
//  1. Receive StreamEvents from the graph executor, in emission order.
//  2. Accumulate deltas for the currently open streaming block in memory.
//  3. When the event kind changes, flush the accumulated block to the Sink.
//  4. Return the flushed block so the caller can also forward it elsewhere
//     (e.g. a gateway's catchup buffer).
//
// Thread-safety: NOT thread-safe. Used by a single goroutine per run,
// the same one that owns the graph's GraphState.
package accumulator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"meridian/internal/domain"
)

// Event is the capability set the accumulator needs from a streamed
// item. domain.StreamEvent satisfies it structurally; tests and
// adapters can supply their own types without importing the graph
// package.
type Event interface {
	IsReasoning() bool
	IsMessage() bool
	IsToolCall() bool
	IsToolResult() bool
	IsDone() bool
	IsEndStream() bool
	IsError() bool
	ExtractTextDelta() (content string, ok bool)
	ExtractToolCallFields() (index int, id, name, argumentsDelta *string, ok bool)
	ExtractToolResultFields() (toolCallID, result string, isError bool, durationMs int64, ok bool)
}

// Sink persists one finished block. Mirrors the narrow,
// single-method write interface the rest of the corpus favors over a
// fat repository interface.
type Sink interface {
	SaveBlock(ctx context.Context, threadID, runID string, block domain.PersistedBlock) error
}

// Stats is a point-in-time snapshot for observability.
type Stats struct {
	BlocksCommitted int
	BytesBuffered   int
	OpenBlockKind   domain.BlockKind
}

type pendingToolCall struct {
	id        *string
	name      *string
	argsText  strings.Builder
	committed bool
}

// Accumulator is the per-run instance; construct one per Graph run.
type Accumulator struct {
	threadID string
	runID    string
	sink     Sink
	logger   *slog.Logger

	openKind domain.BlockKind
	openText strings.Builder

	toolCalls   map[int]*pendingToolCall
	toolOrder   []int
	blocksCount int

	// iteration is the LLM↔Tool loop pass currently being accumulated.
	// pendingAdvance is set once a ToolResult has been committed and
	// cleared the next time an assistant block opens, which is when
	// iteration actually advances — so every iteration's assistant
	// content lands on its own stored row instead of merging into the
	// prior one.
	iteration      int
	pendingAdvance bool
}

func New(threadID, runID string, sink Sink, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{
		threadID:  threadID,
		runID:     runID,
		sink:      sink,
		logger:    logger,
		toolCalls: make(map[int]*pendingToolCall),
	}
}

// Observe feeds one event through the type-transition rule. It
// returns the blocks committed as a side effect of this event, if
// any. A ToolResult commits the open text block, if any, plus its own
// block; Done, Error and EndStream commit the open text block plus one
// ToolCall block per still-open tool call.
func (a *Accumulator) Observe(ctx context.Context, ev Event) ([]domain.PersistedBlock, error) {
	var committed []domain.PersistedBlock

	switch {
	case ev.IsReasoning(), ev.IsMessage():
		a.advanceIteration()
		kind := domain.BlockReasoning
		if ev.IsMessage() {
			kind = domain.BlockMessage
		}
		if a.openKind != "" && a.openKind != kind {
			if b, ok := a.flushOpen(ctx); ok {
				committed = append(committed, b)
			}
		}
		a.openKind = kind
		delta, _ := ev.ExtractTextDelta()
		a.openText.WriteString(delta)
		return committed, a.saveAll(ctx, committed)

	case ev.IsToolCall():
		a.advanceIteration()
		if b, ok := a.flushOpen(ctx); ok {
			committed = append(committed, b)
		}
		index, id, name, argsDelta, _ := ev.ExtractToolCallFields()
		pc, exists := a.toolCalls[index]
		if !exists {
			pc = &pendingToolCall{}
			a.toolCalls[index] = pc
			a.toolOrder = append(a.toolOrder, index)
		}
		if id != nil {
			pc.id = id
		}
		if name != nil {
			pc.name = name
		}
		if argsDelta != nil {
			pc.argsText.WriteString(*argsDelta)
		}
		return committed, a.saveAll(ctx, committed)

	case ev.IsToolResult():
		if b, ok := a.flushOpen(ctx); ok {
			committed = append(committed, b)
		}
		// A ToolResult closes out the tool round for this iteration; the
		// Tool node typically already ran past a Done by the time it
		// arrives, so the call is usually already finalized below. Any
		// assistant block opened after this one belongs to a new
		// iteration.
		committed = append(committed, a.toolResultBlock(ev))
		a.pendingAdvance = true
		return committed, a.saveAll(ctx, committed)

	case ev.IsDone():
		if b, ok := a.flushOpen(ctx); ok {
			committed = append(committed, b)
		}
		committed = append(committed, a.finalizeToolCalls(false)...)
		return committed, a.saveAll(ctx, committed)

	case ev.IsError(), ev.IsEndStream():
		if b, ok := a.flushOpen(ctx); ok {
			committed = append(committed, b)
		}
		committed = append(committed, a.finalizeToolCalls(false)...)
		return committed, a.saveAll(ctx, committed)

	default:
		a.logger.Warn("accumulator: dropping unrecognized event")
		return nil, nil
	}
}

// Close is called when the event source closes before EndStream was
// observed (cancellation). Any open block is flushed with a
// cancelled marker so partial content remains observable.
func (a *Accumulator) Close(ctx context.Context) ([]domain.PersistedBlock, error) {
	var committed []domain.PersistedBlock
	if a.openKind != "" {
		b := a.buildBlock(a.openKind, a.openText.String(), nil, true)
		a.openKind = ""
		a.openText.Reset()
		committed = append(committed, b)
	}
	committed = append(committed, a.finalizeToolCalls(true)...)
	return committed, a.saveAll(ctx, committed)
}

// Stats returns a point-in-time snapshot.
func (a *Accumulator) Stats() Stats {
	return Stats{
		BlocksCommitted: a.blocksCount,
		BytesBuffered:   a.openText.Len(),
		OpenBlockKind:   a.openKind,
	}
}

func (a *Accumulator) flushOpen(ctx context.Context) (domain.PersistedBlock, bool) {
	if a.openKind == "" {
		return domain.PersistedBlock{}, false
	}
	b := a.buildBlock(a.openKind, a.openText.String(), nil, false)
	a.openKind = ""
	a.openText.Reset()
	return b, true
}

// advanceIteration moves the accumulator into a new iteration the
// first time an assistant block opens after a ToolResult, discarding
// the tool-call tracking state from the iteration that just closed so
// a reused call index in the next iteration starts fresh instead of
// being mistaken for an already-committed call.
func (a *Accumulator) advanceIteration() {
	if !a.pendingAdvance {
		return
	}
	a.pendingAdvance = false
	a.iteration++
	a.toolCalls = make(map[int]*pendingToolCall)
	a.toolOrder = nil
}

func (a *Accumulator) buildBlock(kind domain.BlockKind, text string, payload map[string]any, cancelled bool) domain.PersistedBlock {
	if payload == nil {
		payload = map[string]any{}
	}
	if text != "" {
		payload["text"] = text
	}
	return domain.PersistedBlock{
		ThreadID:  a.threadID,
		RunID:     a.runID,
		Role:      domain.RoleAI,
		Kind:      kind,
		Payload:   payload,
		Iteration: a.iteration,
		Cancelled: cancelled,
	}
}

// finalizeToolCalls commits a ToolCall block for every pending tool
// call not already committed, parsing its accumulated argument
// fragments. A parse failure is logged and the raw text is kept in
// the payload; the accumulator itself never rejects input, per its
// failure semantics.
func (a *Accumulator) finalizeToolCalls(cancelled bool) []domain.PersistedBlock {
	var out []domain.PersistedBlock
	for _, index := range a.toolOrder {
		pc, ok := a.toolCalls[index]
		if !ok || pc.committed {
			continue
		}
		pc.committed = true

		payload := map[string]any{"index": index}
		if pc.id != nil {
			payload["id"] = *pc.id
		}
		if pc.name != nil {
			payload["name"] = *pc.name
		}
		argsText := pc.argsText.String()
		payload["arguments_text"] = argsText

		if argsText != "" {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(argsText), &parsed); err != nil {
				a.logger.Warn("accumulator: tool call arguments did not parse as JSON",
					"index", index, "error", err)
			} else {
				payload["arguments"] = parsed
			}
		}

		out = append(out, domain.PersistedBlock{
			ThreadID:  a.threadID,
			RunID:     a.runID,
			Role:      domain.RoleAI,
			Kind:      domain.BlockToolCall,
			Payload:   payload,
			Iteration: a.iteration,
			Cancelled: cancelled,
		})
	}
	return out
}

func (a *Accumulator) toolResultBlock(ev Event) domain.PersistedBlock {
	payload := map[string]any{}
	if toolCallID, result, isError, durationMs, ok := ev.ExtractToolResultFields(); ok {
		payload["tool_call_id"] = toolCallID
		payload["result"] = result
		payload["is_error"] = isError
		payload["duration_ms"] = durationMs
	}
	return domain.PersistedBlock{
		ThreadID:  a.threadID,
		RunID:     a.runID,
		Role:      domain.RoleTool,
		Kind:      domain.BlockToolResult,
		Payload:   payload,
		Iteration: a.iteration,
	}
}

func (a *Accumulator) saveAll(ctx context.Context, blocks []domain.PersistedBlock) error {
	if a.sink == nil {
		a.blocksCount += len(blocks)
		return nil
	}
	for _, b := range blocks {
		if err := a.sink.SaveBlock(ctx, a.threadID, a.runID, b); err != nil {
			// Failure semantics: persistence errors never abort the
			// run; the event stream remains the authoritative record.
			a.logger.Error("accumulator: save block failed", "kind", b.Kind, "error", err)
			continue
		}
		a.blocksCount++
	}
	return nil
}
