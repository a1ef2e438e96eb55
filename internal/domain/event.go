package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the StreamEvent tagged union. It doubles as
// the wire "type" field.
type EventKind string

const (
	EventInitStream EventKind = "init_stream"
	EventReasoning  EventKind = "reasoning"
	EventMessage    EventKind = "message"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
	EventEndStream  EventKind = "end_stream"
)

// RunStatus is the terminal status reported in EndStream.
type RunStatus string

const (
	StatusSuccess   RunStatus = "success"
	StatusError     RunStatus = "error"
	StatusCancelled RunStatus = "cancelled"
)

// StreamEvent is a closed tagged union: exactly one of the payload
// pointers is non-nil, selected by Kind. EventID is only set when the
// graph is run with WithEventIDs(true), for client-side dedup.
type StreamEvent struct {
	Kind    EventKind
	EventID *int64

	InitStream *InitStreamPayload
	Reasoning  *TextDeltaPayload
	Message    *TextDeltaPayload
	ToolCall   *ToolCallEventPayload
	ToolResult *ToolResultPayload
	Done       *DonePayload
	Error      *ErrorPayload
	EndStream  *EndStreamPayload
}

type InitStreamPayload struct {
	RunID          string
	ConversationID string
	Timestamp      int64
}

// TextDeltaPayload backs both Reasoning and Message events; they share
// a shape but are distinguished by Kind.
type TextDeltaPayload struct {
	Content string
}

// ToolCallEventPayload carries whichever subset of {ID, Name,
// ArgumentsDelta} the provider included in one streaming fragment.
type ToolCallEventPayload struct {
	Index          int
	ID             *string
	Name           *string
	ArgumentsDelta *string
}

type ToolResultPayload struct {
	ToolCallID string
	Result     string
	IsError    bool
	DurationMs int64
}

type DonePayload struct {
	FinishReason string
}

type ErrorPayload struct {
	Message string
	NodeID  *string
}

type EndStreamPayload struct {
	Status          RunStatus
	TotalDurationMs int64
}

func NewInitStream(runID, conversationID string, timestamp int64) StreamEvent {
	return StreamEvent{Kind: EventInitStream, InitStream: &InitStreamPayload{
		RunID: runID, ConversationID: conversationID, Timestamp: timestamp,
	}}
}

func NewReasoning(contentDelta string) StreamEvent {
	return StreamEvent{Kind: EventReasoning, Reasoning: &TextDeltaPayload{Content: contentDelta}}
}

func NewMessage(contentDelta string) StreamEvent {
	return StreamEvent{Kind: EventMessage, Message: &TextDeltaPayload{Content: contentDelta}}
}

func NewToolCall(index int, id, name, argumentsDelta *string) StreamEvent {
	return StreamEvent{Kind: EventToolCall, ToolCall: &ToolCallEventPayload{
		Index: index, ID: id, Name: name, ArgumentsDelta: argumentsDelta,
	}}
}

func NewToolResult(toolCallID, result string, isError bool, durationMs int64) StreamEvent {
	return StreamEvent{Kind: EventToolResult, ToolResult: &ToolResultPayload{
		ToolCallID: toolCallID, Result: result, IsError: isError, DurationMs: durationMs,
	}}
}

func NewDone(finishReason string) StreamEvent {
	return StreamEvent{Kind: EventDone, Done: &DonePayload{FinishReason: finishReason}}
}

func NewError(message string, nodeID *string) StreamEvent {
	return StreamEvent{Kind: EventError, Error: &ErrorPayload{Message: message, NodeID: nodeID}}
}

func NewEndStream(status RunStatus, totalDurationMs int64) StreamEvent {
	return StreamEvent{Kind: EventEndStream, EndStream: &EndStreamPayload{
		Status: status, TotalDurationMs: totalDurationMs,
	}}
}

// IsReasoning, IsMessage, IsToolCall, IsToolResult are the capability
// predicates the accumulator drives its type-transition rule from.
func (e StreamEvent) IsInitStream() bool { return e.Kind == EventInitStream }
func (e StreamEvent) IsReasoning() bool  { return e.Kind == EventReasoning }
func (e StreamEvent) IsMessage() bool    { return e.Kind == EventMessage }
func (e StreamEvent) IsToolCall() bool   { return e.Kind == EventToolCall }
func (e StreamEvent) IsToolResult() bool { return e.Kind == EventToolResult }
func (e StreamEvent) IsDone() bool       { return e.Kind == EventDone }
func (e StreamEvent) IsEndStream() bool  { return e.Kind == EventEndStream }
func (e StreamEvent) IsError() bool      { return e.Kind == EventError }

// ExtractTextDelta returns the Content of a Reasoning or Message
// event. ok is false for any other kind.
func (e StreamEvent) ExtractTextDelta() (content string, ok bool) {
	switch e.Kind {
	case EventReasoning:
		return e.Reasoning.Content, true
	case EventMessage:
		return e.Message.Content, true
	default:
		return "", false
	}
}

// ExtractToolCallFields returns the fragment fields of a ToolCall
// event. ok is false for any other kind.
func (e StreamEvent) ExtractToolCallFields() (index int, id, name, argumentsDelta *string, ok bool) {
	if e.Kind != EventToolCall {
		return 0, nil, nil, nil, false
	}
	tc := e.ToolCall
	return tc.Index, tc.ID, tc.Name, tc.ArgumentsDelta, true
}

// ExtractToolResultFields returns the fields of a ToolResult event.
// ok is false for any other kind.
func (e StreamEvent) ExtractToolResultFields() (toolCallID, result string, isError bool, durationMs int64, ok bool) {
	if e.Kind != EventToolResult {
		return "", "", false, 0, false
	}
	p := e.ToolResult
	return p.ToolCallID, p.Result, p.IsError, p.DurationMs, true
}

// MarshalJSON renders the exact wire shapes the gateway streams as
// SSE data lines. Absent optional fields are omitted entirely rather
// than emitted as null.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": string(e.Kind)}
	if e.EventID != nil {
		m["event_id"] = *e.EventID
	}

	switch e.Kind {
	case EventInitStream:
		p := e.InitStream
		m["run_id"] = p.RunID
		m["conversation_id"] = p.ConversationID
		m["timestamp"] = p.Timestamp
	case EventReasoning:
		m["content"] = e.Reasoning.Content
	case EventMessage:
		m["content"] = e.Message.Content
	case EventToolCall:
		p := e.ToolCall
		m["index"] = p.Index
		if p.ID != nil {
			m["id"] = *p.ID
		}
		if p.Name != nil {
			m["name"] = *p.Name
		}
		if p.ArgumentsDelta != nil {
			m["arguments"] = *p.ArgumentsDelta
		}
	case EventToolResult:
		p := e.ToolResult
		m["tool_call_id"] = p.ToolCallID
		m["result"] = p.Result
		m["is_error"] = p.IsError
		m["duration_ms"] = p.DurationMs
	case EventDone:
		m["finish_reason"] = e.Done.FinishReason
	case EventError:
		p := e.Error
		m["message"] = p.Message
		if p.NodeID != nil {
			m["node_id"] = *p.NodeID
		}
	case EventEndStream:
		p := e.EndStream
		m["status"] = string(p.Status)
		m["total_duration_ms"] = p.TotalDurationMs
	default:
		return nil, fmt.Errorf("stream event: unknown kind %q", e.Kind)
	}

	return json.Marshal(m)
}
