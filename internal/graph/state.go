// Package graph implements the two-node ReAct-style execution loop:
// an LLM node and a Tool node, driven by a pure Router, bounded by
// iteration and wall-clock guardrails, and observed through a single
// ordered StreamEvent channel per run.
package graph

import (
	"meridian/internal/domain"
	"meridian/internal/toolexec"
)

// NodeID names one of the graph's states.
type NodeID string

const (
	NodeLLM  NodeID = "llm"
	NodeTool NodeID = "tool"
	NodeEnd  NodeID = "end"
)

// State is the mutable record a single run owns exclusively for its
// lifetime. Nothing else touches it concurrently, so it carries no
// locks.
type State struct {
	RunID          string
	ConversationID string
	Messages       []domain.Message
	Iteration      int
}

// lastAssistantMessage returns the most recent AI-role message, if
// the conversation has one.
func (s *State) lastAssistantMessage() (domain.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == domain.RoleAI {
			return s.Messages[i], true
		}
	}
	return domain.Message{}, false
}

// Config carries the per-run knobs: model selection, guardrails, and
// the tool catalog available this run.
type Config struct {
	Model           string
	ReasoningEffort string
	Temperature     *float64
	MaxTokens       *int

	MaxIterations        int
	ExecutionTimeout     int // seconds
	ToolTimeout          int // seconds
	EventChannelCapacity int

	Tools []toolexec.ToolDescriptor
}
