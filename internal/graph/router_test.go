package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meridian/internal/domain"
)

func TestRoute_AfterLLM_WithToolCalls_GoesToTool(t *testing.T) {
	s := &State{Messages: []domain.Message{
		{Role: domain.RoleHuman, Text: "what's the weather"},
		{Role: domain.RoleAI, ToolCalls: []domain.ToolCall{{Index: 0, ID: "tc_1", Name: "weather"}}},
	}}

	assert.Equal(t, NodeTool, Route(NodeLLM, s))
}

func TestRoute_AfterLLM_NoToolCalls_Ends(t *testing.T) {
	s := &State{Messages: []domain.Message{
		{Role: domain.RoleHuman, Text: "hi"},
		{Role: domain.RoleAI, Text: "hello there"},
	}}

	assert.Equal(t, NodeEnd, Route(NodeLLM, s))
}

func TestRoute_AfterLLM_EmptyContentNoToolCalls_StillEnds(t *testing.T) {
	s := &State{Messages: []domain.Message{
		{Role: domain.RoleAI, Text: ""},
	}}

	assert.Equal(t, NodeEnd, Route(NodeLLM, s))
}

func TestRoute_AfterLLM_NoAssistantMessageYet_Ends(t *testing.T) {
	s := &State{Messages: []domain.Message{{Role: domain.RoleHuman, Text: "hi"}}}

	assert.Equal(t, NodeEnd, Route(NodeLLM, s))
}

func TestRoute_AfterTool_AlwaysReturnsToLLM(t *testing.T) {
	s := &State{Messages: []domain.Message{
		{Role: domain.RoleAI, ToolCalls: []domain.ToolCall{{Index: 0, ID: "tc_1", Name: "weather"}}},
		{Role: domain.RoleTool, ToolCallID: "tc_1", Result: "sunny"},
	}}

	assert.Equal(t, NodeLLM, Route(NodeTool, s))
}

func TestRoute_LooksAtLastAssistantMessage_NotLastMessage(t *testing.T) {
	// A second, tool-call-free assistant message following an earlier
	// tool-call-bearing one should still end the run: Route only cares
	// about the most recent assistant message.
	s := &State{Messages: []domain.Message{
		{Role: domain.RoleAI, ToolCalls: []domain.ToolCall{{Index: 0, ID: "tc_1", Name: "weather"}}},
		{Role: domain.RoleTool, ToolCallID: "tc_1", Result: "sunny"},
		{Role: domain.RoleAI, Text: "it's sunny today"},
	}}

	assert.Equal(t, NodeEnd, Route(NodeLLM, s))
}
