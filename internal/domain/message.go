package domain

import "encoding/json"

// Role tags which variant of Message a given record represents.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// Message is one turn in a conversation. Only the fields relevant to
// Role are populated; the zero value of the others is ignored by
// callers that branch on Role first.
type Message struct {
	ID   string `json:"id,omitempty"`
	Role Role   `json:"role"`

	// System, Human, AI
	Text string `json:"text,omitempty"`

	// AI only. An AI message with ToolCalls is always followed, in a
	// well-formed history, by one Tool message per call.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool only.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Result     string `json:"result,omitempty"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// ToolCall describes one function invocation requested by the model.
// Index disambiguates parallel calls within a single assistant turn
// before the provider has assigned a final ID.
type ToolCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// UnmarshalArguments parses Arguments as a JSON object. Callers use
// this at finalization time, once the accumulator has stopped
// appending fragments to Arguments.
func (tc ToolCall) UnmarshalArguments() (map[string]any, error) {
	if tc.Arguments == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalArguments encodes a structured argument set back into the
// ToolCall's textual Arguments field.
func MarshalArguments(args map[string]any) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
