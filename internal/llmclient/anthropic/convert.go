package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"meridian/internal/domain"
	"meridian/internal/toolexec"
)

// convertMessages translates the domain's four-variant Message model
// into Anthropic's content-block MessageParam shape. System messages
// are dropped here; callers pass the system prompt separately via
// MessageNewParams.System.
func convertMessages(messages []domain.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			continue

		case domain.RoleHuman:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))

		case domain.RoleAI:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
			}
			for _, tc := range msg.ToolCalls {
				input, err := tc.UnmarshalArguments()
				if err != nil {
					return nil, fmt.Errorf("message %d: tool call %q arguments: %w", i, tc.ID, err)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))

		case domain.RoleTool:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Result, false),
			))

		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}
	}

	return result, nil
}

// convertTools translates ToolDescriptors into Anthropic's tool union
// param, carrying the JSON schema through unchanged.
func convertTools(descriptors []toolexec.ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		schemaBytes, err := json.Marshal(d.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: marshal schema: %w", d.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaBytes, &schema); err != nil {
			return nil, fmt.Errorf("tool %q: invalid input schema: %w", d.Name, err)
		}

		param := anthropic.ToolUnionParamOfTool(schema, d.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(d.Description)
		}
		result = append(result, param)
	}
	return result, nil
}
