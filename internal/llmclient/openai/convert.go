package openai

import (
	"fmt"

	sdk "github.com/openai/openai-go/v2"

	"meridian/internal/domain"
	"meridian/internal/toolexec"
)

func convertMessages(messages []domain.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	result := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			result = append(result, sdk.SystemMessage(msg.Text))

		case domain.RoleHuman:
			result = append(result, sdk.UserMessage(msg.Text))

		case domain.RoleAI:
			if len(msg.ToolCalls) == 0 {
				result = append(result, sdk.AssistantMessage(msg.Text))
				continue
			}
			var asst sdk.ChatCompletionAssistantMessageParam
			asst.Content.OfString = sdk.String(msg.Text)
			for _, tc := range msg.ToolCalls {
				if tc.ID == "" {
					return nil, fmt.Errorf("message %d: tool call %q has no id", i, tc.Name)
				}
				fn := sdk.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
				asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{OfFunction: &fn})
			}
			result = append(result, sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})

		case domain.RoleTool:
			result = append(result, sdk.ToolMessage(msg.Result, msg.ToolCallID))

		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}
	}

	return result, nil
}

func convertTools(descriptors []toolexec.ToolDescriptor) []sdk.ChatCompletionToolUnionParam {
	result := make([]sdk.ChatCompletionToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		result = append(result, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        d.Name,
			Description: sdk.String(d.Description),
			Parameters:  sdk.FunctionParameters(d.InputSchema),
		}))
	}
	return result
}
