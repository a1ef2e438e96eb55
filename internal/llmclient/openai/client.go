// Package openai adapts github.com/openai/openai-go/v2 to the
// llmclient.Client contract.
package openai

import (
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Adapter implements llmclient.Client for OpenAI chat models.
type Adapter struct {
	client sdk.Client
}

// New creates an Adapter using the given API key.
func New(apiKey string) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	return &Adapter{client: sdk.NewClient(option.WithAPIKey(apiKey))}, nil
}

// SupportsModel reports whether model is an OpenAI model id.
func (a *Adapter) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}

// reasoningEffort maps the provider-agnostic reasoning effort knob
// onto the values the Responses/Chat Completions API accepts for
// o-series reasoning models. Non-reasoning models ignore this field
// entirely.
func reasoningEffort(effort string) sdk.ReasoningEffort {
	switch effort {
	case "low":
		return sdk.ReasoningEffortLow
	case "medium":
		return sdk.ReasoningEffortMedium
	case "high":
		return sdk.ReasoningEffortHigh
	default:
		return ""
	}
}
