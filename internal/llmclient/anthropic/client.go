// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to
// the llmclient.Client contract.
package anthropic

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Adapter implements llmclient.Client for Claude models.
type Adapter struct {
	client *anthropic.Client
}

// New creates an Adapter using the given API key.
func New(apiKey string) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Adapter{client: &client}, nil
}

// SupportsModel reports whether model is a Claude model id.
func (a *Adapter) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// RawClient exposes the underlying SDK client for callers that need
// an Anthropic-specific capability ChatStream/ReasonStream don't
// cover, such as the context manager's token-counting endpoint.
func (a *Adapter) RawClient() *anthropic.Client {
	return a.client
}

// thinkingBudgetTokens maps the provider-agnostic reasoning effort
// knob onto Anthropic's extended-thinking token budget.
func thinkingBudgetTokens(effort string) int64 {
	switch effort {
	case "low":
		return 2000
	case "medium":
		return 8000
	case "high":
		return 16000
	default:
		return 0
	}
}
