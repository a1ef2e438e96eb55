package contextmgr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"meridian/internal/contextmgr/tokencache"
	"meridian/internal/domain"
)

// Tokenizer counts tokens for a conversation the way the target
// provider will actually bill it. Get Context Window budgets against
// whatever this returns.
type Tokenizer interface {
	CountMessagesTokens(ctx context.Context, messages []domain.Message) (int, error)
}

// AnthropicTokenizer counts tokens via the Messages API's
// count_tokens endpoint, the only way to get an exact preflight count
// rather than an estimate.
type AnthropicTokenizer struct {
	client *anthropic.Client
	model  string
	cache  *tokencache.Cache
}

func NewAnthropicTokenizer(client *anthropic.Client, model string, cache *tokencache.Cache) *AnthropicTokenizer {
	return &AnthropicTokenizer{client: client, model: model, cache: cache}
}

func (t *AnthropicTokenizer) CountMessagesTokens(ctx context.Context, messages []domain.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	cacheKey := cacheKeyFor(messages)
	if t.cache != nil {
		if count, ok := t.cache.Get(cacheKey); ok {
			return count, nil
		}
	}

	apiMessages, system := toCountableParams(messages)
	params := anthropic.MessageCountTokensParams{
		Messages: apiMessages,
		Model:    anthropic.Model(t.model),
	}
	if system != "" {
		params.System = anthropic.MessageCountTokensParamsSystemUnion{OfString: anthropic.String(system)}
	}

	result, err := t.client.Messages.CountTokens(ctx, params)
	if err != nil {
		return 0, err
	}

	count := int(result.InputTokens)
	if t.cache != nil {
		t.cache.Set(cacheKey, count)
	}
	return count, nil
}

func toCountableParams(messages []domain.Message) ([]anthropic.MessageParam, string) {
	params := make([]anthropic.MessageParam, 0, len(messages))
	var system string

	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = m.Text
		case domain.RoleHuman:
			if strings.TrimSpace(m.Text) != "" {
				params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
			}
		case domain.RoleAI:
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Text) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				args, _ := tc.UnmarshalArguments()
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) > 0 {
				params = append(params, anthropic.NewAssistantMessage(blocks...))
			}
		case domain.RoleTool:
			params = append(params, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Result, false)))
		}
	}
	return params, system
}

func cacheKeyFor(messages []domain.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(string(m.Role))
		sb.WriteByte('\x00')
		sb.WriteString(m.Text)
		sb.WriteByte('\x00')
		sb.WriteString(m.Result)
		sb.WriteByte('\x1f')
	}
	return sb.String()
}

// CharCountTokenizer estimates four characters per token. It is the
// fallback when the provider tokenizer call fails, and cmd/server uses
// it as the only tokenizer when no Anthropic API key is configured.
type CharCountTokenizer struct{}

func (CharCountTokenizer) CountMessagesTokens(_ context.Context, messages []domain.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += estimateTokens(m.Text) + estimateTokens(m.Result)
		for _, tc := range m.ToolCalls {
			total += estimateTokens(tc.Arguments)
		}
	}
	return total, nil
}

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len([]rune(s))/4 + 1
}

// FallbackTokenizer tries primary and falls back to a cheaper
// estimator on any error, so a flaky count_tokens call degrades the
// budget decision rather than blocking context assembly entirely.
type FallbackTokenizer struct {
	Primary  Tokenizer
	Fallback Tokenizer
	Logger   *slog.Logger
}

func (f *FallbackTokenizer) CountMessagesTokens(ctx context.Context, messages []domain.Message) (int, error) {
	count, err := f.Primary.CountMessagesTokens(ctx, messages)
	if err == nil {
		return count, nil
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("contextmgr: primary tokenizer failed, falling back to character-count heuristic", "error", err)
	return f.Fallback.CountMessagesTokens(ctx, messages)
}
