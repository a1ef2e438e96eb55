package contextmgr

import (
	"context"
	"fmt"
	"strings"

	"meridian/internal/domain"
	"meridian/internal/llmclient"
)

// Summarizer folds a message tail plus the prior summary into a new,
// shorter summary. Invoked only from the background task
// GetContextWindow schedules when a thread's window exceeds budget.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, messages []domain.Message) (string, error)
}

// LLMSummarizer drives the summarization model through the same
// llmclient.Client contract the graph uses, so it benefits from
// whichever provider adapter the caller already wired.
type LLMSummarizer struct {
	llm   llmclient.Client
	model string
}

func NewLLMSummarizer(llm llmclient.Client, model string) *LLMSummarizer {
	return &LLMSummarizer{llm: llm, model: model}
}

const summarizePrompt = `Summarize the conversation below. Preserve the user's goals, any
decisions made, and any unresolved questions. Fold in the prior summary rather
than discarding it. Keep the result under 300 words.

Prior summary:
%s

Conversation:
%s`

func (s *LLMSummarizer) Summarize(ctx context.Context, priorSummary string, messages []domain.Message) (string, error) {
	if priorSummary == "" {
		priorSummary = "(none)"
	}
	prompt := fmt.Sprintf(summarizePrompt, priorSummary, renderTranscript(messages))

	events, err := s.llm.ChatStream(ctx, llmclient.Config{Model: s.model},
		[]domain.Message{{Role: domain.RoleHuman, Text: prompt}}, nil)
	if err != nil {
		return "", fmt.Errorf("contextmgr: summarize: %w", err)
	}

	var out strings.Builder
	for ev := range events {
		if ev.IsError() {
			return "", fmt.Errorf("contextmgr: summarize: provider stream error")
		}
		if delta, ok := ev.ExtractTextDelta(); ok {
			out.WriteString(delta)
		}
	}
	return out.String(), nil
}

func renderTranscript(messages []domain.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case domain.RoleHuman:
			fmt.Fprintf(&sb, "user: %s\n", m.Text)
		case domain.RoleAI:
			if m.Text != "" {
				fmt.Fprintf(&sb, "assistant: %s\n", m.Text)
			}
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&sb, "assistant called tool %s(%s)\n", tc.Name, tc.Arguments)
			}
		case domain.RoleTool:
			fmt.Fprintf(&sb, "tool result: %s\n", m.Result)
		}
	}
	return sb.String()
}
