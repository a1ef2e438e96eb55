// Package lorem implements llmclient.Client with a mock provider that
// streams generated filler text instead of calling a real model, for
// exercising the graph and gateway without API keys.
package lorem

import (
	"context"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	"meridian/internal/domain"
	"meridian/internal/llmclient"
	"meridian/internal/toolexec"
)

// Adapter implements llmclient.Client for models named "lorem-*".
// Speed is encoded in the model name: lorem-slow, lorem-fast,
// lorem-medium; anything else defaults to medium speed.
type Adapter struct {
	generator *loremgen.Lorem
}

func New() *Adapter {
	return &Adapter{generator: loremgen.New()}
}

// SupportsModel reports whether model is served by this adapter.
func (a *Adapter) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

func (a *Adapter) ChatStream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return a.stream(ctx, cfg, domain.NewMessage), nil
}

func (a *Adapter) ReasonStream(ctx context.Context, cfg llmclient.Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	return a.stream(ctx, cfg, domain.NewReasoning), nil
}

func (a *Adapter) stream(ctx context.Context, cfg llmclient.Config, wrap func(string) domain.StreamEvent) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, 16)

	go func() {
		defer close(events)

		delay := speedFor(cfg.Model)
		cutoff := strings.Contains(cfg.Model, "cutoff") || strings.Contains(cfg.Model, "small")
		maxWords := 200
		if cfg.MaxTokens != nil {
			maxWords = *cfg.MaxTokens
		}
		targetWords := maxWords
		if cutoff {
			targetWords = maxWords + maxWords/2
		}

		words := strings.Fields(a.generateWords(targetWords))
		finish := "end_turn"

		sent := 0
		for _, word := range words {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if sent >= maxWords {
				finish = "max_tokens"
				break
			}
			select {
			case events <- wrap(word + " "):
			case <-ctx.Done():
				return
			}
			sent++
			time.Sleep(delay)
		}

		select {
		case events <- domain.NewDone(finish):
		case <-ctx.Done():
		}
	}()

	return events
}

func speedFor(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

func (a *Adapter) generateWords(targetWords int) string {
	var sb strings.Builder
	count := 0
	for count < targetWords {
		sentence := a.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")
		count += len(strings.Fields(sentence))
	}
	return strings.TrimSpace(sb.String())
}
