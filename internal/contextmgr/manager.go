// Package contextmgr assembles the message window a graph run sees:
// a system prompt carrying the thread's running summary, followed by
// every message since the summary's watermark. When that window
// would exceed the configured token budget it is still returned in
// full immediately, and a summarization pass is kicked off in the
// background to shrink the next caller's window.
package contextmgr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"meridian/internal/domain"
)

// Option configures a Manager at construction time.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithSummarizeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.summarizeTimeout = d }
}

// Manager is safe for concurrent use across threads; per-thread
// summarization is serialized by inflight, not by an external lock.
type Manager struct {
	store      domain.ThreadStore
	tokenizer  Tokenizer
	summarizer Summarizer
	template   *Template
	maxTokens  int

	logger           *slog.Logger
	summarizeTimeout time.Duration

	inflight sync.Map // threadID string -> struct{}
}

func New(store domain.ThreadStore, tokenizer Tokenizer, summarizer Summarizer, template *Template, maxTokens int, opts ...Option) *Manager {
	m := &Manager{
		store:            store,
		tokenizer:        tokenizer,
		summarizer:       summarizer,
		template:         template,
		maxTokens:        maxTokens,
		logger:           slog.Default(),
		summarizeTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetContextWindow loads the thread, fetches everything past the
// watermark, prefixes a system message rendered from the current
// summary, and returns it. If the result is over budget it is still
// returned whole, and a summarization pass for this thread is
// scheduled if one isn't already running.
func (m *Manager) GetContextWindow(ctx context.Context, threadID string) ([]domain.Message, error) {
	thread, err := m.store.LoadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	messages, err := m.store.LoadMessagesAfter(ctx, threadID, thread.LastSummaryUpdate)
	if err != nil {
		return nil, err
	}

	summaryText := ""
	if thread.Summary != nil {
		summaryText = thread.Summary.Text
	}
	window := make([]domain.Message, 0, len(messages)+1)
	window = append(window, domain.Message{Role: domain.RoleSystem, Text: m.template.Render(summaryText)})
	window = append(window, messages...)

	tokenCount, err := m.tokenizer.CountMessagesTokens(ctx, window)
	if err != nil {
		m.logger.Warn("contextmgr: token count failed, returning window unbudgeted", "thread_id", threadID, "error", err)
		return window, nil
	}

	if tokenCount > m.maxTokens && len(messages) > 0 {
		m.scheduleSummarization(threadID, thread, messages)
	}

	return window, nil
}

// scheduleSummarization fires at most one summarization task per
// thread concurrently; a second caller that overflows budget while
// one is already running is a no-op.
func (m *Manager) scheduleSummarization(threadID string, thread domain.Thread, messages []domain.Message) {
	if _, already := m.inflight.LoadOrStore(threadID, struct{}{}); already {
		return
	}

	go func() {
		defer m.inflight.Delete(threadID)

		ctx, cancel := context.WithTimeout(context.Background(), m.summarizeTimeout)
		defer cancel()

		priorText := ""
		if thread.Summary != nil {
			priorText = thread.Summary.Text
		}

		newText, err := m.summarizer.Summarize(ctx, priorText, messages)
		if err != nil {
			m.logger.Error("contextmgr: summarization failed", "thread_id", threadID, "error", err)
			return
		}

		tokensBefore, _ := m.tokenizer.CountMessagesTokens(ctx, messages)
		summary := domain.Summary{
			Text:          newText,
			GeneratedAt:   time.Now().Unix(),
			MessagesCount: len(messages),
			TokensBefore:  tokensBefore,
		}

		newest := messages[len(messages)-1].CreatedAt
		if err := m.store.UpdateSummary(ctx, threadID, summary, newest); err != nil {
			m.logger.Error("contextmgr: persisting new summary failed", "thread_id", threadID, "error", err)
		}
	}()
}
