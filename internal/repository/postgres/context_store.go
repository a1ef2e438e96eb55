package postgres

import (
	"context"

	"meridian/internal/domain"
)

// ContextStore composes ThreadRepository and MessageRepository into
// the single domain.ThreadStore the context manager needs. The two
// repositories stay split — threads and messages are different
// tables with different write paths — this just gives the manager one
// dependency instead of two.
type ContextStore struct {
	threads  *ThreadRepository
	messages *MessageRepository
}

func NewContextStore(threads *ThreadRepository, messages *MessageRepository) *ContextStore {
	return &ContextStore{threads: threads, messages: messages}
}

func (s *ContextStore) LoadThread(ctx context.Context, threadID string) (domain.Thread, error) {
	return s.threads.LoadThread(ctx, threadID)
}

func (s *ContextStore) LoadMessagesAfter(ctx context.Context, threadID string, after int64) ([]domain.Message, error) {
	return s.messages.LoadMessagesAfter(ctx, threadID, after)
}

func (s *ContextStore) UpdateSummary(ctx context.Context, threadID string, summary domain.Summary, lastMessageTimestamp int64) error {
	return s.threads.UpdateSummary(ctx, threadID, summary, lastMessageTimestamp)
}
