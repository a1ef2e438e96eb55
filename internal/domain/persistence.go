package domain

import "context"

// ThreadStore is the read/write surface the context manager needs out
// of persistence: the current watermark and summary, the message tail
// past that watermark, and an atomic way to advance both together
// once a new summary is ready.
type ThreadStore interface {
	LoadThread(ctx context.Context, threadID string) (Thread, error)
	LoadMessagesAfter(ctx context.Context, threadID string, after int64) ([]Message, error)

	// UpdateSummary atomically replaces a Thread's summary and
	// advances its watermark to lastMessageTimestamp in one write.
	UpdateSummary(ctx context.Context, threadID string, summary Summary, lastMessageTimestamp int64) error
}
