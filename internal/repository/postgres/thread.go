package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"meridian/internal/domain"
)

// ThreadRepository implements the LoadThread and UpdateSummary part of
// domain.ThreadStore against Postgres; LoadMessagesAfter lives on
// MessageRepository.
type ThreadRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewThreadRepository(cfg *RepositoryConfig) *ThreadRepository {
	return &ThreadRepository{pool: cfg.Pool, tables: cfg.Tables, logger: cfg.Logger}
}

// CreateThread inserts a new thread owned by userID and returns its
// assigned ID and timestamps.
func (r *ThreadRepository) CreateThread(ctx context.Context, userID string, createdAt int64) (domain.Thread, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, created_at, updated_at, last_summary_update)
		VALUES ($1, $2, $2, $2)
		RETURNING id
	`, r.tables.Threads)

	var id string
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, userID, createdAt).Scan(&id); err != nil {
		return domain.Thread{}, fmt.Errorf("create thread: %w", err)
	}

	return domain.Thread{ID: id, UserID: userID, CreatedAt: createdAt, UpdatedAt: createdAt, LastSummaryUpdate: createdAt}, nil
}

// LoadThread implements domain.ThreadStore.
func (r *ThreadRepository) LoadThread(ctx context.Context, threadID string) (domain.Thread, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, created_at, updated_at, last_summary_update,
		       summary_text, summary_generated_at, summary_messages_count, summary_tokens_before
		FROM %s
		WHERE id = $1
	`, r.tables.Threads)

	var t domain.Thread
	var summaryText *string
	var summaryGeneratedAt, summaryMessagesCount, summaryTokensBefore *int64

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, threadID).Scan(
		&t.ID, &t.UserID, &t.CreatedAt, &t.UpdatedAt, &t.LastSummaryUpdate,
		&summaryText, &summaryGeneratedAt, &summaryMessagesCount, &summaryTokensBefore,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return domain.Thread{}, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
		}
		return domain.Thread{}, fmt.Errorf("load thread: %w", err)
	}

	if summaryText != nil {
		t.Summary = &domain.Summary{
			Text:          *summaryText,
			GeneratedAt:   derefInt64(summaryGeneratedAt),
			MessagesCount: int(derefInt64(summaryMessagesCount)),
			TokensBefore:  int(derefInt64(summaryTokensBefore)),
		}
	}

	return t, nil
}

// UpdateSummary implements domain.ThreadStore: replace the summary and
// advance the watermark to lastMessageTimestamp in one write.
func (r *ThreadRepository) UpdateSummary(ctx context.Context, threadID string, summary domain.Summary, lastMessageTimestamp int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET summary_text = $1, summary_generated_at = $2, summary_messages_count = $3,
		    summary_tokens_before = $4, last_summary_update = $5, updated_at = $5
		WHERE id = $6
	`, r.tables.Threads)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		summary.Text, summary.GeneratedAt, summary.MessagesCount, summary.TokensBefore,
		lastMessageTimestamp, threadID,
	)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
