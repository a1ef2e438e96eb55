package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"meridian/internal/domain"
)

// MessageRepository stores the canonical conversation log — the
// Message rows a context window is assembled from — separately from
// the finer-grained audit blocks BlockRepository commits.
type MessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewMessageRepository(cfg *RepositoryConfig) *MessageRepository {
	return &MessageRepository{pool: cfg.Pool, tables: cfg.Tables, logger: cfg.Logger}
}

// AppendHumanMessage records the user-authored message that starts a
// run. It is the one message kind never synthesized from blocks.
func (r *MessageRepository) AppendHumanMessage(ctx context.Context, threadID, text string, createdAt int64) (domain.Message, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, run_id, role, text, created_at)
		VALUES ($1, NULL, 'human', $2, $3)
		RETURNING id
	`, r.tables.Messages)

	var id string
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, threadID, text, createdAt).Scan(&id); err != nil {
		return domain.Message{}, fmt.Errorf("append human message: %w", err)
	}
	return domain.Message{ID: id, Role: domain.RoleHuman, Text: text, CreatedAt: createdAt}, nil
}

// LoadMessagesAfter implements the tail half of domain.ThreadStore.
func (r *MessageRepository) LoadMessagesAfter(ctx context.Context, threadID string, after int64) ([]domain.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, role, text, tool_calls, tool_call_id, result, created_at
		FROM %s
		WHERE thread_id = $1 AND created_at > $2
		ORDER BY created_at ASC, id ASC
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, threadID, after)
	if err != nil {
		return nil, fmt.Errorf("load messages after %d: %w", after, err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var toolCallsRaw []byte
		var toolCallID, result *string
		if err := rows.Scan(&m.ID, &m.Role, &m.Text, &toolCallsRaw, &toolCallID, &result, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCallID != nil {
			m.ToolCallID = *toolCallID
		}
		if result != nil {
			m.Result = *result
		}
		if len(toolCallsRaw) > 0 {
			if err := json.Unmarshal(toolCallsRaw, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool_calls for message %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
