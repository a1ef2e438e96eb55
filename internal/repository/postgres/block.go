package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"meridian/internal/domain"
)

// BlockRepository is the accumulator's Sink and the graph's
// BlockSource: it appends every committed block to an append-only
// audit log, and — for the three block kinds that carry conversation
// content — folds that content into the canonical Message rows a
// context window is built from.
type BlockRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
	txMgr  *TransactionManager
}

func NewBlockRepository(cfg *RepositoryConfig) *BlockRepository {
	return &BlockRepository{pool: cfg.Pool, tables: cfg.Tables, logger: cfg.Logger, txMgr: &TransactionManager{pool: cfg.Pool}}
}

// SaveBlock implements accumulator.Sink.
func (r *BlockRepository) SaveBlock(ctx context.Context, threadID, runID string, block domain.PersistedBlock) error {
	return r.txMgr.ExecTx(ctx, func(ctx context.Context) error {
		if err := r.insertBlock(ctx, threadID, runID, block); err != nil {
			return err
		}
		return r.applyToMessages(ctx, threadID, runID, block)
	})
}

func (r *BlockRepository) insertBlock(ctx context.Context, threadID, runID string, block domain.PersistedBlock) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, run_id, role, kind, payload, created_at, iteration, cancelled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Blocks)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query, threadID, runID, block.Role, block.Kind, block.Payload, block.CreatedAt, block.Iteration, block.Cancelled)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// applyToMessages folds one block's content into the run's message
// rows: message/tool_call blocks accumulate onto a single
// assistant row per LLM iteration, tool_result blocks insert a
// standalone tool row. Reasoning blocks are audit-only and never reach
// a Message. Keying the assistant row by iteration (not just run) keeps
// a multi-round run's reloaded history well-formed: a later iteration's
// text must never land on the row holding an earlier iteration's
// tool_calls, since that would put the assistant's final answer ahead
// of the tool round it actually followed.
func (r *BlockRepository) applyToMessages(ctx context.Context, threadID, runID string, block domain.PersistedBlock) error {
	switch block.Kind {
	case domain.BlockReasoning:
		return nil
	case domain.BlockMessage:
		text, _ := block.Payload["text"].(string)
		return r.appendAssistantText(ctx, threadID, runID, block.Iteration, text)
	case domain.BlockToolCall:
		return r.appendAssistantToolCall(ctx, threadID, runID, block.Iteration, block.Payload)
	case domain.BlockToolResult:
		return r.insertToolMessage(ctx, threadID, runID, block.Payload)
	default:
		return nil
	}
}

func (r *BlockRepository) appendAssistantText(ctx context.Context, threadID, runID string, iteration int, text string) error {
	if text == "" {
		return nil
	}
	id, found, err := r.findAssistantMessage(ctx, threadID, runID, iteration)
	if err != nil {
		return err
	}
	executor := GetExecutor(ctx, r.pool)
	if !found {
		query := fmt.Sprintf(`
			INSERT INTO %s (thread_id, run_id, role, text, iteration, created_at)
			VALUES ($1, $2, 'ai', $3, $4, extract(epoch from now())::bigint)
		`, r.tables.Messages)
		_, err := executor.Exec(ctx, query, threadID, runID, text, iteration)
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET text = text || $1 WHERE id = $2`, r.tables.Messages)
	_, err = executor.Exec(ctx, query, text, id)
	return err
}

func (r *BlockRepository) appendAssistantToolCall(ctx context.Context, threadID, runID string, iteration int, payload map[string]any) error {
	tc := domain.ToolCall{}
	if v, ok := payload["index"]; ok {
		tc.Index = toInt(v)
	}
	if v, ok := payload["id"].(string); ok {
		tc.ID = v
	}
	if v, ok := payload["name"].(string); ok {
		tc.Name = v
	}
	if v, ok := payload["arguments_text"].(string); ok {
		tc.Arguments = v
	}

	id, found, err := r.findAssistantMessage(ctx, threadID, runID, iteration)
	if err != nil {
		return err
	}
	executor := GetExecutor(ctx, r.pool)

	if !found {
		b, err := json.Marshal([]domain.ToolCall{tc})
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		query := fmt.Sprintf(`
			INSERT INTO %s (thread_id, run_id, role, text, tool_calls, iteration, created_at)
			VALUES ($1, $2, 'ai', '', $3, $4, extract(epoch from now())::bigint)
		`, r.tables.Messages)
		_, err = executor.Exec(ctx, query, threadID, runID, b, iteration)
		return err
	}

	existing, err := r.loadToolCalls(ctx, id)
	if err != nil {
		return err
	}
	existing = mergeToolCall(existing, tc)
	b, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET tool_calls = $1 WHERE id = $2`, r.tables.Messages)
	_, err = executor.Exec(ctx, query, b, id)
	return err
}

func (r *BlockRepository) insertToolMessage(ctx context.Context, threadID, runID string, payload map[string]any) error {
	toolCallID, _ := payload["tool_call_id"].(string)
	result, _ := payload["result"].(string)

	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, run_id, role, tool_call_id, result, created_at)
		VALUES ($1, $2, 'tool', $3, $4, extract(epoch from now())::bigint)
	`, r.tables.Messages)
	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query, threadID, runID, toolCallID, result)
	return err
}

// findAssistantMessage locates the single Message row this run's
// iteration has already opened, if any. Scoping by iteration (in
// addition to run_id) is what keeps concurrent/sequential LLM passes
// within one run from writing over each other's row.
func (r *BlockRepository) findAssistantMessage(ctx context.Context, threadID, runID string, iteration int) (id string, found bool, err error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE thread_id = $1 AND run_id = $2 AND role = 'ai' AND iteration = $3`, r.tables.Messages)
	executor := GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query, threadID, runID, iteration).Scan(&id)
	if err != nil {
		if IsPgNoRowsError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("find assistant message: %w", err)
	}
	return id, true, nil
}

func (r *BlockRepository) loadToolCalls(ctx context.Context, messageID string) ([]domain.ToolCall, error) {
	query := fmt.Sprintf(`SELECT tool_calls FROM %s WHERE id = $1`, r.tables.Messages)
	executor := GetExecutor(ctx, r.pool)
	var raw []byte
	if err := executor.QueryRow(ctx, query, messageID).Scan(&raw); err != nil {
		return nil, fmt.Errorf("load tool calls: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out []domain.ToolCall
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal tool calls: %w", err)
	}
	return out, nil
}

func mergeToolCall(existing []domain.ToolCall, tc domain.ToolCall) []domain.ToolCall {
	for i := range existing {
		if existing[i].Index == tc.Index {
			if tc.ID != "" {
				existing[i].ID = tc.ID
			}
			if tc.Name != "" {
				existing[i].Name = tc.Name
			}
			existing[i].Arguments += tc.Arguments
			return existing
		}
	}
	return append(existing, tc)
}

// LoadBlocks implements graph.BlockSource for reconnect catchup.
func (r *BlockRepository) LoadBlocks(ctx context.Context, threadID, runID string) ([]domain.PersistedBlock, error) {
	query := fmt.Sprintf(`
		SELECT role, kind, payload, created_at, iteration, cancelled
		FROM %s
		WHERE thread_id = $1 AND run_id = $2
		ORDER BY created_at ASC, ctid ASC
	`, r.tables.Blocks)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	defer rows.Close()

	var out []domain.PersistedBlock
	for rows.Next() {
		b := domain.PersistedBlock{ThreadID: threadID, RunID: runID}
		if err := rows.Scan(&b.Role, &b.Kind, &b.Payload, &b.CreatedAt, &b.Iteration, &b.Cancelled); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return out, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
