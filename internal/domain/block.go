package domain

// BlockKind tags the four kinds of content the accumulator ever
// commits to persistence.
type BlockKind string

const (
	BlockReasoning BlockKind = "reasoning"
	BlockMessage   BlockKind = "message"
	BlockToolCall  BlockKind = "tool_call"
	BlockToolResult BlockKind = "tool_result"
)

// PersistedBlock is the accumulator's output unit. Blocks are strictly
// ordered by emission within a run and each is committed with a single
// atomic write.
type PersistedBlock struct {
	ThreadID   string         `json:"thread_id"`
	RunID      string         `json:"run_id"`
	Role       Role           `json:"role"`
	Kind       BlockKind      `json:"kind"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  int64          `json:"created_at"`
	DurationMs *int64         `json:"duration_ms,omitempty"`

	// Iteration is the LLM↔Tool loop pass this block belongs to,
	// starting at 0. Two blocks from the same run but different
	// iterations must never collapse onto the same stored message row:
	// that would let a later iteration's text land ahead of the tool
	// round it logically followed.
	Iteration int `json:"iteration"`

	// Cancelled marks a block flushed because the event source closed
	// before EndStream rather than on a natural transition.
	Cancelled bool `json:"cancelled,omitempty"`
}
