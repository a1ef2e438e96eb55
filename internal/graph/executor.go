package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meridian/internal/domain"
	"meridian/internal/llmclient"
	"meridian/internal/toolexec"
)

// Executor drives one run at a time per Run call. The LLM client,
// tool client, and logger are shared, thread-safe handles; everything
// else a run touches (State) belongs exclusively to that run's
// goroutine.
type Executor struct {
	llm   llmclient.Client
	tools toolexec.Client

	logger *slog.Logger

	defaultMaxIterations    int
	defaultExecutionTimeout int
	defaultToolTimeout      int
	defaultChannelCapacity  int
	stampEventIDs           bool
}

// New builds an Executor around shared LLM and tool clients.
func New(llm llmclient.Client, tools toolexec.Client, opts ...Option) *Executor {
	e := &Executor{
		llm:                     llm,
		tools:                   tools,
		logger:                  slog.Default(),
		defaultMaxIterations:    25,
		defaultExecutionTimeout: 300,
		defaultToolTimeout:      30,
		defaultChannelCapacity:  1024,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run spawns the single goroutine that owns this run's State and
// drives it through the LLM/Tool loop until End. StreamEvents reach
// the returned channel in the exact order they are emitted; the
// channel closes after the terminal EndStream event, or immediately
// if ctx is cancelled before InitStream can be sent.
func (e *Executor) Run(ctx context.Context, runID, conversationID string, messages []domain.Message, cfg Config) <-chan domain.StreamEvent {
	cfg = e.withDefaults(cfg)
	out := make(chan domain.StreamEvent, cfg.EventChannelCapacity)

	go e.execute(ctx, runID, conversationID, messages, cfg, out)

	return out
}

func (e *Executor) withDefaults(cfg Config) Config {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = e.defaultMaxIterations
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = e.defaultExecutionTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = e.defaultToolTimeout
	}
	if cfg.EventChannelCapacity <= 0 {
		cfg.EventChannelCapacity = e.defaultChannelCapacity
	}
	return cfg
}

func (e *Executor) execute(ctx context.Context, runID, conversationID string, messages []domain.Message, cfg Config, out chan<- domain.StreamEvent) {
	defer close(out)

	state := &State{RunID: runID, ConversationID: conversationID, Messages: messages}
	start := time.Now()
	var eventSeq int64

	send := func(ev domain.StreamEvent) bool {
		if e.stampEventIDs {
			id := eventSeq
			eventSeq++
			ev.EventID = &id
		}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// trySend makes a best-effort, non-blocking delivery attempt. Used
	// for the terminal EndStream: it should go out if still possible
	// once cancellation has already been observed, rather than racing
	// its delivery against ctx.Done like every other send in this run.
	trySend := func(ev domain.StreamEvent) {
		if e.stampEventIDs {
			id := eventSeq
			eventSeq++
			ev.EventID = &id
		}
		select {
		case out <- ev:
		default:
		}
	}

	if !send(domain.NewInitStream(runID, conversationID, start.Unix())) {
		return
	}

	deadline := time.After(time.Duration(cfg.ExecutionTimeout) * time.Second)
	current := NodeLLM
	status := domain.StatusSuccess

loop:
	for {
		select {
		case <-ctx.Done():
			status = domain.StatusCancelled
			break loop
		case <-deadline:
			send(domain.NewError("execution timeout exceeded", nil))
			status = domain.StatusError
			break loop
		default:
		}

		if state.Iteration >= cfg.MaxIterations {
			send(domain.NewError("max iterations exceeded", nil))
			status = domain.StatusError
			break loop
		}

		var err error
		switch current {
		case NodeLLM:
			err = e.runLLM(ctx, state, cfg, send)
		case NodeTool:
			err = e.runTool(ctx, state, cfg, send)
		default:
			break loop
		}
		if err != nil {
			nodeID := string(current)
			send(domain.NewError(err.Error(), &nodeID))
			status = domain.StatusError
			break loop
		}
		if ctx.Err() != nil {
			status = domain.StatusCancelled
			break loop
		}

		next := Route(current, state)
		if next == NodeEnd {
			break loop
		}
		current = next
		state.Iteration++
	}

	end := domain.NewEndStream(status, time.Since(start).Milliseconds())
	if status == domain.StatusCancelled {
		trySend(end)
	} else {
		send(end)
	}
}

// runLLM invokes the LLM client's streaming call, forwarding every
// event downstream as it arrives and assembling the resulting
// assistant message (text plus any tool calls) onto state.Messages.
func (e *Executor) runLLM(ctx context.Context, state *State, cfg Config, send func(domain.StreamEvent) bool) error {
	llmCfg := llmclient.Config{
		Model:           cfg.Model,
		ReasoningEffort: cfg.ReasoningEffort,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
	}

	var events <-chan domain.StreamEvent
	var err error
	if cfg.ReasoningEffort != "" {
		events, err = e.llm.ReasonStream(ctx, llmCfg, state.Messages, cfg.Tools)
	} else {
		events, err = e.llm.ChatStream(ctx, llmCfg, state.Messages, cfg.Tools)
	}
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	var textBuf strings.Builder
	toolCalls := map[int]*domain.ToolCall{}
	var toolOrder []int
	streamFailed := false

	for ev := range events {
		if !send(ev) {
			return nil
		}
		switch {
		case ev.IsError():
			streamFailed = true
		case ev.IsMessage():
			delta, _ := ev.ExtractTextDelta()
			textBuf.WriteString(delta)
		case ev.IsToolCall():
			index, id, name, argsDelta, _ := ev.ExtractToolCallFields()
			tc, exists := toolCalls[index]
			if !exists {
				tc = &domain.ToolCall{Index: index}
				toolCalls[index] = tc
				toolOrder = append(toolOrder, index)
			}
			if id != nil {
				tc.ID = *id
			}
			if name != nil {
				tc.Name = *name
			}
			if argsDelta != nil {
				tc.Arguments += *argsDelta
			}
		}
	}

	if streamFailed {
		return fmt.Errorf("llm: provider stream ended with an error event")
	}

	assistant := domain.Message{Role: domain.RoleAI, Text: textBuf.String()}
	for _, idx := range toolOrder {
		assistant.ToolCalls = append(assistant.ToolCalls, *toolCalls[idx])
	}
	state.Messages = append(state.Messages, assistant)
	return nil
}

// runTool executes every tool_call on the last assistant message, in
// declared order, emitting one ToolCall then one ToolResult per call
// and appending one Tool message per call. A tool failure, argument
// parse failure, or timeout never halts the run: it becomes a
// ToolResult{is_error: true} and the loop continues back to NodeLLM.
func (e *Executor) runTool(ctx context.Context, state *State, cfg Config, send func(domain.StreamEvent) bool) error {
	last, ok := state.lastAssistantMessage()
	if !ok {
		return fmt.Errorf("tool node: no assistant message with tool calls")
	}

	for _, tc := range last.ToolCalls {
		id, name := tc.ID, tc.Name
		if !send(domain.NewToolCall(tc.Index, &id, &name, nil)) {
			return nil
		}

		callStart := time.Now()
		var resultText string
		var isError bool

		args, parseErr := tc.UnmarshalArguments()
		if parseErr != nil {
			isError = true
			resultText = fmt.Sprintf("invalid tool call arguments: %v", parseErr)
		} else {
			resultText, isError = e.callTool(ctx, cfg, tc.Name, args)
		}

		durationMs := time.Since(callStart).Milliseconds()
		if !send(domain.NewToolResult(tc.ID, resultText, isError, durationMs)) {
			return nil
		}

		state.Messages = append(state.Messages, domain.Message{
			Role:       domain.RoleTool,
			ToolCallID: tc.ID,
			Result:     resultText,
		})
	}

	return nil
}

func (e *Executor) callTool(ctx context.Context, cfg Config, name string, args map[string]any) (result string, isError bool) {
	toolCtx := ctx
	if cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.ToolTimeout)*time.Second)
		defer cancel()
	}

	out, err := e.tools.CallTool(toolCtx, name, args)
	if err == nil {
		return out, false
	}

	var toolErr *toolexec.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Message, true
	}
	if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("tool %q timed out after %ds", name, cfg.ToolTimeout), true
	}
	return err.Error(), true
}
