package sse

import (
	"bufio"
	"context"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"meridian/internal/accumulator"
	"meridian/internal/config"
	"meridian/internal/domain"
	"meridian/internal/graph"
)

// ContextWindow is the narrow surface the gateway needs from the
// context manager to assemble a run's input messages.
type ContextWindow interface {
	GetContextWindow(ctx context.Context, threadID string) ([]domain.Message, error)
}

// MessageAppender records the user-authored message that starts a run.
type MessageAppender interface {
	AppendHumanMessage(ctx context.Context, threadID, text string, createdAt int64) (domain.Message, error)
}

// Handler wires one HTTP request to one graph run, persisting every
// block as it streams and forwarding the same events to the client as
// SSE frames.
type Handler struct {
	executor *graph.Executor
	sink     accumulator.Sink
	replayer *graph.Replayer
	context  ContextWindow
	messages MessageAppender
	cfg      graph.Config
	logger   *slog.Logger

	keepAliveInterval time.Duration
}

func NewHandler(executor *graph.Executor, sink accumulator.Sink, replayer *graph.Replayer, context ContextWindow, messages MessageAppender, cfg graph.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		executor:          executor,
		sink:              sink,
		replayer:          replayer,
		context:           context,
		messages:          messages,
		cfg:               cfg,
		logger:            logger,
		keepAliveInterval: DefaultKeepAliveInterval,
	}
}

type sendMessageRequest struct {
	ThreadID        string   `json:"thread_id"`
	Text            string   `json:"text"`
	Model           string   `json:"model"`
	ReasoningEffort string   `json:"reasoning_effort"`
	Temperature     *float64 `json:"temperature"`
	MaxTokens       *int     `json:"max_tokens"`
}

func (r sendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, config.MaxMessageContentLength)),
		validation.Field(&r.Model, validation.Required),
	)
}

// SendMessage handles POST /api/threads/:threadID/messages: it
// appends the human message, assembles the context window, runs the
// graph, and streams every StreamEvent back over SSE while an
// Accumulator persists blocks in the background.
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	threadID := c.Params("threadID")

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	reqCtx := c.Context()
	now := time.Now().Unix()
	if _, err := h.messages.AppendHumanMessage(reqCtx, threadID, req.Text, now); err != nil {
		h.logger.Error("sse: append human message failed", "thread_id", threadID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to record message")
	}

	window, err := h.context.GetContextWindow(reqCtx, threadID)
	if err != nil {
		h.logger.Error("sse: get context window failed", "thread_id", threadID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to assemble context")
	}

	runID := uuid.New().String()
	cfg := h.cfg
	cfg.Model = req.Model
	cfg.ReasoningEffort = req.ReasoningEffort
	cfg.Temperature = req.Temperature
	cfg.MaxTokens = req.MaxTokens

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The run itself must outlive the HTTP handler's fiber context
	// (a disconnecting client shouldn't abort persistence of blocks
	// already in flight), so it runs under context.Background(), which
	// nothing cancels — not c.Context(). The run ends through the
	// executor's own iteration and execution-timeout guardrails.
	runCtx := context.Background()

	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(bw *bufio.Writer) {
		writer := NewWriter(bw)
		acc := accumulator.New(threadID, runID, h.sink, h.logger)

		events := h.executor.Run(runCtx, runID, threadID, window, cfg)

		stop := make(chan struct{})
		keepAliveErr := runKeepAlive(writer, h.keepAliveInterval, stop)
		defer close(stop)

		// A write failure only means the client is gone; it must not
		// stop draining events, or the executor's send blocks forever
		// once its buffered channel fills and the accumulator stops
		// persisting mid-run. Keep consuming events and feeding the
		// accumulator for the rest of the run; just stop writing.
		clientGone := false
		for ev := range events {
			if _, err := acc.Observe(runCtx, ev); err != nil {
				h.logger.Error("sse: accumulator observe failed", "run_id", runID, "error", err)
			}
			if clientGone {
				continue
			}
			if err := writer.WriteEvent(ev); err != nil {
				h.logger.Info("sse: client disconnected mid-stream, continuing run in background", "run_id", runID, "error", err)
				clientGone = true
			}
		}

		select {
		case <-keepAliveErr:
		default:
		}
	})

	return nil
}

// Reconnect handles GET /api/threads/:threadID/runs/:runID: it
// replays every block committed so far for a run without
// re-invoking the LLM, for a client that dropped mid-stream.
func (h *Handler) Reconnect(c *fiber.Ctx) error {
	threadID := c.Params("threadID")
	runID := c.Params("runID")

	events, err := h.replayer.Catchup(c.Context(), threadID, runID)
	if err != nil {
		h.logger.Error("sse: catchup failed", "thread_id", threadID, "run_id", runID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to replay run")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(bw *bufio.Writer) {
		writer := NewWriter(bw)
		for _, ev := range events {
			if err := writer.WriteEvent(ev); err != nil {
				return
			}
		}
	})

	return nil
}
