// Package sse is the gateway's peripheral HTTP glue: it turns one
// graph run into a text/event-stream response, and renders replayed
// blocks the same way for a reconnecting client. It holds no domain
// logic of its own — the graph, accumulator, and context manager
// remain authoritative.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// Writer renders domain.StreamEvent-shaped values as SSE data frames
// onto a fiber body stream writer.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent marshals v (expected to be a json.Marshaler, almost
// always domain.StreamEvent) as one SSE "data:" frame and flushes it
// immediately so clients see it without buffering delay.
func (w *Writer) WriteEvent(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteKeepAlive implements the KeepAliveWriter contract: an SSE
// comment line, ignored by clients, that keeps idle intermediaries
// from closing the connection.
func (w *Writer) WriteKeepAlive() error {
	if _, err := fmt.Fprint(w.w, ": keepalive\n\n"); err != nil {
		return err
	}
	return w.w.Flush()
}
