package llmclient

import (
	"context"
	"fmt"

	"meridian/internal/domain"
	"meridian/internal/toolexec"
)

// ModelAware is implemented by adapters that can tell the router
// whether they serve a given model id.
type ModelAware interface {
	SupportsModel(model string) bool
}

// Router dispatches a run to whichever registered Client claims the
// requested model, so the graph executor stays provider-agnostic.
type Router struct {
	adapters []modelAdapter
}

type modelAdapter struct {
	client Client
	aware  ModelAware
}

// NewRouter builds a Router from zero or more Client implementations
// that also implement ModelAware. Adapters are tried in registration
// order; the first one claiming a model wins.
func NewRouter(adapters ...Client) *Router {
	r := &Router{}
	for _, a := range adapters {
		aware, ok := a.(ModelAware)
		if !ok {
			continue
		}
		r.adapters = append(r.adapters, modelAdapter{client: a, aware: aware})
	}
	return r
}

func (r *Router) resolve(model string) (Client, error) {
	for _, a := range r.adapters {
		if a.aware.SupportsModel(model) {
			return a.client, nil
		}
	}
	return nil, fmt.Errorf("llmclient: no adapter registered for model %q", model)
}

func (r *Router) ChatStream(ctx context.Context, cfg Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	client, err := r.resolve(cfg.Model)
	if err != nil {
		return nil, err
	}
	return client.ChatStream(ctx, cfg, messages, tools)
}

func (r *Router) ReasonStream(ctx context.Context, cfg Config, messages []domain.Message, tools []toolexec.ToolDescriptor) (<-chan domain.StreamEvent, error) {
	client, err := r.resolve(cfg.Model)
	if err != nil {
		return nil, err
	}
	return client.ReasonStream(ctx, cfg, messages, tools)
}
