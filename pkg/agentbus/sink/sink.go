package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nickmadden/agentbus/pkg/agentbus/event"
	"github.com/nickmadden/agentbus/pkg/agentbus/observability"
)

// Sink is a registered destination that receives every bus event exactly
// once per event, independently of other sinks.
type Sink interface {
	// ID identifies the sink within a registry. Registering a sink with an
	// existing id replaces the previous one.
	ID() string

	// Emit hands one sequenced envelope to the sink. A returned error is
	// isolated by the bus; it never blocks delivery to other sinks.
	Emit(env event.Envelope) error
}

// Flusher is an optional capability: drain any internally buffered events.
type Flusher interface {
	Flush() error
}

// SyncFlusher is an optional capability: a best-effort synchronous flush,
// used by producers that must guarantee delivery before their own call
// returns.
type SyncFlusher interface {
	FlushSync() error
}

// Shutdowner is an optional capability: release resources when the sink is
// removed. Shutdown must honor the context deadline; the registry abandons
// a shutdown that outlives it.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// DefaultShutdownTimeout bounds how long Remove waits for a sink's
// Shutdown before abandoning it.
const DefaultShutdownTimeout = 2 * time.Second

// Registry holds the bus's sinks, at most one per id, in registration
// order for deterministic fan-out.
type Registry struct {
	mu    sync.Mutex
	order []string
	sinks map[string]Sink

	logger          *slog.Logger
	spans           observability.SpanManager
	shutdownTimeout time.Duration
}

// NewRegistry creates an empty sink registry. logger may be nil; spans may
// be nil to disable shutdown spans; a non-positive timeout falls back to
// DefaultShutdownTimeout.
func NewRegistry(logger *slog.Logger, spans observability.SpanManager, shutdownTimeout time.Duration) *Registry {
	if spans == nil {
		spans = observability.NoopSpanManager{}
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Registry{
		sinks:           make(map[string]Sink),
		logger:          logger,
		spans:           spans,
		shutdownTimeout: shutdownTimeout,
	}
}

// Add registers a sink, replacing any sink with the same id. The replaced
// sink is not shut down; callers that want its resources released should
// Remove it first.
func (r *Registry) Add(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.ID()
	if _, ok := r.sinks[id]; !ok {
		r.order = append(r.order, id)
	}
	r.sinks[id] = s
}

// Remove deregisters a sink and invokes its optional shutdown, swallowing
// its failure. Returns true if a sink with that id was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sinks[id]
	if ok {
		delete(r.sinks, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if ok {
		r.shutdown(s)
	}
	return ok
}

// Clear deregisters every sink, shutting each down best-effort.
func (r *Registry) Clear() {
	r.mu.Lock()
	removed := make([]Sink, 0, len(r.order))
	for _, id := range r.order {
		removed = append(removed, r.sinks[id])
	}
	r.order = nil
	r.sinks = make(map[string]Sink)
	r.mu.Unlock()

	for _, s := range removed {
		r.shutdown(s)
	}
}

// Has reports whether a sink with the given id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sinks[id]
	return ok
}

// Len returns the number of registered sinks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

// Snapshot returns the current sinks in registration order for fan-out.
func (r *Registry) Snapshot() []Sink {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sink, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sinks[id])
	}
	return out
}

// shutdown runs the sink's optional Shutdown hook under a bounded wait.
// A shutdown that throws, errors, or outlives the timeout is logged and
// abandoned; it never propagates to the caller.
func (r *Registry) shutdown(s Sink) {
	sh, ok := s.(Shutdowner)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()
	_, span := r.spans.StartShutdownSpan(ctx, s.ID())

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("panic: %v", p)
			}
		}()
		done <- sh.Shutdown(ctx)
	}()

	select {
	case err := <-done:
		r.spans.EndSpanWithError(span, err)
		if err != nil {
			observability.LogSinkError(r.logger, s.ID(), "shutdown", err)
		}
	case <-ctx.Done():
		r.spans.EndSpanWithError(span, ctx.Err())
		if r.logger != nil {
			r.logger.Warn("sink shutdown abandoned",
				slog.String("sink_id", s.ID()),
				slog.Duration("timeout", r.shutdownTimeout),
			)
		}
	}
}
