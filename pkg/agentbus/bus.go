package agentbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nickmadden/agentbus/pkg/agentbus/event"
	"github.com/nickmadden/agentbus/pkg/agentbus/observability"
	"github.com/nickmadden/agentbus/pkg/agentbus/sink"
)

// DefaultFlushInterval is the debounce window between an emission and the
// drain that delivers it to sinks.
const DefaultFlushInterval = 10 * time.Millisecond

// DefaultSinceLimit is the EventsSince limit applied when the caller
// passes a non-positive one.
const DefaultSinceLimit = 2000

// Listener observes every non-merged-away event, including merged events
// at their merge point, synchronously at notify time.
//
// Listeners run on the emitting goroutine while the bus holds its internal
// lock. They must complete quickly and must not call back into the bus;
// re-entrant emission from a listener deadlocks. A panicking listener is
// isolated and never prevents delivery to other listeners or to sinks.
type Listener func(event.Envelope)

type listenerEntry struct {
	id int
	fn Listener
}

// Bus is the event-distribution core: it sequences, coalesces, buffers for
// replay, and fans events out to registered sinks with per-sink isolation.
//
// A Bus is explicitly constructed and passed by handle; there is no
// process-wide shared instance, so independent buses can coexist in tests.
type Bus struct {
	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
	flushInterval time.Duration

	// flushMu serializes drains so each sink sees batches in order.
	flushMu sync.Mutex

	mu         sync.Mutex
	seq        *sequencer
	replay     *replayStore
	health     *aggregator
	pending    []event.Envelope
	pendingIdx map[string]int // coalescing key -> index into pending
	timer      *time.Timer
	listeners  []listenerEntry
	nextID     int
	closed     bool

	sinks *sink.Registry
}

// New constructs a bus. The zero options give a 5000-event replay window,
// a 10ms flush debounce, and 15s health emission spacing.
func New(opts ...Option) *Bus {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Bus{
		logger:        o.logger,
		metrics:       o.metrics,
		spans:         o.spans,
		flushInterval: o.flushInterval,
		seq:           newSequencer(),
		replay:        newReplayStore(o.replayLimit),
		health:        newAggregator(o.healthInterval),
		pendingIdx:    make(map[string]int),
		sinks:         sink.NewRegistry(o.logger, o.spans, o.shutdownTimeout),
	}
}

func coalesceKey(sessionID, itemID string) string {
	return sessionKey(sessionID) + "\x00" + itemID
}

// Emit enqueues one event: coalesce against the unflushed buffer, or
// sequence as a new record, notify live listeners, append to the replay
// window, and schedule a flush. Emit never fails for listener or sink
// problems; those are isolated internally.
func (b *Bus) Emit(typ, sessionID string, data map[string]any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	now := time.Now()

	// Coalescing check first: a merged update must not consume a sequence
	// number. A payload without an item id is not coalescible and
	// sequences normally.
	if event.Coalescible(typ) {
		if itemID, ok := event.ItemID(data); ok {
			if i, ok := b.pendingIdx[coalesceKey(sessionID, itemID)]; ok {
				merged := b.pending[i]
				merged.Data = event.MergeFields(merged.Data, data)
				merged.Timestamp = now.UnixMilli()
				b.pending[i] = merged
				b.replay.overwrite(merged.Seq, merged)
				b.metrics.RecordEmit(context.Background(), typ, true)
				b.notifyLocked(merged)
				b.scheduleFlushLocked()
				b.mu.Unlock()
				return
			}
		}
	}

	seq, correlationID, ts := b.seq.assign(typ, sessionID, data)
	env := event.Envelope{
		Type:          typ,
		SessionID:     sessionID,
		Data:          event.CloneData(data),
		Seq:           seq,
		Timestamp:     ts,
		SchemaVersion: event.SchemaVersion,
		CorrelationID: correlationID,
	}

	b.notifyLocked(env)
	if evicted := b.replay.append(env); evicted > 0 {
		b.metrics.RecordEviction(context.Background(), evicted)
		if first, ok := b.replay.earliest(); ok {
			observability.LogEviction(b.logger, evicted, first)
		}
	}
	b.pending = append(b.pending, env)
	if event.Coalescible(typ) {
		if itemID, ok := event.ItemID(env.Data); ok {
			b.pendingIdx[coalesceKey(sessionID, itemID)] = len(b.pending) - 1
		}
	}
	b.metrics.RecordEmit(context.Background(), typ, false)
	he := b.health.observe(env, now)
	b.scheduleFlushLocked()
	b.mu.Unlock()

	// Health events re-enter through the ordinary emit path so they are
	// sequenced, replayed, and fanned out like any other event. Emitted
	// after the lock is released; observe already excludes the health type
	// so this cannot loop.
	if he != nil {
		observability.LogHealth(b.logger, sessionKey(he.sessionID), he.health.Status, he.health.Score)
		b.Emit(event.TypeHealth, he.sessionID, he.data)
	}
}

// EmitPayload emits a typed payload via its event type and field map.
func (b *Bus) EmitPayload(sessionID string, p event.Payload) {
	b.Emit(p.EventType(), sessionID, p.Fields())
}

// Subscribe registers a listener and returns its unsubscribe function.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listenerEntry{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// notifyLocked delivers one envelope to every listener, isolating
// failures. Listeners share one defensive copy of the payload; bus-held
// state stays unreachable.
func (b *Bus) notifyLocked(env event.Envelope) {
	if len(b.listeners) == 0 {
		return
	}
	env.Data = event.CloneData(env.Data)
	for _, l := range b.listeners {
		fn := l.fn
		observability.Guard(b.logger, "listener", func() error {
			fn(env)
			return nil
		})
	}
}

// AddSink registers a sink, replacing any sink with the same id.
func (b *Bus) AddSink(s sink.Sink) {
	b.sinks.Add(s)
}

// RemoveSink deregisters a sink, invoking its optional shutdown
// best-effort. Never raises, even if the shutdown panics.
func (b *Bus) RemoveSink(id string) bool {
	return b.sinks.Remove(id)
}

// ClearSinks deregisters every sink.
func (b *Bus) ClearSinks() {
	b.sinks.Clear()
}

// HasSink reports whether a sink with the given id is registered.
func (b *Bus) HasSink(id string) bool {
	return b.sinks.Has(id)
}

// CurrentSequence returns the latest assigned sequence number, 0 if none.
func (b *Bus) CurrentSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq.current()
}

// ReplayStartSequence returns the oldest retained sequence, or the current
// sequence when the replay window is empty, so a client with no prior
// cursor can bootstrap from "now".
func (b *Bus) ReplayStartSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if first, ok := b.replay.earliest(); ok {
		return first
	}
	return b.seq.current()
}

// EventsSince returns retained events with seq > afterSeq, at most limit
// (default 2000, capped at 10000). When more match than fit, the most
// recent ones win.
func (b *Bus) EventsSince(afterSeq uint64, limit int) []event.Envelope {
	if limit <= 0 {
		limit = DefaultSinceLimit
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replay.since(afterSeq, limit)
}

// SessionHealth returns the derived reliability summary for a session, or
// false if no relevant events have been observed. Pass an empty sessionID
// for the global key.
func (b *Bus) SessionHealth(sessionID string) (Health, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.health.snapshot(sessionKey(sessionID), time.Now())
}

// Flush cancels any pending debounce timer and drains the buffer to every
// sink immediately.
func (b *Bus) Flush() {
	b.drain(false)
}

// FlushSync drains like Flush and additionally asks every sink for a
// synchronous flush, even when the buffer is empty: a sink may hold its
// own pending queue from a prior backpressure episode.
func (b *Bus) FlushSync() {
	b.drain(true)
}

// Close flushes synchronously and shuts down every sink. Emit becomes a
// no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.drain(true)
	b.sinks.Clear()
}

func (b *Bus) scheduleFlushLocked() {
	if b.timer != nil {
		return
	}
	b.timer = time.AfterFunc(b.flushInterval, func() {
		b.mu.Lock()
		b.timer = nil
		b.mu.Unlock()
		b.drain(false)
	})
}

// drain moves the buffer out, hands each event to every sink, then asks
// every sink to flush. flushMu keeps batches ordered per sink.
func (b *Bus) drain(sync bool) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.pending
	b.pending = nil
	b.pendingIdx = make(map[string]int)
	b.mu.Unlock()

	if len(batch) == 0 && !sync {
		return
	}

	sinks := b.sinks.Snapshot()
	elapsedMs := observability.TimedOperation()
	ctx, span := b.spans.StartFlushSpan(context.Background(), len(batch), sync)

	for _, env := range batch {
		// One defensive copy per event, shared across sinks.
		env.Data = event.CloneData(env.Data)
		for _, s := range sinks {
			s, env := s, env
			observability.Guard(b.logger, "sink.emit", func() error {
				if err := s.Emit(env); err != nil {
					b.metrics.RecordSinkError(ctx, s.ID())
					return &event.BusError{Op: "sink.emit", Type: env.Type, Seq: env.Seq, Err: err}
				}
				return nil
			})
		}
	}

	for _, s := range sinks {
		s := s
		b.spans.AddSpanEvent(ctx, "sink.flush", attribute.String("sink.id", s.ID()))
		if f, ok := s.(sink.Flusher); ok {
			observability.Guard(b.logger, "sink.flush", func() error {
				if err := f.Flush(); err != nil {
					b.metrics.RecordSinkError(ctx, s.ID())
					return &event.BusError{Op: "sink.flush", Err: err}
				}
				return nil
			})
		}
		if !sync {
			continue
		}
		if sf, ok := s.(sink.SyncFlusher); ok {
			observability.Guard(b.logger, "sink.flushSync", func() error {
				if err := sf.FlushSync(); err != nil {
					b.metrics.RecordSinkError(ctx, s.ID())
					return &event.BusError{Op: "sink.flushSync", Err: err}
				}
				return nil
			})
		}
	}

	b.spans.EndSpanWithError(span, nil)
	ms := elapsedMs()
	b.metrics.RecordFlush(ctx, len(batch), ms)
	observability.LogFlush(b.logger, len(batch), ms)
}
