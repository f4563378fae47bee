package sink

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/nickmadden/agentbus/pkg/agentbus/event"
	"github.com/nickmadden/agentbus/pkg/agentbus/observability"
)

// FlowWriter is the backpressure-sensitive channel a StreamSink writes to.
//
// WriteLine appends one newline-terminated record to the underlying stream.
// The returned ok mirrors the channel's acceptance signal: false means the
// line was taken but the consumer is not keeping up, and the caller must
// stop writing until AwaitDrain fires. A returned error means the line was
// not delivered; the caller may retry it on a later flush.
type FlowWriter interface {
	WriteLine(line []byte) (ok bool, err error)

	// AwaitDrain registers a one-shot callback invoked when the consumer is
	// ready to accept writes again. Only called after WriteLine returned
	// ok=false.
	AwaitDrain(resume func())
}

// writerFlow adapts an ordinary io.Writer as an always-accepting FlowWriter.
type writerFlow struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFlowWriter wraps an io.Writer that never pushes back.
func NewFlowWriter(w io.Writer) FlowWriter {
	return &writerFlow{w: w}
}

func (f *writerFlow) WriteLine(line []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.w.Write(line)
	return err == nil, err
}

func (f *writerFlow) AwaitDrain(resume func()) {
	// Unreachable for an always-accepting writer, but keep the contract
	// total so callers need no special case.
	resume()
}

// compactThreshold is the read offset past which the drained prefix of the
// queue is physically discarded. Keeps a long backpressure stall from
// growing the queue unbounded while avoiding per-write shifting.
const compactThreshold = 1024

// StreamSink writes newline-delimited JSON envelopes to a FlowWriter,
// pausing while the underlying channel signals backpressure and resuming
// from the correct offset once it drains.
type StreamSink struct {
	id      string
	w       FlowWriter
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	mu            sync.Mutex
	queue         [][]byte
	offset        int
	flushing      bool
	backpressured bool
}

// StreamOption configures a StreamSink.
type StreamOption func(*StreamSink)

// WithStreamLogger attaches a logger for isolated write failures.
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(s *StreamSink) { s.logger = logger }
}

// WithStreamMetrics attaches a metrics recorder for backpressure episodes.
func WithStreamMetrics(m observability.MetricsRecorder) StreamOption {
	return func(s *StreamSink) { s.metrics = m }
}

// NewStreamSink creates the built-in stream sink.
func NewStreamSink(id string, w FlowWriter, opts ...StreamOption) *StreamSink {
	s := &StreamSink{
		id:      id,
		w:       w,
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID implements Sink.
func (s *StreamSink) ID() string { return s.id }

// Emit serializes the envelope, appends it to the queue, and attempts a
// flush.
func (s *StreamSink) Emit(env event.Envelope) error {
	line, err := env.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.queue = append(s.queue, append(line, '\n'))
	err, wait := s.flushLocked()
	s.mu.Unlock()

	// Registered outside the lock: a channel may fire resume synchronously.
	if wait {
		s.w.AwaitDrain(s.resume)
	}
	return err
}

// Flush drains queued lines to the underlying writer, stopping at the
// first backpressure signal.
func (s *StreamSink) Flush() error {
	s.mu.Lock()
	err, wait := s.flushLocked()
	s.mu.Unlock()

	if wait {
		s.w.AwaitDrain(s.resume)
	}
	return err
}

// FlushSync behaves like Flush; a backpressured channel still bounds what
// can be delivered synchronously.
func (s *StreamSink) FlushSync() error {
	return s.Flush()
}

// Shutdown drains what the channel will accept and closes the writer if it
// is closable.
func (s *StreamSink) Shutdown(_ context.Context) error {
	err := s.Flush()
	if c, ok := s.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Backpressured reports whether the sink is currently waiting for the
// underlying channel to drain.
func (s *StreamSink) Backpressured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backpressured
}

// Queued returns the number of lines not yet written.
func (s *StreamSink) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) - s.offset
}

// flushLocked drains until the queue empties or the channel pushes back.
// It returns needDrain=true when the caller must register the resume
// callback after releasing the lock.
func (s *StreamSink) flushLocked() (err error, needDrain bool) {
	if s.flushing || s.backpressured {
		return nil, false
	}
	s.flushing = true
	defer func() { s.flushing = false }()

	for s.offset < len(s.queue) {
		ok, werr := s.w.WriteLine(s.queue[s.offset])
		if werr != nil {
			return werr, false
		}
		s.offset++
		if !ok {
			s.backpressured = true
			s.metrics.RecordBackpressure(context.Background(), s.id)
			observability.LogBackpressure(s.logger, s.id, true, len(s.queue)-s.offset)
			return nil, true
		}
		if s.offset >= compactThreshold {
			s.compactLocked()
		}
	}

	s.queue = s.queue[:0]
	s.offset = 0
	return nil, false
}

// compactLocked trims the queue to its unwritten suffix and resets the
// offset.
func (s *StreamSink) compactLocked() {
	s.queue = append([][]byte(nil), s.queue[s.offset:]...)
	s.offset = 0
}

// resume is the one-shot drain callback: clear the flag and re-run the
// flush loop from the current offset.
func (s *StreamSink) resume() {
	s.mu.Lock()
	s.backpressured = false
	observability.LogBackpressure(s.logger, s.id, false, len(s.queue)-s.offset)
	err, wait := s.flushLocked()
	s.mu.Unlock()

	if wait {
		s.w.AwaitDrain(s.resume)
	}
	if err != nil {
		observability.LogSinkError(s.logger, s.id, "resume", err)
	}
}
