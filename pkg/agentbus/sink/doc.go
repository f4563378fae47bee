// Package sink provides pluggable output destinations for the bus.
//
// A Sink receives every bus event exactly once per event, independently of
// other sinks. Optional capabilities (Flusher, SyncFlusher, Shutdowner) are
// discovered by interface assertion, so a minimal sink is just an ID and an
// Emit method.
//
// Two implementations ship with the package:
//
//   - StreamSink: the built-in newline-delimited JSON writer with explicit
//     backpressure handling over a FlowWriter. While the underlying channel
//     signals it is not keeping up, the sink queues lines and resumes from
//     the correct offset once the channel drains.
//   - SQLiteSink: a best-effort journal that batches envelopes into one
//     transaction per flush.
//
// Registry holds at most one sink per id and isolates shutdown failures:
// removing a sink whose Shutdown hangs, errors, or panics never raises to
// the caller.
package sink
