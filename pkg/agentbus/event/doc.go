// Package event defines the wire shape and typed payloads for agentbus.
//
// # Overview
//
//   - Envelope: the sequenced record delivered to listeners and sinks
//   - Payload: typed variants, one per designated event category
//   - Producer: emission wrappers the agent engine calls instead of
//     constructing records itself
//
// # Wire Shape
//
// Every sink receives envelopes with fields type, sessionId, data, seq,
// timestamp (ms since epoch), schemaVersion, and correlationId. Consumers
// must ignore unknown additional fields, and must key merges by
// (sessionId, data.itemId) only for the coalescible types.
//
// # Correlation
//
// Events belonging to one logical agent run share a correlation id even
// though individual event types never declare it explicitly. The bus rotates
// a session's correlation id whenever a payload carries a new runId, so a
// producer only needs to thread the run id through its payloads:
//
//	p := event.NewProducer(bus, "s1")
//	run := p.BeginRun()
//	p.StreamDelta(run, "m1", "hello")
//	p.StreamCompleted(run)
//
// # Coalescing
//
// item.updated and task.updated are coalescible: a burst of partial updates
// for the same (session, itemId) collapses into a single merged record per
// flush window, last writer winning per field.
package event
