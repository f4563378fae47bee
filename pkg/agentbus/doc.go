// Package agentbus is the event-distribution core for an agent session
// host: a single ordered stream of envelopes covering model streaming,
// tool execution, item updates and derived health.
//
// Every emitted event is assigned a strictly monotonic sequence number and
// a correlation id, buffered briefly so rapid successive updates to the
// same item coalesce into one record, retained in a bounded replay window
// for reconnecting clients, and fanned out to registered sinks on a
// debounced flush.
//
// Basic usage:
//
//	bus := agentbus.New(agentbus.WithReplayLimit(1000))
//	defer bus.Close()
//
//	bus.AddSink(sink.NewStreamSink("stdout", sink.NewFlowWriter(os.Stdout)))
//
//	p := event.NewProducer(bus, "sess-1")
//	runID := p.BeginRun()
//	p.StreamDelta(runID, "msg-1", "hello")
//	bus.FlushSync()
//
// A reconnecting client resumes with
//
//	events := bus.EventsSince(lastSeenSeq, 0)
//
// and detects a gap when its cursor is older than
// bus.ReplayStartSequence().
//
// The bus never propagates listener or sink failures to emitters; a
// misbehaving consumer is logged and isolated.
package agentbus
