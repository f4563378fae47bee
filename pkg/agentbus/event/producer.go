package event

import "github.com/google/uuid"

// Emitter is the bus surface producers need. The agent engine calls these
// wrappers rather than constructing envelopes itself.
type Emitter interface {
	Emit(typ, sessionID string, data map[string]any)
}

// Producer provides typed emission wrappers for one session.
type Producer struct {
	bus       Emitter
	sessionID string
}

// NewProducer returns a producer bound to a session. An empty sessionID
// emits session-less (global) events.
func NewProducer(bus Emitter, sessionID string) *Producer {
	return &Producer{bus: bus, sessionID: sessionID}
}

// NewRunID mints a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// BeginRun mints a run id, emits the stream-started event for it, and
// returns the id. Subsequent events carrying this id share a correlation id.
func (p *Producer) BeginRun() string {
	id := NewRunID()
	p.emit(StreamStarted{RunID: id})
	return id
}

func (p *Producer) emit(payload Payload) {
	p.bus.Emit(payload.EventType(), p.sessionID, payload.Fields())
}

// StreamStarted emits a stream-started event for an externally minted run.
func (p *Producer) StreamStarted(runID string) {
	p.emit(StreamStarted{RunID: runID})
}

// StreamDelta emits one chunk of streamed model output.
func (p *Producer) StreamDelta(runID, messageID, text string) {
	p.emit(StreamDelta{RunID: runID, MessageID: messageID, Text: text})
}

// StreamCompleted emits the end-of-stream marker for a run.
func (p *Producer) StreamCompleted(runID string) {
	p.emit(StreamCompleted{RunID: runID})
}

// StreamStalled reports a stream that stopped making progress.
func (p *Producer) StreamStalled(runID, reason string) {
	p.emit(StreamStalled{RunID: runID, Reason: reason})
}

// StreamRecovered reports a stalled stream resuming.
func (p *Producer) StreamRecovered(runID string) {
	p.emit(StreamRecovered{RunID: runID})
}

// Checkpoint records a durable progress point.
func (p *Producer) Checkpoint(runID, label string) {
	p.emit(Checkpoint{RunID: runID, Label: label})
}

// FallbackApplied reports a degraded-mode substitution.
func (p *Producer) FallbackApplied(runID, from, to string) {
	p.emit(FallbackApplied{RunID: runID, From: from, To: to})
}

// ToolStart reports a tool execution beginning.
func (p *Producer) ToolStart(runID, tool, itemID string) {
	p.emit(ToolStart{RunID: runID, Tool: tool, ItemID: itemID})
}

// ToolResult reports a tool execution's terminal outcome.
func (p *Producer) ToolResult(runID, tool, itemID string, result ToolOutcome) {
	p.emit(ToolResult{RunID: runID, Tool: tool, ItemID: itemID, Result: result})
}

// ItemUpdated emits a coalescible partial update for an in-flight item.
func (p *Producer) ItemUpdated(itemID string, updates map[string]any) {
	p.emit(ItemUpdate{ItemID: itemID, Updates: updates})
}

// TaskUpdated emits a coalescible partial update for a background task.
func (p *Producer) TaskUpdated(itemID string, updates map[string]any) {
	p.emit(TaskUpdate{ItemID: itemID, Updates: updates})
}

// PermissionRequested asks the user to approve a pending action.
func (p *Producer) PermissionRequested(requestID, tool, description string) {
	p.emit(PermissionRequest{RequestID: requestID, Tool: tool, Description: description})
}

// Error reports a generic error observed during a run.
func (p *Producer) Error(runID, message string) {
	p.emit(ErrorEvent{RunID: runID, Message: message})
}
