package event

// Payload is implemented by the typed payload variants. The bus operates on
// the map form; typed structs give producers compile-time shape guarantees
// while leaving the wire format an open JSON object.
type Payload interface {
	// EventType returns the event type this payload belongs to.
	EventType() string

	// Fields returns the payload as an open map for emission.
	Fields() map[string]any
}

// StreamStarted marks the beginning of a model output stream for a run.
type StreamStarted struct {
	RunID string
}

func (p StreamStarted) EventType() string { return TypeStreamStarted }

func (p StreamStarted) Fields() map[string]any {
	return map[string]any{FieldRunID: p.RunID}
}

// StreamDelta carries one incremental chunk of model output.
type StreamDelta struct {
	RunID     string
	MessageID string
	Text      string
}

func (p StreamDelta) EventType() string { return TypeStreamDelta }

func (p StreamDelta) Fields() map[string]any {
	return map[string]any{
		FieldRunID:  p.RunID,
		"messageId": p.MessageID,
		"text":      p.Text,
	}
}

// StreamCompleted marks a run's stream as finished.
type StreamCompleted struct {
	RunID string
}

func (p StreamCompleted) EventType() string { return TypeStreamCompleted }

func (p StreamCompleted) Fields() map[string]any {
	return map[string]any{FieldRunID: p.RunID}
}

// StreamStalled reports a stream that stopped making progress.
type StreamStalled struct {
	RunID  string
	Reason string
}

func (p StreamStalled) EventType() string { return TypeStreamStalled }

func (p StreamStalled) Fields() map[string]any {
	return map[string]any{FieldRunID: p.RunID, "reason": p.Reason}
}

// StreamRecovered reports a previously stalled stream resuming.
type StreamRecovered struct {
	RunID string
}

func (p StreamRecovered) EventType() string { return TypeStreamRecovered }

func (p StreamRecovered) Fields() map[string]any {
	return map[string]any{FieldRunID: p.RunID}
}

// Checkpoint marks a durable progress point within a run.
type Checkpoint struct {
	RunID string
	Label string
}

func (p Checkpoint) EventType() string { return TypeCheckpoint }

func (p Checkpoint) Fields() map[string]any {
	return map[string]any{FieldRunID: p.RunID, "label": p.Label}
}

// FallbackApplied reports a degraded-mode substitution (e.g. a cheaper model
// taking over after repeated failures).
type FallbackApplied struct {
	RunID string
	From  string
	To    string
}

func (p FallbackApplied) EventType() string { return TypeFallbackApplied }

func (p FallbackApplied) Fields() map[string]any {
	return map[string]any{FieldRunID: p.RunID, "from": p.From, "to": p.To}
}

// ToolOutcome is the embedded result of a tool execution.
type ToolOutcome struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Output any    `json:"output,omitempty"`
}

// Failed reports whether the outcome indicates a tool failure.
func (o ToolOutcome) Failed() bool {
	return o.Status == "error" || o.Error != ""
}

func (o ToolOutcome) fields() map[string]any {
	m := map[string]any{"status": o.Status}
	if o.Error != "" {
		m["error"] = o.Error
	}
	if o.Output != nil {
		m["output"] = o.Output
	}
	return m
}

// ToolStart marks the beginning of a tool execution.
type ToolStart struct {
	RunID  string
	Tool   string
	ItemID string
}

func (p ToolStart) EventType() string { return TypeToolStart }

func (p ToolStart) Fields() map[string]any {
	m := map[string]any{FieldRunID: p.RunID, "tool": p.Tool}
	if p.ItemID != "" {
		m[FieldItemID] = p.ItemID
	}
	return m
}

// ToolResult carries the terminal outcome of a tool execution.
type ToolResult struct {
	RunID  string
	Tool   string
	ItemID string
	Result ToolOutcome
}

func (p ToolResult) EventType() string { return TypeToolResult }

func (p ToolResult) Fields() map[string]any {
	m := map[string]any{
		FieldRunID:  p.RunID,
		"tool":      p.Tool,
		FieldResult: p.Result.fields(),
	}
	if p.ItemID != "" {
		m[FieldItemID] = p.ItemID
	}
	return m
}

// ItemUpdate is a partial update to an in-flight item (coalescible).
type ItemUpdate struct {
	ItemID  string
	Updates map[string]any
}

func (p ItemUpdate) EventType() string { return TypeItemUpdated }

func (p ItemUpdate) Fields() map[string]any {
	return map[string]any{FieldItemID: p.ItemID, FieldUpdates: p.Updates}
}

// TaskUpdate is a partial update to a background task (coalescible).
type TaskUpdate struct {
	ItemID  string
	Updates map[string]any
}

func (p TaskUpdate) EventType() string { return TypeTaskUpdated }

func (p TaskUpdate) Fields() map[string]any {
	return map[string]any{FieldItemID: p.ItemID, FieldUpdates: p.Updates}
}

// PermissionRequest asks the user to approve a pending action.
type PermissionRequest struct {
	RequestID   string
	Tool        string
	Description string
}

func (p PermissionRequest) EventType() string { return TypePermissionRequested }

func (p PermissionRequest) Fields() map[string]any {
	return map[string]any{
		"requestId":   p.RequestID,
		"tool":        p.Tool,
		"description": p.Description,
	}
}

// ErrorEvent reports a generic error observed during a run.
type ErrorEvent struct {
	RunID   string
	Message string
}

func (p ErrorEvent) EventType() string { return TypeError }

func (p ErrorEvent) Fields() map[string]any {
	m := map[string]any{"message": p.Message}
	if p.RunID != "" {
		m[FieldRunID] = p.RunID
	}
	return m
}
