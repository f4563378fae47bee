package event

import (
	"encoding/json"
	"sort"
)

// SchemaVersion is the current wire schema version stamped on every envelope.
const SchemaVersion uint32 = 1

// Event types emitted by the agent engine and the bus itself.
const (
	TypeStreamStarted   = "stream.started"
	TypeStreamDelta     = "stream.delta"
	TypeStreamCompleted = "stream.completed"
	TypeStreamStalled   = "stream.stalled"
	TypeStreamRecovered = "stream.recovered"
	TypeCheckpoint      = "stream.checkpoint"
	TypeFallbackApplied = "stream.fallback"

	TypeToolStart  = "tool.start"
	TypeToolResult = "tool.result"

	TypeItemUpdated = "item.updated"
	TypeTaskUpdated = "task.updated"

	TypePermissionRequested = "permission.requested"

	TypeError  = "error"
	TypeHealth = "health"
)

// Payload field names shared between producers and the bus.
const (
	FieldRunID   = "runId"
	FieldItemID  = "itemId"
	FieldUpdates = "updates"
	FieldResult  = "result"
)

// Envelope is a sequenced event as delivered to listeners and sinks.
// Envelopes are immutable once sequenced; a coalesced update replaces the
// buffered copy before it leaves the flush window and overwrites the replay
// entry at the same seq.
//
// A session-less event carries an empty SessionID. Consumers must treat
// unknown additional fields as forward-compatible and ignorable.
type Envelope struct {
	Type          string         `json:"type"`
	SessionID     string         `json:"sessionId"`
	Data          map[string]any `json:"data"`
	Seq           uint64         `json:"seq"`
	Timestamp     int64          `json:"timestamp"`
	SchemaVersion uint32         `json:"schemaVersion"`
	CorrelationID string         `json:"correlationId"`
}

// Encode serializes the envelope to its JSON wire form.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Coalescible reports whether events of the given type merge against an
// in-flight buffered event with the same session and item identifier.
func Coalescible(typ string) bool {
	return typ == TypeItemUpdated || typ == TypeTaskUpdated
}

// ItemID extracts the stable item identifier used as the coalescing key.
// A missing or non-string identifier means the event is not coalescible.
func ItemID(data map[string]any) (string, bool) {
	s, ok := data[FieldItemID].(string)
	return s, ok && s != ""
}

// RunID extracts a run identifier from a payload: a top-level runId string
// field, or a runId string inside any nested object. Nested objects are
// scanned in sorted key order so extraction is deterministic.
func RunID(data map[string]any) (string, bool) {
	if s, ok := data[FieldRunID].(string); ok && s != "" {
		return s, true
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		nested, ok := data[k].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := nested[FieldRunID].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// CloneData returns a shallow copy of a payload map. The bus hands out
// clones so listeners and sinks cannot mutate bus-held state.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// MergeFields shallow-merges an incoming payload over a buffered one,
// incoming fields winning on conflict. The nested updates object is itself
// merged field-by-field so no writer's fields are lost within a flush window.
func MergeFields(base, incoming map[string]any) map[string]any {
	merged := CloneData(base)
	if merged == nil {
		merged = make(map[string]any, len(incoming))
	}
	for k, v := range incoming {
		if k == FieldUpdates {
			inner, ok := v.(map[string]any)
			if !ok {
				merged[k] = v
				continue
			}
			prev, _ := merged[k].(map[string]any)
			u := CloneData(prev)
			if u == nil {
				u = make(map[string]any, len(inner))
			}
			for uk, uv := range inner {
				u[uk] = uv
			}
			merged[k] = u
			continue
		}
		merged[k] = v
	}
	return merged
}
