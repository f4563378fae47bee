package agentbus

import (
	"time"

	"github.com/nickmadden/agentbus/pkg/agentbus/event"
)

// Health classification thresholds on the derived reliability score.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	healthyThreshold  = 0.9
	degradedThreshold = 0.75
)

// DefaultHealthInterval is the minimum spacing between health events for
// one session.
const DefaultHealthInterval = 15 * time.Second

// Counters are the per-session reliability counters, monotonically
// increasing for the lifetime of the process.
type Counters struct {
	StreamStarts    uint64 `json:"streamStarts"`
	StreamDone      uint64 `json:"streamDone"`
	Checkpoints     uint64 `json:"checkpoints"`
	Recovered       uint64 `json:"recovered"`
	Stalled         uint64 `json:"stalled"`
	FallbackApplied uint64 `json:"fallbackApplied"`
	Errors          uint64 `json:"errors"`
	ToolErrors      uint64 `json:"toolErrors"`
	LastUpdated     int64  `json:"lastUpdated"`
}

// Health is the derived reliability summary for one session key.
type Health struct {
	Counters       Counters `json:"counters"`
	CompletionRate float64  `json:"completionRate"`
	FailureRate    float64  `json:"failureRate"`
	RecoveryRate   float64  `json:"recoveryRate"`
	Score          float64  `json:"score"`
	Status         string   `json:"status"`
	GeneratedAt    int64    `json:"generatedAt"`
}

// deriveHealth computes the reliability summary from raw counters.
// Stream-start-relative metrics default to their "no data yet" values:
// completion 1, failure 0, recovery 1.
func deriveHealth(c Counters, now int64) Health {
	completion := 1.0
	if c.StreamStarts > 0 {
		completion = float64(c.StreamDone) / float64(c.StreamStarts)
	}

	failures := c.Stalled + c.Errors + c.ToolErrors
	failureRate := 0.0
	if c.StreamStarts > 0 {
		failureRate = float64(failures) / float64(c.StreamStarts)
	}

	recovery := 1.0
	if failures > 0 {
		recovery = float64(c.Recovered+c.FallbackApplied) / float64(failures)
	}

	score := completion - 0.65*failureRate + 0.15*recovery
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	status := StatusUnhealthy
	switch {
	case score >= healthyThreshold:
		status = StatusHealthy
	case score >= degradedThreshold:
		status = StatusDegraded
	}

	return Health{
		Counters:       c,
		CompletionRate: completion,
		FailureRate:    failureRate,
		RecoveryRate:   recovery,
		Score:          score,
		Status:         status,
		GeneratedAt:    now,
	}
}

func (h Health) fields() map[string]any {
	return map[string]any{
		"counters": map[string]any{
			"streamStarts":    h.Counters.StreamStarts,
			"streamDone":      h.Counters.StreamDone,
			"checkpoints":     h.Counters.Checkpoints,
			"recovered":       h.Counters.Recovered,
			"stalled":         h.Counters.Stalled,
			"fallbackApplied": h.Counters.FallbackApplied,
			"errors":          h.Counters.Errors,
			"toolErrors":      h.Counters.ToolErrors,
		},
		"completionRate": h.CompletionRate,
		"failureRate":    h.FailureRate,
		"recoveryRate":   h.RecoveryRate,
		"score":          h.Score,
		"status":         h.Status,
		"generatedAt":    h.GeneratedAt,
	}
}

type sessionStats struct {
	counters Counters
	lastEmit time.Time
}

// healthEmission is a synthesized health event waiting to re-enter the bus
// through the ordinary emit path.
type healthEmission struct {
	sessionID string
	data      map[string]any
	health    Health
}

// aggregator observes the event stream per session key and periodically
// derives health events. Created lazily per session, held for the process
// lifetime. Not safe for concurrent use; the bus serializes access.
type aggregator struct {
	interval time.Duration
	sessions map[string]*sessionStats
}

func newAggregator(interval time.Duration) *aggregator {
	return &aggregator{
		interval: interval,
		sessions: make(map[string]*sessionStats),
	}
}

// observe updates counters for one sequenced event and, when the session's
// emission interval has elapsed, returns the health event to synthesize.
// Health events themselves are excluded so they cannot inflate their own
// inputs.
func (a *aggregator) observe(env event.Envelope, now time.Time) *healthEmission {
	if env.Type == event.TypeHealth {
		return nil
	}

	key := sessionKey(env.SessionID)
	st, ok := a.sessions[key]
	if !ok {
		st = &sessionStats{lastEmit: now}
		a.sessions[key] = st
	}

	if !countEvent(&st.counters, env) {
		return nil
	}
	st.counters.LastUpdated = now.UnixMilli()

	if a.interval > 0 && now.Sub(st.lastEmit) < a.interval {
		return nil
	}
	st.lastEmit = now

	h := deriveHealth(st.counters, now.UnixMilli())
	return &healthEmission{
		sessionID: env.SessionID,
		data:      h.fields(),
		health:    h,
	}
}

// snapshot returns the derived health for a session key without emitting.
func (a *aggregator) snapshot(key string, now time.Time) (Health, bool) {
	st, ok := a.sessions[key]
	if !ok {
		return Health{}, false
	}
	return deriveHealth(st.counters, now.UnixMilli()), true
}

// countEvent maps an event type onto the counter it increments. Returns
// false for types that carry no reliability signal. Missing payload fields
// degrade to "no signal" rather than failing.
func countEvent(c *Counters, env event.Envelope) bool {
	switch env.Type {
	case event.TypeStreamStarted:
		c.StreamStarts++
	case event.TypeStreamCompleted:
		c.StreamDone++
	case event.TypeCheckpoint:
		c.Checkpoints++
	case event.TypeStreamRecovered:
		c.Recovered++
	case event.TypeStreamStalled:
		c.Stalled++
	case event.TypeFallbackApplied:
		c.FallbackApplied++
	case event.TypeError:
		c.Errors++
	case event.TypeToolResult:
		if !toolResultFailed(env.Data) {
			return false
		}
		c.ToolErrors++
	default:
		return false
	}
	return true
}

func toolResultFailed(data map[string]any) bool {
	result, ok := data[event.FieldResult].(map[string]any)
	if !ok {
		return false
	}
	if s, ok := result["status"].(string); ok && s == "error" {
		return true
	}
	if s, ok := result["error"].(string); ok && s != "" {
		return true
	}
	return false
}
