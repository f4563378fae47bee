package agentbus

import (
	"fmt"
	"time"

	"github.com/nickmadden/agentbus/pkg/agentbus/event"
)

// globalSessionKey keys correlation and reliability state for session-less
// events.
const globalSessionKey = "global"

func sessionKey(sessionID string) string {
	if sessionID == "" {
		return globalSessionKey
	}
	return sessionID
}

// sequencer assigns monotonic sequence numbers and stable per-session
// correlation identifiers. It is not safe for concurrent use; the bus
// serializes access.
type sequencer struct {
	last        uint64
	correlation map[string]string // session key -> last correlation id
}

func newSequencer() *sequencer {
	return &sequencer{correlation: make(map[string]string)}
}

// current returns the latest assigned sequence number, 0 if none yet.
func (s *sequencer) current() uint64 {
	return s.last
}

// assign sequences one logically distinct event. Must be called exactly
// once per non-merged emission, after the coalescing check.
//
// Correlation resolution: a run identifier in the payload rotates the
// session's correlation id to sessionKey:runId; otherwise the last known id
// for that session is reused; otherwise sessionKey:type:seq is minted and
// remembered until a real run id appears.
func (s *sequencer) assign(typ, sessionID string, data map[string]any) (seq uint64, correlationID string, timestamp int64) {
	s.last++
	seq = s.last
	timestamp = time.Now().UnixMilli()

	key := sessionKey(sessionID)
	if runID, ok := event.RunID(data); ok {
		correlationID = key + ":" + runID
		s.correlation[key] = correlationID
		return seq, correlationID, timestamp
	}
	if prev, ok := s.correlation[key]; ok {
		return seq, prev, timestamp
	}
	correlationID = fmt.Sprintf("%s:%s:%d", key, typ, seq)
	s.correlation[key] = correlationID
	return seq, correlationID, timestamp
}
