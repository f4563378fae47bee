package agentbus

import (
	"sort"

	"github.com/nickmadden/agentbus/pkg/agentbus/event"
)

// Replay window bounds.
const (
	MinReplayLimit     = 100
	DefaultReplayLimit = 5000

	// maxSinceLimit caps a single EventsSince query.
	maxSinceLimit = 10000
)

// replayStore is the bounded, append-only window of sequenced events used
// to serve reconnect queries. Oldest entries are evicted first once the
// limit is exceeded; eviction is a memory-bound policy, not a failure.
// Exclusively owned by the bus.
type replayStore struct {
	limit   int
	entries []event.Envelope
}

func newReplayStore(limit int) *replayStore {
	if limit < MinReplayLimit {
		limit = MinReplayLimit
	}
	return &replayStore{limit: limit}
}

// append adds a sequenced envelope, evicting the oldest entries beyond the
// window limit. Returns the number of evicted entries.
func (r *replayStore) append(env event.Envelope) int {
	r.entries = append(r.entries, env)
	if len(r.entries) <= r.limit {
		return 0
	}
	drop := len(r.entries) - r.limit
	r.entries = r.entries[drop:]
	// Reslicing pins the backing array; copy once it doubles.
	if cap(r.entries) > 2*r.limit {
		r.entries = append(make([]event.Envelope, 0, r.limit), r.entries...)
	}
	return drop
}

// overwrite replaces the retained entry with the given seq, if still
// retained. Used when a coalescible update merges into a buffered event.
func (r *replayStore) overwrite(seq uint64, env event.Envelope) bool {
	i := r.search(seq)
	if i >= len(r.entries) || r.entries[i].Seq != seq {
		return false
	}
	r.entries[i] = env
	return true
}

// since returns retained events with seq > afterSeq, at most limit of
// them. When more than limit match, the oldest matches are dropped: a
// reconnecting consumer always gets the most recent events within the
// requested window.
func (r *replayStore) since(afterSeq uint64, limit int) []event.Envelope {
	if limit < 1 {
		limit = 1
	}
	if limit > maxSinceLimit {
		limit = maxSinceLimit
	}

	i := r.search(afterSeq + 1)
	match := r.entries[i:]
	if len(match) > limit {
		match = match[len(match)-limit:]
	}
	out := make([]event.Envelope, len(match))
	copy(out, match)
	return out
}

// earliest returns the seq of the oldest retained record, or false when
// the store is empty.
func (r *replayStore) earliest() (uint64, bool) {
	if len(r.entries) == 0 {
		return 0, false
	}
	return r.entries[0].Seq, true
}

func (r *replayStore) len() int {
	return len(r.entries)
}

// search returns the index of the first retained entry with seq >= target.
// Entries are kept in seq order; overwrite preserves it.
func (r *replayStore) search(target uint64) int {
	return sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].Seq >= target
	})
}
