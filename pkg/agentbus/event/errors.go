package event

import "fmt"

// BusError describes a failure inside the bus or one of its collaborators.
// These never reach a producer's Emit call; they surface through logs and
// sink/listener isolation.
type BusError struct {
	Op   string // operation that failed ("listener", "sink.emit", ...)
	Type string // event type involved, if any
	Seq  uint64 // sequence number involved, if any
	Err  error  // underlying error
}

// Error implements the error interface.
func (e *BusError) Error() string {
	if e.Seq > 0 {
		return fmt.Sprintf("%s: event %s seq %d: %v", e.Op, e.Type, e.Seq, e.Err)
	}
	if e.Type != "" {
		return fmt.Sprintf("%s: event %s: %v", e.Op, e.Type, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *BusError) Unwrap() error {
	return e.Err
}
