// Package observability provides production-grade observability features
// for agentbus: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"fmt"
	"log/slog"
	"time"
)

// EnrichLogger adds bus context to a logger.
// Returns a new logger with session_id and correlation_id fields.
func EnrichLogger(logger *slog.Logger, sessionID, correlationID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("correlation_id", correlationID),
	)
}

// Guard invokes fn, converting any returned error or panic into a logged
// diagnostic. It returns control unconditionally: the bus is a never-throw
// boundary for its callers, so every listener and sink call goes through
// here.
func Guard(logger *slog.Logger, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("panic isolated",
					slog.String("op", op),
					slog.String("panic", fmt.Sprint(r)),
				)
			}
		}
	}()
	if err := fn(); err != nil {
		if logger != nil {
			logger.Error("error isolated",
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LogSinkError logs a sink emission or flush failure (non-fatal).
func LogSinkError(logger *slog.Logger, sinkID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("sink failed",
		slog.String("sink_id", sinkID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogFlush logs a completed flush batch.
func LogFlush(logger *slog.Logger, batchSize int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("flush completed",
		slog.Int("batch_size", batchSize),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogBackpressure logs a sink entering or leaving the backpressured state.
func LogBackpressure(logger *slog.Logger, sinkID string, active bool, queued int) {
	if logger == nil {
		return
	}
	logger.Debug("sink backpressure",
		slog.String("sink_id", sinkID),
		slog.Bool("active", active),
		slog.Int("queued", queued),
	)
}

// LogEviction logs replay-window eviction. Eviction is a memory-bound
// policy, not a failure.
func LogEviction(logger *slog.Logger, evicted int, earliestSeq uint64) {
	if logger == nil {
		return
	}
	logger.Debug("replay window evicted",
		slog.Int("evicted", evicted),
		slog.Uint64("earliest_seq", earliestSeq),
	)
}

// LogHealth logs an emitted health event.
func LogHealth(logger *slog.Logger, sessionKey, status string, score float64) {
	if logger == nil {
		return
	}
	logger.Info("session health",
		slog.String("session_key", sessionKey),
		slog.String("status", status),
		slog.Float64("score", score),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds with sub-millisecond precision.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000.0
	}
}
