package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordEmit does nothing.
func (NoopMetrics) RecordEmit(_ context.Context, _ string, _ bool) {}

// RecordFlush does nothing.
func (NoopMetrics) RecordFlush(_ context.Context, _ int, _ float64) {}

// RecordSinkError does nothing.
func (NoopMetrics) RecordSinkError(_ context.Context, _ string) {}

// RecordEviction does nothing.
func (NoopMetrics) RecordEviction(_ context.Context, _ int) {}

// RecordBackpressure does nothing.
func (NoopMetrics) RecordBackpressure(_ context.Context, _ string) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartFlushSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartFlushSpan(ctx context.Context, _ int, _ bool) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartShutdownSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartShutdownSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
