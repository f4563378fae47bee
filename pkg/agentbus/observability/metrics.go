package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records agentbus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmit records one emission; coalesced marks a merge into an
	// already buffered event rather than a new sequence number.
	RecordEmit(ctx context.Context, eventType string, coalesced bool)

	// RecordFlush records a drained flush batch and its latency,
	// typically measured with TimedOperation.
	RecordFlush(ctx context.Context, batchSize int, latencyMs float64)

	// RecordSinkError records an isolated sink failure.
	RecordSinkError(ctx context.Context, sinkID string)

	// RecordEviction records replay-window evictions.
	RecordEviction(ctx context.Context, evicted int)

	// RecordBackpressure records a sink entering the backpressured state.
	RecordBackpressure(ctx context.Context, sinkID string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emitted       metric.Int64Counter
	coalesced     metric.Int64Counter
	flushBatch    metric.Int64Histogram
	flushLatency  metric.Float64Histogram
	sinkErrors    metric.Int64Counter
	evictions     metric.Int64Counter
	backpressured metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("agentbus")

	emitted, err := meter.Int64Counter("agentbus.events.emitted",
		metric.WithDescription("Number of events sequenced"),
	)
	if err != nil {
		return nil, err
	}

	coalesced, err := meter.Int64Counter("agentbus.events.coalesced",
		metric.WithDescription("Number of events merged into a buffered event"),
	)
	if err != nil {
		return nil, err
	}

	flushBatch, err := meter.Int64Histogram("agentbus.flush.batch_size",
		metric.WithDescription("Events per flush batch"),
	)
	if err != nil {
		return nil, err
	}

	flushLatency, err := meter.Float64Histogram("agentbus.flush.latency_ms",
		metric.WithDescription("Flush drain latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	sinkErrors, err := meter.Int64Counter("agentbus.sink.errors",
		metric.WithDescription("Isolated sink failures"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter("agentbus.replay.evictions",
		metric.WithDescription("Events evicted from the replay window"),
	)
	if err != nil {
		return nil, err
	}

	backpressured, err := meter.Int64Counter("agentbus.sink.backpressure",
		metric.WithDescription("Backpressure episodes per sink"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emitted:       emitted,
		coalesced:     coalesced,
		flushBatch:    flushBatch,
		flushLatency:  flushLatency,
		sinkErrors:    sinkErrors,
		evictions:     evictions,
		backpressured: backpressured,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEmit records one emission.
func (m *otelMetrics) RecordEmit(ctx context.Context, eventType string, coalesced bool) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
	}
	if coalesced {
		m.coalesced.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	m.emitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFlush records a drained flush batch.
func (m *otelMetrics) RecordFlush(ctx context.Context, batchSize int, latencyMs float64) {
	m.flushBatch.Record(ctx, int64(batchSize))
	m.flushLatency.Record(ctx, latencyMs)
}

// RecordSinkError records an isolated sink failure.
func (m *otelMetrics) RecordSinkError(ctx context.Context, sinkID string) {
	m.sinkErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink_id", sinkID),
	))
}

// RecordEviction records replay-window evictions.
func (m *otelMetrics) RecordEviction(ctx context.Context, evicted int) {
	m.evictions.Add(ctx, int64(evicted))
}

// RecordBackpressure records a sink entering the backpressured state.
func (m *otelMetrics) RecordBackpressure(ctx context.Context, sinkID string) {
	m.backpressured.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink_id", sinkID),
	))
}
