package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("agentbus")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func findAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartFlushSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()
	_, span := m.StartFlushSpan(context.Background(), 8, true)
	require.NotNil(t, span)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	assert.Equal(t, "agentbus.flush", s.Name)

	size, ok := findAttr(s.Attributes, "batch.size")
	require.True(t, ok)
	assert.Equal(t, int64(8), size.AsInt64())

	sync, ok := findAttr(s.Attributes, "flush.sync")
	require.True(t, ok)
	assert.True(t, sync.AsBool())
}

func TestStartShutdownSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()
	_, span := m.StartShutdownSpan(context.Background(), "journal")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "agentbus.sink.shutdown", spans[0].Name)

	id, ok := findAttr(spans[0].Attributes, "sink.id")
	require.True(t, ok)
	assert.Equal(t, "journal", id.AsString())
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()

	t.Run("success sets ok status", func(t *testing.T) {
		exporter.Reset()
		_, span := m.StartFlushSpan(context.Background(), 1, false)
		m.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("error records and sets error status", func(t *testing.T) {
		exporter.Reset()
		_, span := m.StartFlushSpan(context.Background(), 1, false)
		m.EndSpanWithError(span, errors.New("sink write failed"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "sink write failed", spans[0].Status.Description)
		require.NotEmpty(t, spans[0].Events)
	})

	t.Run("nil span is harmless", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.EndSpanWithError(nil, errors.New("ignored"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()

	ctx, span := m.StartFlushSpan(context.Background(), 1, false)
	m.AddSpanEvent(ctx, "sink.delivered", attribute.String("sink_id", "stdout"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "sink.delivered", spans[0].Events[0].Name)

	// Without a recording span in context, the event is dropped silently.
	assert.NotPanics(t, func() {
		m.AddSpanEvent(context.Background(), "orphan")
	})
}
