package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordEmit(ctx, "stream.delta", false)
		m.RecordEmit(ctx, "item.updated", true)
		m.RecordFlush(ctx, 10, 1.0)
		m.RecordSinkError(ctx, "stdout")
		m.RecordEviction(ctx, 5)
		m.RecordBackpressure(ctx, "stdout")
	})
}

func TestNoopSpanManager(t *testing.T) {
	s := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := s.StartFlushSpan(ctx, 3, true)
	assert.Equal(t, ctx, newCtx)
	assert.NotNil(t, span)

	newCtx, span = s.StartShutdownSpan(ctx, "stdout")
	assert.Equal(t, ctx, newCtx)

	assert.NotPanics(t, func() {
		s.EndSpanWithError(span, errors.New("ignored"))
		s.EndSpanWithError(span, nil)
		s.AddSpanEvent(ctx, "ignored")
	})
}
