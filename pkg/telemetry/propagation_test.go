package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectB3TraceIDSkipsWhenNoSpan(t *testing.T) {
	headers := map[string]string{}
	InjectB3TraceID(context.Background(), headers)
	assert.NotContains(t, headers, B3TraceIDHeader)
}

func TestInjectB3TraceIDAddsHeaderWhenSpanHasTraceID(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{1}})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := map[string]string{}
	InjectB3TraceID(ctx, headers)
	assert.Equal(t, traceID.String(), headers[B3TraceIDHeader])
}
