package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// B3TraceIDHeader is the B3 trace-id propagation header used to correlate a
// request across the gateway and its upstream call.
const B3TraceIDHeader = "X-B3-TraceId"

// InjectB3TraceID adds the current span's trace id to headers under
// B3TraceIDHeader, if the context's span context carries a trace id
// (whether or not the span is recording).
func InjectB3TraceID(ctx context.Context, headers map[string]string) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().HasTraceID() {
		return
	}
	headers[B3TraceIDHeader] = span.SpanContext().TraceID().String()
}
