package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOptions configures a telemetry span
type SpanOptions struct {
	// Name is the operation name for the span
	Name string

	// Attributes are key-value pairs attached to the span
	Attributes []attribute.KeyValue

	// EndWhenDone controls whether the span should be ended automatically when the function returns
	EndWhenDone bool
}

// RecordSpan creates and executes a telemetry span for an operation.
// The span is automatically ended when the function completes, unless EndWhenDone is false.
// Errors are automatically recorded on the span.
func RecordSpan[T any](
	ctx context.Context,
	tracer trace.Tracer,
	opts SpanOptions,
	fn func(context.Context, trace.Span) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name,
		trace.WithAttributes(opts.Attributes...),
	)

	result, err := fn(ctx, span)

	if err != nil {
		RecordErrorOnSpan(span, err)
		span.End()
		var zero T
		return zero, err
	}

	if opts.EndWhenDone {
		span.End()
	}

	return result, nil
}

// RecordErrorOnSpan records an error on a span and sets the span status to error.
func RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// sensitiveHeaders is matched case-insensitively by ScrubHeaders and
// GetBaseAttributes so a bearer token or API key never reaches a span.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
	"cookie":        true,
}

// GetBaseAttributes returns common attributes for an upstream model call:
// which provider/model the Provider Router resolved to, telemetry
// metadata, and scrubbed request headers.
func GetBaseAttributes(
	provider string,
	modelID string,
	settings *Settings,
	headers map[string]string,
) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("gateway.provider", provider),
		attribute.String("gateway.model", modelID),
	}

	if settings != nil {
		if settings.FunctionID != "" {
			attrs = append(attrs, attribute.String("gateway.telemetry.function_id", settings.FunctionID))
		}

		for key, value := range settings.Metadata {
			attrs = append(attrs, attribute.KeyValue{
				Key:   attribute.Key("gateway.telemetry.metadata." + key),
				Value: value,
			})
		}
	}

	for key, value := range ScrubHeaders(headers) {
		attrs = append(attrs, attribute.String("gateway.request.headers."+key, value))
	}

	return attrs
}

// ScrubHeaders returns a copy of headers with sensitive keys removed
// (case-insensitive), so bearer tokens and API keys never reach a span or
// a log line.
func ScrubHeaders(headers map[string]string) map[string]string {
	scrubbed := make(map[string]string, len(headers))
	for key, value := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			continue
		}
		scrubbed[key] = value
	}
	return scrubbed
}

// AddSettingsAttributes adds model settings as attributes to a span.
func AddSettingsAttributes(span trace.Span, prefix string, settings map[string]interface{}) {
	for key, value := range settings {
		attrKey := prefix + "." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		}
	}
}
