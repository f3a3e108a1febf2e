package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorKey carries the engine error string on span events so trace consumers
// can pattern-match the colon-delimited taxonomy prefix.
const ErrorKey = "outflow.error"

// SetError marks the span failed and records the error string alongside any
// caller-supplied attributes.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	attrs = append(attrs, attribute.String(ErrorKey, err.Error()))
	span.AddEvent("execution_error", trace.WithAttributes(attrs...))
}
