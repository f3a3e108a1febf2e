package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetError_RecordsErrorStringOnSpanEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartSpan(t.Context(), tracer, "worker.handle",
		attribute.String(ExecutionIDKey, "exec-1"))

	SetError(span, errors.New("whatsapp_send_failed:500"),
		attribute.Int(AttemptKey, 2))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	assert.Equal(t, codes.Error, spans[0].Status().Code)

	var found bool

	for _, event := range spans[0].Events() {
		if event.Name != "execution_error" {
			continue
		}

		found = true
		assert.Contains(t, event.Attributes, attribute.String(ErrorKey, "whatsapp_send_failed:500"))
		assert.Contains(t, event.Attributes, attribute.Int(AttemptKey, 2))
	}

	assert.True(t, found, "expected an execution_error event on the span")
}
