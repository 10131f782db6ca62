package trace

import "github.com/google/uuid"

// newSpanContext allocates a fresh trace/span id pair. A trace currently
// maps one-to-one with a span: the core never fans a single logical call
// out into multiple child spans, so TraceID and SpanID are independently
// generated rather than derived from a shared parent trace id.
func newSpanContext(parentSpanID string) SpanContext {
	return SpanContext{
		TraceID:      uuid.NewString(),
		SpanID:       uuid.NewString(),
		ParentSpanID: parentSpanID,
	}
}
