package trace

import "time"

// SpanKind identifies the kind of operation a span describes.
type SpanKind string

// LLMSpanKind is the only span kind this package currently emits.
const LLMSpanKind SpanKind = "LLM"

// StatusCode mirrors the three-state span status.
type StatusCode string

const (
	StatusUnset StatusCode = "UNSET"
	StatusOK    StatusCode = "OK"
	StatusError StatusCode = "ERROR"
)

// EventKind discriminates SpanEvent variants.
type EventKind string

const (
	EventKindMessage   EventKind = "message"
	EventKindException EventKind = "exception"
)

// FirstTokenEventName is the name of the event recorded when a streaming
// span yields its first chunk. P5 matches on this name case-insensitively.
const FirstTokenEventName = "First Token Stream Event"

// SpanContext carries span identity and lineage.
type SpanContext struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// SpanEvent is a single timestamped note attached to a span. Kind
// discriminates between a generic named marker and an exception record;
// for EventKindException, Attributes carries exception.type,
// exception.message, and exception.stacktrace.
type SpanEvent struct {
	Kind       EventKind
	Name       string
	Timestamp  time.Time
	Attributes map[string]any
}

// Span is an immutable-once-emitted record of a single logical LLM call.
type Span struct {
	Name          string
	SpanKind      SpanKind
	StartTime     time.Time
	EndTime       time.Time
	StatusCode    StatusCode
	StatusMessage string
	Attributes    map[string]any
	Events        []SpanEvent
	Context       SpanContext
}

// builder accumulates a span's mutable state from call entry through
// finalization. Only the interceptor or accumulator that owns a builder
// may mutate it; once finish or fail is called the resulting Span is
// immutable.
type builder struct {
	name       string
	startTime  time.Time
	endTime    time.Time
	statusCode StatusCode
	statusMsg  string
	attributes map[string]any
	events     []SpanEvent
	context    SpanContext
}

func newBuilder(name string, parentSpanID string) *builder {
	return &builder{
		name:       name,
		startTime:  time.Now().UTC(),
		statusCode: StatusUnset,
		attributes: map[string]any{},
		context:    newSpanContext(parentSpanID),
	}
}

func (b *builder) setAttr(key string, value any) {
	if value == nil {
		return
	}
	b.attributes[key] = value
}

func (b *builder) mergeAttrs(attrs map[string]any) {
	for key, value := range attrs {
		b.setAttr(key, value)
	}
}

func (b *builder) addEvent(event SpanEvent) {
	b.events = append(b.events, event)
}

func (b *builder) addMessageEvent(name string, at time.Time) {
	b.addEvent(SpanEvent{Kind: EventKindMessage, Name: name, Timestamp: at})
}

func (b *builder) addExceptionEvent(excType, message, stacktrace string, at time.Time) {
	b.addEvent(SpanEvent{
		Kind:      EventKindException,
		Name:      "exception",
		Timestamp: at,
		Attributes: map[string]any{
			AttrExceptionType:       excType,
			AttrExceptionMessage:    message,
			AttrExceptionStacktrace: stacktrace,
		},
	})
}

// finish marks the span OK and returns the immutable Span.
func (b *builder) finish() Span {
	b.endTime = time.Now().UTC()
	b.statusCode = StatusOK
	return b.build()
}

// fail marks the span ERROR, attaches an exception event, and returns the
// immutable Span.
func (b *builder) fail(excType, message, stacktrace string) Span {
	now := time.Now().UTC()
	b.addExceptionEvent(excType, message, stacktrace, now)
	b.statusCode = StatusError
	b.statusMsg = message
	b.endTime = now
	return b.build()
}

func (b *builder) build() Span {
	if b.endTime.IsZero() {
		b.endTime = time.Now().UTC()
	}
	return Span{
		Name:          b.name,
		SpanKind:      LLMSpanKind,
		StartTime:     b.startTime,
		EndTime:       b.endTime,
		StatusCode:    b.statusCode,
		StatusMessage: b.statusMsg,
		Attributes:    b.attributes,
		Events:        b.events,
		Context:       b.context,
	}
}
