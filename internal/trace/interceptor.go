package trace

import (
	"context"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
)

// spanName is the fixed operation label recorded on every span this
// package emits.
const spanName = "ChatCompletion"

// Interceptor wraps an openai.ChatCompleter and emits a span per call. It
// itself satisfies openai.ChatCompleter, so it can be installed wherever
// the underlying client was used without changing call sites. The zero
// value is not usable; construct via Instrumentor.Install.
type Interceptor struct {
	next         openai.ChatCompleter
	tracer       *Tracer
	instrumented bool
}

func newInterceptor(next openai.ChatCompleter, tracer *Tracer) *Interceptor {
	return &Interceptor{next: next, tracer: tracer, instrumented: true}
}

func (i *Interceptor) startSpan(req *openai.ChatRequest) *builder {
	b := newBuilder(spanName, "")
	b.mergeAttrs(requestAttributes(req))
	return b
}

func (i *Interceptor) recordFailure(b *builder, err error) {
	i.tracer.Record(b.fail(exceptionType(err), err.Error(), captureStacktrace(2)))
}

// ChatCompletions is the blocking, non-streaming call path. On success it
// populates output attributes, finalizes the span with status OK, and
// returns the response unchanged. On failure it emits an ERROR span with
// a SpanException event and re-raises the error unchanged (P1).
func (i *Interceptor) ChatCompletions(ctx context.Context, req *openai.ChatRequest) (*openai.ChatResponse, error) {
	b := i.startSpan(req)
	resp, err := i.next.ChatCompletions(ctx, req)
	if err != nil {
		i.recordFailure(b, err)
		return nil, err
	}
	b.mergeAttrs(responseAttributes(req, resp))
	i.tracer.Record(b.finish())
	return resp, nil
}

// ChatCompletionsStream is the blocking-pull streaming call path. The
// returned ChunkStream is a BlockingAccumulator, not the raw transport:
// the span is not emitted here, only handed to the accumulator, which
// finalizes it on stream exhaustion or fault (P2: zero spans before
// iteration begins).
func (i *Interceptor) ChatCompletionsStream(ctx context.Context, req *openai.ChatRequest) (openai.ChunkStream, error) {
	b := i.startSpan(req)
	stream, err := i.next.ChatCompletionsStream(ctx, req)
	if err != nil {
		i.recordFailure(b, err)
		return nil, err
	}
	engine := newAccumulatorEngine(b, i.tracer, req)
	return newBlockingAccumulator(stream, engine), nil
}

// ChatCompletionsStreamAsync is the cooperatively-suspending streaming
// call path, mirroring ChatCompletionsStream with a SuspendingAccumulator.
func (i *Interceptor) ChatCompletionsStreamAsync(ctx context.Context, req *openai.ChatRequest) (openai.AsyncChunkStream, error) {
	b := i.startSpan(req)
	stream, err := i.next.ChatCompletionsStreamAsync(ctx, req)
	if err != nil {
		i.recordFailure(b, err)
		return nil, err
	}
	engine := newAccumulatorEngine(b, i.tracer, req)
	return newSuspendingAccumulator(stream, engine), nil
}

// ChatCompletionsRaw wraps the raw-response form. Our client only offers
// a raw wrapper for the non-streaming endpoint, so the streaming-raw-
// response open question the specification leaves unresolved does not
// arise here: the interceptor always eagerly parses once to populate
// output attributes, then returns the unparsed wrapper unchanged so the
// caller's own call to Parse still works (and is cheap, since RawResponse
// caches its parse result).
func (i *Interceptor) ChatCompletionsRaw(ctx context.Context, req *openai.ChatRequest) (*openai.RawResponse, error) {
	b := i.startSpan(req)
	raw, err := i.next.ChatCompletionsRaw(ctx, req)
	if err != nil {
		i.recordFailure(b, err)
		return nil, err
	}
	parsed, err := raw.Parse()
	if err != nil {
		i.recordFailure(b, err)
		return raw, nil
	}
	b.mergeAttrs(responseAttributes(req, parsed))
	i.tracer.Record(b.finish())
	return raw, nil
}

// Completions is the legacy text-completion path. Per P6, non-chat calls
// pass through untouched and never produce a span.
func (i *Interceptor) Completions(ctx context.Context, req *openai.CompletionRequest) (*openai.CompletionResponse, error) {
	return i.next.Completions(ctx, req)
}
