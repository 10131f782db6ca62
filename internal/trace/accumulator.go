package trace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
)

// accumulatorEngine is the transport-agnostic aggregation state machine
// shared by BlockingAccumulator and SuspendingAccumulator. It knows
// nothing about how chunks arrive; drivers feed it via apply and close it
// out via finalizeOK/finalizeError exactly once.
type accumulatorEngine struct {
	span       *builder
	tracer     *Tracer
	req        *openai.ChatRequest
	agg        *openai.StreamAccumulator
	rawChunks  []string
	firstToken bool
	done       bool
}

func newAccumulatorEngine(span *builder, tracer *Tracer, req *openai.ChatRequest) *accumulatorEngine {
	return &accumulatorEngine{
		span:   span,
		tracer: tracer,
		req:    req,
		agg:    openai.NewStreamAccumulator(),
	}
}

// apply records a chunk: first-token bookkeeping, raw payload capture for
// output.value, and delegation to the reconstruction logic.
func (e *accumulatorEngine) apply(chunk openai.StreamResponse) {
	if !e.firstToken {
		e.span.addMessageEvent(FirstTokenEventName, time.Now().UTC())
		e.firstToken = true
	}
	if raw, err := json.Marshal(chunk); err == nil {
		e.rawChunks = append(e.rawChunks, string(raw))
	}
	_ = e.agg.Apply(chunk)
}

// finalizeOK closes the span out on normal stream exhaustion.
func (e *accumulatorEngine) finalizeOK() {
	if e.done {
		return
	}
	e.done = true
	usage, hasUsage := e.agg.Usage()
	attrs := streamOutputAttributes(e.req, e.agg.Message(), usage, hasUsage, e.rawChunks)
	e.span.mergeAttrs(attrs)
	e.tracer.Record(e.span.finish())
}

// finalizeError closes the span out on a mid-stream fault, preserving
// whatever was aggregated before the fault occurred.
func (e *accumulatorEngine) finalizeError(err error) {
	if e.done {
		return
	}
	e.done = true
	usage, hasUsage := e.agg.Usage()
	attrs := streamOutputAttributes(e.req, e.agg.Message(), usage, hasUsage, e.rawChunks)
	e.span.mergeAttrs(attrs)
	e.tracer.Record(e.span.fail(exceptionType(err), err.Error(), captureStacktrace(2)))
}

// BlockingAccumulator is the blocking-pull stream driver: Next physically
// blocks on the underlying ChunkStream until a chunk, exhaustion, or
// fault is available.
type BlockingAccumulator struct {
	engine *accumulatorEngine
	stream openai.ChunkStream
}

func newBlockingAccumulator(stream openai.ChunkStream, engine *accumulatorEngine) *BlockingAccumulator {
	return &BlockingAccumulator{engine: engine, stream: stream}
}

// Next returns the next raw chunk exactly as the underlying stream
// produced it, or io.EOF once exhausted. On normal exhaustion the span is
// finalized with status OK before io.EOF is returned; on any other error
// the span is finalized with status ERROR before the error is returned.
// A call after exhaustion returns io.EOF immediately without re-emitting
// a span.
func (a *BlockingAccumulator) Next() (openai.StreamResponse, error) {
	chunk, err := a.stream.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			a.engine.finalizeOK()
			return openai.StreamResponse{}, io.EOF
		}
		a.engine.finalizeError(err)
		return openai.StreamResponse{}, err
	}
	a.engine.apply(chunk)
	return chunk, nil
}

// Close releases the underlying transport without finalizing the span,
// matching the specification's documented resource leak for abandoned
// streams: the accumulator has no out-of-band signal to finalize on.
func (a *BlockingAccumulator) Close() error {
	return a.stream.Close()
}

// SuspendingAccumulator is the cooperatively-suspending stream driver:
// Recv suspends the calling goroutine at a channel receive fed by a
// background goroutine inside the underlying AsyncChunkStream.
type SuspendingAccumulator struct {
	engine *accumulatorEngine
	stream openai.AsyncChunkStream
}

func newSuspendingAccumulator(stream openai.AsyncChunkStream, engine *accumulatorEngine) *SuspendingAccumulator {
	return &SuspendingAccumulator{engine: engine, stream: stream}
}

// Recv suspends until the next chunk, exhaustion, or fault, or until ctx
// is done. Finalization semantics mirror BlockingAccumulator.Next.
func (a *SuspendingAccumulator) Recv(ctx context.Context) (openai.StreamResponse, error) {
	chunk, err := a.stream.Recv(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			a.engine.finalizeOK()
			return openai.StreamResponse{}, io.EOF
		}
		a.engine.finalizeError(err)
		return openai.StreamResponse{}, err
	}
	a.engine.apply(chunk)
	return chunk, nil
}

// Close releases the underlying transport without finalizing the span.
func (a *SuspendingAccumulator) Close() error {
	return a.stream.Close()
}
