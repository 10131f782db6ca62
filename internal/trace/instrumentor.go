package trace

import (
	"sync"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
)

// ClientHandle is a mutable holder for an openai.ChatCompleter. It is the
// Go stand-in for "the target module's chat-completion method binding":
// call sites read Client() on every call instead of capturing a client
// value once, so an Instrumentor can swap the underlying implementation
// in place.
type ClientHandle struct {
	mu     sync.Mutex
	client openai.ChatCompleter
}

// NewClientHandle wraps an initial client in a handle.
func NewClientHandle(client openai.ChatCompleter) *ClientHandle {
	return &ClientHandle{client: client}
}

// Client returns the currently installed client.
func (h *ClientHandle) Client() openai.ChatCompleter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client
}

func (h *ClientHandle) swap(next openai.ChatCompleter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.client = next
}

// Instrumentor installs an Interceptor into a ClientHandle. Installation
// is idempotent: the sentinel it checks is the *Interceptor type itself
// (via type assertion), not identity of this Instrumentor instance, so
// two distinct Instrumentor values installing against the same handle
// still produce exactly one wrapper (P3).
type Instrumentor struct {
	tracer *Tracer
}

// NewInstrumentor constructs an Instrumentor that records spans to tracer.
func NewInstrumentor(tracer *Tracer) *Instrumentor {
	return &Instrumentor{tracer: tracer}
}

// Install replaces handle's client with an Interceptor wrapping whatever
// was there, unless it is already an instrumented Interceptor.
func (inst *Instrumentor) Install(handle *ClientHandle) {
	handle.mu.Lock()
	defer handle.mu.Unlock()

	if existing, ok := handle.client.(*Interceptor); ok && existing.instrumented {
		return
	}
	handle.client = newInterceptor(handle.client, inst.tracer)
}

// Uninstall restores the client that was wrapped, clearing the sentinel.
// Calling Uninstall on a handle that is not currently instrumented is a
// no-op.
func (inst *Instrumentor) Uninstall(handle *ClientHandle) {
	handle.mu.Lock()
	defer handle.mu.Unlock()

	if existing, ok := handle.client.(*Interceptor); ok {
		handle.client = existing.next
	}
}
