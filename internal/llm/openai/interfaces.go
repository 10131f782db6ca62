package openai

import "context"

// ChunkStream is the blocking-pull contract over a decoded SSE stream.
// *RawStream is the transport implementation; the instrumentation core's
// BlockingAccumulator also implements it, which is what lets the
// interceptor substitute an accumulating stream for the raw one without
// changing the interface callers consume.
type ChunkStream interface {
	Next() (StreamResponse, error)
	Close() error
}

// AsyncChunkStream is the cooperatively-suspending contract over a
// decoded SSE stream. *AsyncRawStream is the transport implementation;
// SuspendingAccumulator also implements it.
type AsyncChunkStream interface {
	Recv(ctx context.Context) (StreamResponse, error)
	Close() error
}

// ChatCompleter is the upstream client contract the instrumentation core
// depends on. *Client satisfies it; so does any *trace.Interceptor
// wrapping one, which is what lets the interceptor be installed in place
// of the client without changing call sites.
type ChatCompleter interface {
	ChatCompletions(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ChatCompletionsStream(ctx context.Context, req *ChatRequest) (ChunkStream, error)
	ChatCompletionsStreamAsync(ctx context.Context, req *ChatRequest) (AsyncChunkStream, error)
	ChatCompletionsRaw(ctx context.Context, req *ChatRequest) (*RawResponse, error)
	Completions(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
