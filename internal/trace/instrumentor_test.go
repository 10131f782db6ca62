package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
	"github.com/llmtrace/llmtrace/internal/testutil"
)

// TestInstallIsIdempotent exercises P3: installing N times and issuing
// one call yields exactly one span, not N, and the handle is wrapped by
// exactly one Interceptor regardless of how many Instrumentor values
// perform the install.
func TestInstallIsIdempotent(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"id":"r","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer server.Close()

	client := openai.NewClient(server.URL, "", 5*time.Second)
	handle := NewClientHandle(client)
	tracer := NewTracer()

	for i := 0; i < 3; i++ {
		instrumentor := NewInstrumentor(tracer)
		instrumentor.Install(handle)
	}

	_, ok := handle.Client().(*Interceptor)
	testutil.RequireTrue(testingHandle, ok, "expected handle wrapped by exactly one Interceptor")

	outer, ok := handle.Client().(*Interceptor)
	testutil.RequireTrue(testingHandle, ok, "expected interceptor")
	_, wrapsAnother := outer.next.(*Interceptor)
	testutil.RequireTrue(testingHandle, !wrapsAnother, "interceptors must not stack")

	_, err := handle.Client().ChatCompletions(context.Background(), &openai.ChatRequest{Model: "gpt-4", Messages: []openai.Message{{Role: "user", Content: "hi"}}})
	testutil.RequireNoError(testingHandle, err, "chat completions through installed handle")
	testutil.RequireEqual(testingHandle, tracer.Len(), 1, "expected exactly one span, not three")
}

// TestUninstallRestoresOriginalClient confirms Uninstall clears the
// sentinel and restores the wrapped client.
func TestUninstallRestoresOriginalClient(testingHandle *testing.T) {
	client := openai.NewClient("http://example.invalid", "", time.Second)
	handle := NewClientHandle(client)
	tracer := NewTracer()
	instrumentor := NewInstrumentor(tracer)

	instrumentor.Install(handle)
	_, ok := handle.Client().(*Interceptor)
	testutil.RequireTrue(testingHandle, ok, "expected installed interceptor")

	instrumentor.Uninstall(handle)
	testutil.RequireEqual(testingHandle, handle.Client(), openai.ChatCompleter(client), "expected original client restored")
}
