package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/llmtrace/llmtrace/internal/testutil"
)

func writeSSEFixture(responseWriter http.ResponseWriter) {
	responseWriter.Header().Set("Content-Type", "text/event-stream")
	flusher := responseWriter.(http.Flusher)

	events := []string{
		`{"id":"req-1","model":"model-x","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"Hello "}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"world"}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":2,"completion_tokens":2,"total_tokens":4}}`,
	}
	for _, payload := range events {
		_, _ = fmt.Fprintf(responseWriter, "data: %s\n\n", payload)
		flusher.Flush()
	}
	_, _ = fmt.Fprint(responseWriter, "data: [DONE]\n\n")
	flusher.Flush()
}

// TestRawStreamParsesEvents verifies the blocking-pull iterator decodes
// every chunk in order and terminates with io.EOF at [DONE].
func TestRawStreamParsesEvents(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/chat/completions" {
			http.NotFound(responseWriter, request)
			return
		}
		writeSSEFixture(responseWriter)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	request := &ChatRequest{
		Model:    "model-x",
		Messages: []Message{{Role: "user", Content: "hello"}},
	}

	stream, err := client.ChatCompletionsStream(context.Background(), request)
	testutil.RequireNoError(testingHandle, err, "open stream")
	defer stream.Close()

	accumulator := NewStreamAccumulator()
	var eventCount int
	for {
		event, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		testutil.RequireNoError(testingHandle, err, "read chunk")
		testutil.RequireNoError(testingHandle, accumulator.Apply(event), "apply chunk")
		eventCount++
	}

	testutil.RequireEqual(testingHandle, eventCount, 4, "expected four chunks before [DONE]")
	testutil.RequireEqual(testingHandle, accumulator.ID(), "req-1", "stream id mismatch")
	testutil.RequireEqual(testingHandle, accumulator.Model(), "model-x", "stream model mismatch")
	testutil.RequireEqual(testingHandle, accumulator.Message().Content, "Hello world", "content mismatch")
	usage, hasUsage := accumulator.Usage()
	testutil.RequireTrue(testingHandle, hasUsage, "expected usage in final chunk")
	testutil.RequireEqual(testingHandle, usage.TotalTokens, 4, "usage mismatch")
}

// TestRawStreamNextAfterDoneReturnsEOF confirms a second call past the
// terminal [DONE] event does not re-enter network I/O.
func TestRawStreamNextAfterDoneReturnsEOF(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		writeSSEFixture(responseWriter)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	stream, err := client.ChatCompletionsStream(context.Background(), &ChatRequest{Model: "model-x"})
	testutil.RequireNoError(testingHandle, err, "open stream")
	defer stream.Close()

	for {
		_, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		testutil.RequireNoError(testingHandle, err, "read chunk")
	}

	_, err = stream.Next()
	testutil.RequireTrue(testingHandle, errors.Is(err, io.EOF), "expected io.EOF on exhausted stream")
}

// TestAsyncRawStreamRecvParsesEvents verifies the cooperatively-suspending
// driver surfaces the same chunks as the blocking-pull driver.
func TestAsyncRawStreamRecvParsesEvents(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		writeSSEFixture(responseWriter)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	stream, err := client.ChatCompletionsStreamAsync(context.Background(), &ChatRequest{Model: "model-x"})
	testutil.RequireNoError(testingHandle, err, "open async stream")
	defer stream.Close()

	ctx := context.Background()
	accumulator := NewStreamAccumulator()
	var eventCount int
	for {
		event, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		testutil.RequireNoError(testingHandle, err, "recv chunk")
		testutil.RequireNoError(testingHandle, accumulator.Apply(event), "apply chunk")
		eventCount++
	}

	testutil.RequireEqual(testingHandle, eventCount, 4, "expected four chunks before [DONE]")
	testutil.RequireEqual(testingHandle, accumulator.Message().Content, "Hello world", "content mismatch")
}

// TestAsyncRawStreamRecvRespectsCancellation confirms Recv suspends at the
// context's Done channel rather than blocking forever on a stalled source.
func TestAsyncRawStreamRecvRespectsCancellation(testingHandle *testing.T) {
	blockForever := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/event-stream")
		flusher := responseWriter.(http.Flusher)
		_, _ = fmt.Fprint(responseWriter, "data: {\"id\":\"req-2\"}\n\n")
		flusher.Flush()
		<-blockForever
	}))
	defer func() {
		close(blockForever)
		server.Close()
	}()

	client := NewClient(server.URL, "", 5*time.Second)
	stream, err := client.ChatCompletionsStreamAsync(context.Background(), &ChatRequest{Model: "model-x"})
	testutil.RequireNoError(testingHandle, err, "open async stream")
	defer stream.Close()

	ctx := context.Background()
	_, err = stream.Recv(ctx)
	testutil.RequireNoError(testingHandle, err, "first chunk")

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = stream.Recv(cancelCtx)
	testutil.RequireTrue(testingHandle, errors.Is(err, context.Canceled), "expected context.Canceled")
}

// TestChatCompletionsStreamAuthenticationError confirms a 401 response
// surfaces as a typed AuthenticationError before any chunk is read.
func TestChatCompletionsStreamAuthenticationError(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusUnauthorized)
		_, _ = responseWriter.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key", 5*time.Second)
	_, err := client.ChatCompletionsStream(context.Background(), &ChatRequest{Model: "model-x"})
	testutil.RequireTrue(testingHandle, err != nil, "expected error")

	var authErr *AuthenticationError
	testutil.RequireTrue(testingHandle, errors.As(err, &authErr), "expected AuthenticationError")
}
