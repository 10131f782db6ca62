package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
	"github.com/llmtrace/llmtrace/internal/testutil"
)

func drainChunkStream(testingHandle *testing.T, stream openai.ChunkStream) []openai.StreamResponse {
	testingHandle.Helper()
	var collected []openai.StreamResponse
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return collected
		}
		testutil.RequireNoError(testingHandle, err, "read chunk")
		collected = append(collected, chunk)
	}
}

// TestStreamingSuccessScenario exercises spec scenario 5 and properties
// P2, P4, P5: no span before iteration, one span after, aggregated
// content equal to the concatenation of all deltas, and a single
// first-token event.
func TestStreamingSuccessScenario(testingHandle *testing.T) {
	words := strings.Fields("The seven wonders of the ancient world include the Hanging Gardens of Babylon")
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/event-stream")
		flusher := responseWriter.(http.Flusher)
		for index, word := range words {
			content := word
			if index > 0 {
				content = " " + word
			}
			_, _ = fmt.Fprintf(responseWriter, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", content)
			flusher.Flush()
		}
		_, _ = fmt.Fprint(responseWriter, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	interceptor, tracer := newTestInterceptor(server.URL)
	req := &openai.ChatRequest{Model: "gpt-4", Messages: []openai.Message{{Role: "user", Content: "list the seven wonders"}}, Stream: true}

	stream, err := interceptor.ChatCompletionsStream(context.Background(), req)
	testutil.RequireNoError(testingHandle, err, "open stream")
	testutil.RequireEqual(testingHandle, tracer.Len(), 0, "expected no span before iteration")

	chunks := drainChunkStream(testingHandle, stream)
	testutil.RequireEqual(testingHandle, len(chunks), len(words), "expected one chunk per word")

	spans := tracer.GetSpans()
	testutil.RequireEqual(testingHandle, len(spans), 1, "expected exactly one span after exhaustion")
	span := spans[0]
	testutil.RequireEqual(testingHandle, span.StatusCode, StatusOK, "span status")

	var firstTokenEvents int
	for _, event := range span.Events {
		if strings.Contains(strings.ToLower(event.Name), "first token") {
			firstTokenEvents++
		}
	}
	testutil.RequireEqual(testingHandle, firstTokenEvents, 1, "expected exactly one first-token event")

	outputMessages := span.Attributes[AttrOutputMessages].([]MessageAttrs)
	testutil.RequireEqual(testingHandle, len(outputMessages), 1, "one aggregated output message")
	testutil.RequireEqual(testingHandle, outputMessages[0].Content, strings.Join(words, " "), "aggregated content")
}

// TestStreamingMidFaultScenario exercises spec scenario 6: a mid-stream
// fault is surfaced to the caller, the span carries status ERROR, and
// the output reflects whatever was aggregated before the fault.
func TestStreamingMidFaultScenario(testingHandle *testing.T) {
	goodChunks := []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/event-stream")
		flusher := responseWriter.(http.Flusher)
		for index, word := range goodChunks {
			content := word
			if index > 0 {
				content = " " + word
			}
			_, _ = fmt.Fprintf(responseWriter, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", content)
			flusher.Flush()
		}
		// Malformed payload simulates a mid-stream protocol fault.
		_, _ = fmt.Fprint(responseWriter, "data: {not-json\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	interceptor, tracer := newTestInterceptor(server.URL)
	req := &openai.ChatRequest{Model: "gpt-4", Messages: []openai.Message{{Role: "user", Content: "count to eight"}}, Stream: true}

	stream, err := interceptor.ChatCompletionsStream(context.Background(), req)
	testutil.RequireNoError(testingHandle, err, "open stream")

	var faultErr error
	for i := 0; i < len(goodChunks)+1; i++ {
		_, err := stream.Next()
		if err != nil {
			faultErr = err
			break
		}
	}
	testutil.RequireTrue(testingHandle, faultErr != nil, "expected the fault to propagate")
	testutil.RequireTrue(testingHandle, !errors.Is(faultErr, io.EOF), "fault must not be io.EOF")

	spans := tracer.GetSpans()
	testutil.RequireEqual(testingHandle, len(spans), 1, "expected exactly one span")
	span := spans[0]
	testutil.RequireEqual(testingHandle, span.StatusCode, StatusError, "span status")

	outputMessages := span.Attributes[AttrOutputMessages].([]MessageAttrs)
	testutil.RequireEqual(testingHandle, outputMessages[0].Content, strings.Join(goodChunks, " "), "partial aggregation preserved")

	testutil.RequireEqual(testingHandle, len(span.Events), 2, "expected first-token then exception events")
	testutil.RequireEqual(testingHandle, span.Events[0].Kind, EventKindMessage, "first event is the first-token marker")
	testutil.RequireEqual(testingHandle, span.Events[1].Kind, EventKindException, "second event is the exception")
}

// TestBlockingAccumulatorNoSecondSpanAfterExhaustion confirms re-entry
// after exhaustion yields the terminal signal without emitting a second
// span.
func TestBlockingAccumulatorNoSecondSpanAfterExhaustion(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/event-stream")
		flusher := responseWriter.(http.Flusher)
		_, _ = fmt.Fprint(responseWriter, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n")
		flusher.Flush()
		_, _ = fmt.Fprint(responseWriter, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	interceptor, tracer := newTestInterceptor(server.URL)
	stream, err := interceptor.ChatCompletionsStream(context.Background(), &openai.ChatRequest{Model: "gpt-4", Stream: true})
	testutil.RequireNoError(testingHandle, err, "open stream")

	drainChunkStream(testingHandle, stream)
	testutil.RequireEqual(testingHandle, tracer.Len(), 1, "expected one span after first exhaustion")

	_, err = stream.Next()
	testutil.RequireTrue(testingHandle, errors.Is(err, io.EOF), "expected io.EOF on re-entry")
	testutil.RequireEqual(testingHandle, tracer.Len(), 1, "re-entry must not emit a second span")
}

// TestSuspendingAccumulatorMatchesBlockingAggregation confirms the
// cooperatively-suspending driver produces the same aggregated content as
// the blocking driver for identical input (interceptor symmetry).
func TestSuspendingAccumulatorMatchesBlockingAggregation(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/event-stream")
		flusher := responseWriter.(http.Flusher)
		for _, word := range []string{"Hello", " world"} {
			_, _ = fmt.Fprintf(responseWriter, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", word)
			flusher.Flush()
		}
		_, _ = fmt.Fprint(responseWriter, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	interceptor, tracer := newTestInterceptor(server.URL)
	stream, err := interceptor.ChatCompletionsStreamAsync(context.Background(), &openai.ChatRequest{Model: "gpt-4", Stream: true})
	testutil.RequireNoError(testingHandle, err, "open async stream")

	ctx := context.Background()
	for {
		_, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		testutil.RequireNoError(testingHandle, err, "recv chunk")
	}

	span := tracer.GetSpans()[0]
	outputMessages := span.Attributes[AttrOutputMessages].([]MessageAttrs)
	testutil.RequireEqual(testingHandle, outputMessages[0].Content, "Hello world", "aggregated content matches blocking driver")
}

// TestStreamingLegacyFunctionCallAggregation confirms function_call.name
// and function_call.arguments deltas accumulate the same way content
// deltas do (P4, for the legacy function-call path).
func TestStreamingLegacyFunctionCallAggregation(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/event-stream")
		flusher := responseWriter.(http.Flusher)
		events := []string{
			`{"choices":[{"index":0,"delta":{"role":"assistant","function_call":{"name":"get_current_weather"}}}]}`,
			`{"choices":[{"index":0,"delta":{"function_call":{"arguments":"{\"location\":"}}}]}`,
			`{"choices":[{"index":0,"delta":{"function_call":{"arguments":"\"Boston, MA\"}"}}}]}`,
		}
		for _, payload := range events {
			_, _ = fmt.Fprintf(responseWriter, "data: %s\n\n", payload)
			flusher.Flush()
		}
		_, _ = fmt.Fprint(responseWriter, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	interceptor, tracer := newTestInterceptor(server.URL)
	stream, err := interceptor.ChatCompletionsStream(context.Background(), &openai.ChatRequest{Model: "gpt-4", Stream: true})
	testutil.RequireNoError(testingHandle, err, "open stream")
	drainChunkStream(testingHandle, stream)

	span := tracer.GetSpans()[0]
	outputMessages := span.Attributes[AttrOutputMessages].([]MessageAttrs)
	testutil.RequireEqual(testingHandle, outputMessages[0].FunctionCallName, "get_current_weather", "aggregated function call name")
	testutil.RequireEqual(testingHandle, outputMessages[0].FunctionCallArgumentsJSON, `{"location":"Boston, MA"}`, "aggregated function call arguments")

	functionCall := span.Attributes[AttrFunctionCall].(FunctionCallAttrs)
	testutil.RequireEqual(testingHandle, functionCall.Name, "get_current_weather", "top-level function call name")
}
