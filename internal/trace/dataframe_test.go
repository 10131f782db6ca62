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

// TestRowsFlattensFinalizedSpans checks the dataframe export shape
// against a single successful call.
func TestRowsFlattensFinalizedSpans(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"id":"r","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	}))
	defer server.Close()

	interceptor, tracer := newTestInterceptor(server.URL)
	_, err := interceptor.ChatCompletions(context.Background(), &openai.ChatRequest{Model: "gpt-4", Messages: []openai.Message{{Role: "user", Content: "hi"}}})
	testutil.RequireNoError(testingHandle, err, "chat completions")

	rows := Rows(tracer)
	testutil.RequireEqual(testingHandle, len(rows), 1, "expected one row")
	row := rows[0]
	testutil.RequireEqual(testingHandle, row.StatusCode, string(StatusOK), "row status")
	testutil.RequireEqual(testingHandle, *row.TokenCountTotal, 7, "row total tokens")
	testutil.RequireEqual(testingHandle, row.ErrorCount, 0, "row error count")
	testutil.RequireTrue(testingHandle, row.EndTime.Sub(row.StartTime) >= 0, "end time not before start time")
	testutil.RequireTrue(testingHandle, time.Since(row.StartTime) < time.Minute, "start time recorded recently")
}
