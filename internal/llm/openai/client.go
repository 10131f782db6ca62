package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible chat/completions endpoint.
type Client struct {
	// baseURL points to the OpenAI-compatible gateway.
	baseURL string
	// apiKey is sent as a bearer token, if provided.
	apiKey string
	// httpClient executes requests with timeouts.
	httpClient *http.Client
}

// NewClient constructs a new client with timeout settings.
func NewClient(baseURL string, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ChatCompletions executes a non-streaming chat/completions request.
func (c *Client) ChatCompletions(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := c.doJSON(ctx, c.completionsURL(), req)
	if err != nil {
		return nil, err
	}
	var parsed ChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("empty response choices")
	}
	return &parsed, nil
}

// Completions executes the legacy text-completions request. It is a
// distinct endpoint from chat/completions and is never intercepted
// by the instrumentation core.
func (c *Client) Completions(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	body, err := c.doJSON(ctx, c.legacyCompletionsURL(), req)
	if err != nil {
		return nil, err
	}
	var parsed CompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse completion response: %w", err)
	}
	return &parsed, nil
}

// ChatCompletionsRaw executes a chat/completions request but defers
// JSON parsing to the caller via RawResponse.Parse, mirroring the
// upstream SDK's with_raw_response wrapper.
func (c *Client) ChatCompletionsRaw(ctx context.Context, req *ChatRequest) (*RawResponse, error) {
	body, err := c.doJSON(ctx, c.completionsURL(), req)
	if err != nil {
		return nil, err
	}
	return &RawResponse{Body: body}, nil
}

// doJSON marshals payload, posts it to url, and returns the raw response
// body for a successful (2xx) response, or a typed error otherwise.
func (c *Client) doJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorForStatus(resp.StatusCode, decodeErrorMessage(body))
	}
	return body, nil
}

// decodeErrorMessage extracts the nested "error.message" field OpenAI-compatible
// gateways use, falling back to the raw body when the shape does not match.
func decodeErrorMessage(body []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// completionsURL normalizes the base URL to a chat/completions endpoint.
func (c *Client) completionsURL() string {
	if strings.HasSuffix(c.baseURL, "/chat/completions") {
		return c.baseURL
	}
	return c.baseURL + "/chat/completions"
}

// legacyCompletionsURL normalizes the base URL to a text-completions endpoint.
func (c *Client) legacyCompletionsURL() string {
	if strings.HasSuffix(c.baseURL, "/completions") {
		return c.baseURL
	}
	return c.baseURL + "/completions"
}
