package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ChatCompletionsStream executes a streaming chat/completions request and
// returns a blocking-pull iterator over the decoded SSE events. Callers
// drive the stream with repeated calls to Next until it returns io.EOF.
func (c *Client) ChatCompletionsStream(ctx context.Context, req *ChatRequest) (ChunkStream, error) {
	resp, err := c.openStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RawStream{ctx: ctx, resp: resp, reader: bufio.NewReader(resp.Body)}, nil
}

// ChatCompletionsStreamAsync executes a streaming chat/completions request
// and returns a cooperatively-suspending iterator: a background goroutine
// pumps decoded SSE events onto a channel, and Recv suspends the calling
// goroutine at a channel receive rather than a direct blocking read.
func (c *Client) ChatCompletionsStreamAsync(ctx context.Context, req *ChatRequest) (AsyncChunkStream, error) {
	resp, err := c.openStream(ctx, req)
	if err != nil {
		return nil, err
	}
	stream := &AsyncRawStream{
		resp: resp,
		ch:   make(chan asyncChunk, 1),
		done: make(chan struct{}),
	}
	go stream.pump(bufio.NewReader(resp.Body))
	return stream, nil
}

// openStream issues the streaming HTTP request shared by both stream
// drivers and validates the response status before handing the body back.
func (c *Client) openStream(ctx context.Context, req *ChatRequest) (*http.Response, error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read stream error body: %w", readErr)
		}
		return nil, errorForStatus(resp.StatusCode, decodeErrorMessage(body))
	}
	return resp, nil
}

// RawStream is the blocking-pull SSE iterator: Next physically blocks on
// the underlying bufio.Reader until a chunk, [DONE], or error is available.
type RawStream struct {
	ctx    context.Context
	resp   *http.Response
	reader *bufio.Reader
	closed bool
}

// Next returns the next decoded stream chunk, io.EOF once the stream ends
// normally ([DONE] or connection close), or any read/parse/context error.
func (s *RawStream) Next() (StreamResponse, error) {
	if s.closed {
		return StreamResponse{}, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return StreamResponse{}, err
	}
	data, err := readSSEEvent(s.reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.closed = true
			return StreamResponse{}, io.EOF
		}
		return StreamResponse{}, fmt.Errorf("read stream event: %w", err)
	}
	if data == "[DONE]" {
		s.closed = true
		return StreamResponse{}, io.EOF
	}
	var event StreamResponse
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return StreamResponse{}, fmt.Errorf("parse stream response: %w", err)
	}
	return event, nil
}

// Close releases the underlying HTTP response body.
func (s *RawStream) Close() error {
	s.closed = true
	return s.resp.Body.Close()
}

// asyncChunk carries a single decoded event or terminal error across the
// channel boundary between the pump goroutine and the consumer.
type asyncChunk struct {
	event StreamResponse
	err   error
}

// AsyncRawStream is the cooperatively-suspending SSE iterator: a background
// goroutine performs the blocking reads, and Recv suspends the caller at a
// channel receive that also observes context cancellation.
type AsyncRawStream struct {
	resp *http.Response
	ch   chan asyncChunk
	done chan struct{}
}

// pump reads SSE events off reader and forwards them on ch until the
// stream ends or AsyncRawStream.Close is called.
func (s *AsyncRawStream) pump(reader *bufio.Reader) {
	defer close(s.ch)
	for {
		data, err := readSSEEvent(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("read stream event: %w", err)
			}
			select {
			case s.ch <- asyncChunk{err: err}:
			case <-s.done:
			}
			return
		}
		if data == "[DONE]" {
			select {
			case s.ch <- asyncChunk{err: io.EOF}:
			case <-s.done:
			}
			return
		}
		var event StreamResponse
		if unmarshalErr := json.Unmarshal([]byte(data), &event); unmarshalErr != nil {
			select {
			case s.ch <- asyncChunk{err: fmt.Errorf("parse stream response: %w", unmarshalErr)}:
			case <-s.done:
			}
			return
		}
		select {
		case s.ch <- asyncChunk{event: event}:
		case <-s.done:
			return
		}
	}
}

// Recv suspends the calling goroutine until the next chunk arrives, the
// context is done, or the stream ends.
func (s *AsyncRawStream) Recv(ctx context.Context) (StreamResponse, error) {
	select {
	case chunk, ok := <-s.ch:
		if !ok {
			return StreamResponse{}, io.EOF
		}
		return chunk.event, chunk.err
	case <-ctx.Done():
		return StreamResponse{}, ctx.Err()
	}
}

// Close releases the underlying HTTP response body and stops the pump
// goroutine at its next send attempt.
func (s *AsyncRawStream) Close() error {
	close(s.done)
	return s.resp.Body.Close()
}

// readSSEEvent reads a single SSE event payload, concatenating any
// multi-line "data:" fields per the SSE framing rules.
func readSSEEvent(reader *bufio.Reader) (string, error) {
	var builder strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if builder.Len() == 0 {
				if errors.Is(err, io.EOF) {
					return "", io.EOF
				}
				continue
			}
			return strings.TrimSuffix(builder.String(), "\n"), nil
		}
		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			builder.WriteString(payload)
			builder.WriteByte('\n')
		}
		if errors.Is(err, io.EOF) {
			if builder.Len() == 0 {
				return "", io.EOF
			}
			return strings.TrimSuffix(builder.String(), "\n"), nil
		}
	}
}
