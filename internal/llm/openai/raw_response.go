package openai

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RawResponse defers JSON parsing of a chat/completions response until
// the caller asks for it, mirroring the upstream SDK's with_raw_response
// wrapper. Parse is safe to call multiple times; the body is parsed once
// and the result is cached.
type RawResponse struct {
	// Body is the raw, unparsed response payload.
	Body []byte

	parsed *ChatResponse
}

// Parse decodes Body into a ChatResponse, caching the result.
func (r *RawResponse) Parse() (*ChatResponse, error) {
	if r.parsed != nil {
		return r.parsed, nil
	}
	var parsed ChatResponse
	if err := json.Unmarshal(r.Body, &parsed); err != nil {
		return nil, fmt.Errorf("parse raw chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("empty response choices")
	}
	r.parsed = &parsed
	return r.parsed, nil
}
