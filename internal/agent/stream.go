package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
)

// StreamCallbacks wires streaming lifecycle hooks.
type StreamCallbacks struct {
	// OnStreamStart fires before each streaming request.
	OnStreamStart func(model string) error
	// OnStreamEvent receives raw OpenAI stream events as they are pulled.
	OnStreamEvent func(event openai.StreamResponse) error
	// OnStreamComplete fires after the assistant message is assembled.
	OnStreamComplete func(summary StreamSummary) error
}

// StreamSummary captures metadata for a completed streaming response.
type StreamSummary struct {
	// Message is the completed assistant message.
	Message openai.Message
	// Usage reports token usage when available.
	Usage openai.Usage
	// HasUsage reports whether Usage was populated.
	HasUsage bool
	// FinishReason is the OpenAI finish reason.
	FinishReason string
	// Model is the model identifier for the call.
	Model string
}

// RunStream executes a single user turn using streaming responses,
// continuing automatically when a response is truncated by its output
// token limit, the same way Run does for the non-streaming path.
func (r *Runner) RunStream(
	ctx context.Context,
	messages []openai.Message,
	systemPrompt string,
	model string,
	callbacks *StreamCallbacks,
) (*RunResult, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if r.MaxTurns <= 0 {
		r.MaxTurns = 8
	}

	if systemPrompt != "" {
		messages = prependSystem(messages, systemPrompt)
	}

	result := &RunResult{
		Messages:   messages,
		ModelUsage: map[string]openai.Usage{},
	}

	startTime := time.Now()
	var assembled string

	for turn := 0; turn < r.MaxTurns; turn++ {
		req := &openai.ChatRequest{
			Model:    model,
			Messages: result.Messages,
		}

		if callbacks != nil && callbacks.OnStreamStart != nil {
			if err := callbacks.OnStreamStart(model); err != nil {
				return nil, fmt.Errorf("stream start callback: %w", err)
			}
		}

		accumulator := openai.NewStreamAccumulator()
		callStart := time.Now()
		stream, err := r.Client.ChatCompletionsStream(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("open stream: %w", err)
		}
		for {
			event, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = stream.Close()
				return nil, fmt.Errorf("stream request: %w", err)
			}
			if err := accumulator.Apply(event); err != nil {
				_ = stream.Close()
				return nil, fmt.Errorf("apply stream delta: %w", err)
			}
			if callbacks != nil && callbacks.OnStreamEvent != nil {
				if err := callbacks.OnStreamEvent(event); err != nil {
					_ = stream.Close()
					return nil, fmt.Errorf("stream event callback: %w", err)
				}
			}
		}
		_ = stream.Close()
		result.APIDuration += time.Since(callStart)

		message := accumulator.Message()
		usage, hasUsage := accumulator.Usage()
		finishReason := accumulator.FinishReason()

		result.Usage = usage
		if hasUsage {
			accumulateUsage(&result.TotalUsage, usage)
			accumulateUsageMap(result.ModelUsage, model, usage)
		}
		result.CostUSD += estimateCost(model, usage, r.Pricing)
		result.NumTurns++
		if r.MaxBudgetUSD > 0 && result.CostUSD > r.MaxBudgetUSD {
			result.Duration = time.Since(startTime)
			return nil, fmt.Errorf("%w: %.4f > %.4f", ErrMaxBudget, result.CostUSD, r.MaxBudgetUSD)
		}

		if callbacks != nil && callbacks.OnStreamComplete != nil {
			if err := callbacks.OnStreamComplete(StreamSummary{
				Message:      message,
				Usage:        usage,
				HasUsage:     hasUsage,
				FinishReason: finishReason,
				Model:        model,
			}); err != nil {
				return nil, fmt.Errorf("stream complete callback: %w", err)
			}
		}

		content, _ := message.Content.(string)
		assembled += content

		if finishReason != "length" {
			message.Content = assembled
			result.Messages = append(result.Messages, message)
			result.Final = message
			result.Duration = time.Since(startTime)
			return result, nil
		}

		result.Messages = append(result.Messages,
			openai.Message{Role: "assistant", Content: content},
			openai.Message{Role: "user", Content: continuationPrompt},
		)
	}

	result.Final = openai.Message{Role: "assistant", Content: assembled}
	result.Duration = time.Since(startTime)
	return result, ErrMaxTurns
}
