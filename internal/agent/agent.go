// Package agent contains a small multi-turn runner that exercises an
// openai.ChatCompleter. It has no notion of tool execution or tracing: it
// is the example call site that the instrumentor is meant to wrap
// transparently, and it behaves identically whether Client is a bare
// *openai.Client or a *trace.Interceptor around one.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llmtrace/llmtrace/internal/config"
	"github.com/llmtrace/llmtrace/internal/llm/openai"
)

var (
	// ErrMaxTurns signals that a run exceeded the allowed continuation count.
	ErrMaxTurns = errors.New("max turns exceeded")
	// ErrMaxBudget signals that the cost limit was exceeded.
	ErrMaxBudget = errors.New("max budget exceeded")
)

// continuationPrompt is appended when the upstream model truncates a
// response due to its output token limit, asking it to pick up where it
// left off. It is the only reason this runner ever issues more than one
// call per Run.
const continuationPrompt = "Continue exactly where you left off. Do not repeat any earlier part of your response."

// RunResult captures the outcome of a single user turn, including any
// length-truncation continuations folded in along the way.
type RunResult struct {
	// Messages is the full conversation history, continuations included.
	Messages []openai.Message
	// Final is the last assistant message, with continuation text merged in.
	Final openai.Message
	// Usage reports token counts for the last call.
	Usage openai.Usage
	// TotalUsage accumulates usage across all calls in the run.
	TotalUsage openai.Usage
	// ModelUsage aggregates usage by model identifier.
	ModelUsage map[string]openai.Usage
	// CostUSD is the accumulated cost for the run.
	CostUSD float64
	// NumTurns counts the number of calls issued, including continuations.
	NumTurns int
	// Duration is the total runtime for the run.
	Duration time.Duration
	// APIDuration is the cumulative time spent in API calls.
	APIDuration time.Duration
}

// Runner drives an openai.ChatCompleter through a single conversational
// turn, continuing automatically when the model's response is truncated
// by its output token limit.
type Runner struct {
	// Client executes OpenAI-compatible requests. It may be a raw
	// *openai.Client or a traced wrapper around one; the runner does not
	// care which.
	Client openai.ChatCompleter
	// MaxTurns limits the number of calls per Run, the first call and
	// continuations together. Values <= 0 are replaced by 8.
	MaxTurns int
	// Pricing provides per-model costs for budget tracking.
	Pricing map[string]config.ModelPricing
	// MaxBudgetUSD enforces a ceiling on estimated cost, if positive.
	MaxBudgetUSD float64
}

// Run executes a single user turn, issuing continuation calls while the
// model reports finish_reason "length", up to MaxTurns.
func (r *Runner) Run(
	ctx context.Context,
	messages []openai.Message,
	systemPrompt string,
	model string,
) (*RunResult, error) {
	if r.Client == nil {
		return nil, errors.New("client is required")
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
	var finishReason string

	for turn := 0; turn < r.MaxTurns; turn++ {
		req := &openai.ChatRequest{
			Model:    model,
			Messages: result.Messages,
		}

		callStart := time.Now()
		resp, err := r.Client.ChatCompletions(ctx, req)
		result.APIDuration += time.Since(callStart)
		if err != nil {
			return nil, err
		}

		choice := resp.Choices[0]
		result.Usage = resp.Usage
		accumulateUsage(&result.TotalUsage, resp.Usage)
		accumulateUsageMap(result.ModelUsage, model, resp.Usage)
		result.CostUSD += estimateCost(model, resp.Usage, r.Pricing)
		result.NumTurns++
		if r.MaxBudgetUSD > 0 && result.CostUSD > r.MaxBudgetUSD {
			result.Duration = time.Since(startTime)
			return nil, fmt.Errorf("%w: %.4f > %.4f", ErrMaxBudget, result.CostUSD, r.MaxBudgetUSD)
		}

		content, _ := choice.Message.Content.(string)
		assembled += content
		finishReason = choice.FinishReason

		if finishReason != "length" {
			choice.Message.Content = assembled
			result.Messages = append(result.Messages, choice.Message)
			result.Final = choice.Message
			result.Duration = time.Since(startTime)
			return result, nil
		}

		// Truncated: fold the partial assistant turn back into the
		// conversation and ask the model to continue it.
		result.Messages = append(result.Messages,
			openai.Message{Role: "assistant", Content: content},
			openai.Message{Role: "user", Content: continuationPrompt},
		)
	}

	result.Final = openai.Message{Role: "assistant", Content: assembled}
	result.Duration = time.Since(startTime)
	return result, ErrMaxTurns
}

// prependSystem injects a system message at the start of the conversation.
func prependSystem(messages []openai.Message, prompt string) []openai.Message {
	if len(messages) > 0 && messages[0].Role == "system" {
		messages[0].Content = fmt.Sprintf("%v\n\n%v", messages[0].Content, prompt)
		return messages
	}
	system := openai.Message{Role: "system", Content: prompt}
	return append([]openai.Message{system}, messages...)
}

// estimateCost computes cost using pricing per million tokens.
func estimateCost(model string, usage openai.Usage, pricing map[string]config.ModelPricing) float64 {
	if pricing == nil {
		return 0
	}
	price, ok := pricing[model]
	if !ok {
		return 0
	}
	input := float64(usage.PromptTokens) / 1_000_000
	output := float64(usage.CompletionTokens) / 1_000_000
	return input*price.InputPer1M + output*price.OutputPer1M
}

// accumulateUsage adds usage counts into the accumulator.
func accumulateUsage(acc *openai.Usage, usage openai.Usage) {
	acc.PromptTokens += usage.PromptTokens
	acc.CompletionTokens += usage.CompletionTokens
	acc.TotalTokens += usage.TotalTokens
}

// accumulateUsageMap adds usage counts into a per-model map.
func accumulateUsageMap(target map[string]openai.Usage, model string, usage openai.Usage) {
	current := target[model]
	current.PromptTokens += usage.PromptTokens
	current.CompletionTokens += usage.CompletionTokens
	current.TotalTokens += usage.TotalTokens
	target[model] = current
}
