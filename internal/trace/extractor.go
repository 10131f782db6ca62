package trace

import (
	"encoding/json"
	"strings"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
)

// InvocationParameters is the canonical-JSON rendering of the
// recognized-options subset of a chat request. Go's encoding/json emits
// struct fields in declaration order, which is what gives this type its
// "insertion order preserved" property — no ordered-map dependency needed.
type InvocationParameters struct {
	Model        string              `json:"model"`
	Messages     []openai.Message    `json:"messages"`
	Temperature  *float64            `json:"temperature,omitempty"`
	MaxTokens    *int                `json:"max_tokens,omitempty"`
	Functions    []openai.FunctionDef `json:"functions,omitempty"`
	FunctionCall any                 `json:"function_call,omitempty"`
	Tools        []openai.Tool       `json:"tools,omitempty"`
	ToolChoice   any                 `json:"tool_choice,omitempty"`
	Stream       bool                `json:"stream,omitempty"`
}

func invocationParameters(req *openai.ChatRequest) InvocationParameters {
	return InvocationParameters{
		Model:        req.Model,
		Messages:     req.Messages,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Functions:    req.Functions,
		FunctionCall: req.FunctionCall,
		Tools:        req.Tools,
		ToolChoice:   req.ToolChoice,
		Stream:       req.Stream,
	}
}

// messageAttrsFrom converts a wire Message into its ordered-mapping
// attribute shape, carrying role/content/name/function-call/tool-calls.
func messageAttrsFrom(msg openai.Message) MessageAttrs {
	attrs := MessageAttrs{
		Role: msg.Role,
		Name: msg.Name,
	}
	if content, ok := msg.Content.(string); ok {
		attrs.Content = content
	}
	if msg.FunctionCall != nil {
		attrs.FunctionCallName = msg.FunctionCall.Name
		attrs.FunctionCallArgumentsJSON = msg.FunctionCall.Arguments
	}
	for _, call := range msg.ToolCalls {
		attrs.ToolCalls = append(attrs.ToolCalls, ToolCallAttrs{
			FunctionName:          call.Function.Name,
			FunctionArgumentsJSON: call.Function.Arguments,
		})
	}
	return attrs
}

// requestAttributes builds the attribute set available at call entry:
// input messages and invocation parameters (and their JSON-rendered
// input.value / input.mime_type twins).
func requestAttributes(req *openai.ChatRequest) map[string]any {
	inputMessages := make([]MessageAttrs, 0, len(req.Messages))
	for _, msg := range req.Messages {
		inputMessages = append(inputMessages, messageAttrsFrom(msg))
	}

	params := invocationParameters(req)
	paramsJSON, err := json.Marshal(params)
	attrs := map[string]any{
		AttrInputMessages: inputMessages,
	}
	if err == nil {
		attrs[AttrInvocationParameters] = json.RawMessage(paramsJSON)
		attrs[AttrInputValue] = string(paramsJSON)
		attrs[AttrInputMimeType] = MimeTypeJSON
	}
	return attrs
}

// hasPriorFunctionCallMessage reports whether any assistant message in the
// request history already carries a function_call payload.
func hasPriorFunctionCallMessage(req *openai.ChatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "assistant" && msg.FunctionCall != nil {
			return true
		}
	}
	return false
}

// responseAttributes builds the attribute set for a synchronous,
// non-streaming chat response: output messages, the top-level function
// call attribute, token counts, and output.value/mime_type.
func responseAttributes(req *openai.ChatRequest, resp *openai.ChatResponse) map[string]any {
	attrs := map[string]any{}

	outputMessages := make([]MessageAttrs, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		outputMessages = append(outputMessages, messageAttrsFrom(choice.Message))
	}
	if len(outputMessages) > 0 {
		attrs[AttrOutputMessages] = outputMessages
	}

	if len(resp.Choices) == 1 {
		msg := resp.Choices[0].Message
		if msg.FunctionCall != nil && !hasPriorFunctionCallMessage(req) {
			attrs[AttrFunctionCall] = FunctionCallAttrs{
				Name:      msg.FunctionCall.Name,
				Arguments: msg.FunctionCall.Arguments,
			}
		}
	}

	attrs[AttrTokenCountPrompt] = resp.Usage.PromptTokens
	attrs[AttrTokenCountCompletion] = resp.Usage.CompletionTokens
	attrs[AttrTokenCountTotal] = resp.Usage.TotalTokens

	if body, err := json.Marshal(resp); err == nil {
		attrs[AttrOutputValue] = string(body)
		attrs[AttrOutputMimeType] = MimeTypeJSON
	}
	return attrs
}

// streamOutputAttributes builds the output-side attribute set for a
// finalized streaming span: one aggregated assistant message, token
// counts when usage was reported, and an output.value that concatenates
// every raw chunk body as a JSON array.
func streamOutputAttributes(req *openai.ChatRequest, aggregated openai.Message, usage openai.Usage, hasUsage bool, rawChunks []string) map[string]any {
	attrs := map[string]any{
		AttrOutputMessages: []MessageAttrs{messageAttrsFrom(aggregated)},
	}

	if aggregated.FunctionCall != nil && !hasPriorFunctionCallMessage(req) {
		attrs[AttrFunctionCall] = FunctionCallAttrs{
			Name:      aggregated.FunctionCall.Name,
			Arguments: aggregated.FunctionCall.Arguments,
		}
	}

	if hasUsage {
		attrs[AttrTokenCountPrompt] = usage.PromptTokens
		attrs[AttrTokenCountCompletion] = usage.CompletionTokens
		attrs[AttrTokenCountTotal] = usage.TotalTokens
	}

	attrs[AttrOutputValue] = "[" + strings.Join(rawChunks, ",") + "]"
	attrs[AttrOutputMimeType] = MimeTypeJSON
	return attrs
}
