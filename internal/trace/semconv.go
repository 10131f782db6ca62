// Package trace implements the instrumentation core: span model, attribute
// extraction, stream accumulation, and the call interceptor and instrumentor
// that wire them around an openai.ChatCompleter.
package trace

// Semantic attribute keys. This namespace is a wire contract with
// downstream consumers (dashboards, dataframe export) and must never be
// renamed.
const (
	AttrInputMessages         = "llm.input_messages"
	AttrOutputMessages        = "llm.output_messages"
	AttrInvocationParameters  = "llm.invocation_parameters"
	AttrFunctionCall          = "llm.function_call"
	AttrTokenCountPrompt      = "llm.token_count.prompt"
	AttrTokenCountCompletion  = "llm.token_count.completion"
	AttrTokenCountTotal       = "llm.token_count.total"
	AttrInputValue            = "input.value"
	AttrInputMimeType         = "input.mime_type"
	AttrOutputValue           = "output.value"
	AttrOutputMimeType        = "output.mime_type"
	AttrExceptionType         = "exception.type"
	AttrExceptionMessage      = "exception.message"
	AttrExceptionStacktrace   = "exception.stacktrace"
)

// MimeTypeJSON is the mime type recorded against input.mime_type and
// output.mime_type whenever the corresponding value is a JSON document.
const MimeTypeJSON = "application/json"

// MessageAttrs is the ordered-mapping shape of a single entry within
// llm.input_messages / llm.output_messages.
type MessageAttrs struct {
	Role                      string           `json:"role"`
	Content                   string           `json:"content,omitempty"`
	Name                      string           `json:"name,omitempty"`
	FunctionCallName          string           `json:"function_call_name,omitempty"`
	FunctionCallArgumentsJSON string           `json:"function_call_arguments_json,omitempty"`
	ToolCalls                 []ToolCallAttrs  `json:"tool_calls,omitempty"`
}

// ToolCallAttrs is one entry of a message's tool_calls attribute.
type ToolCallAttrs struct {
	FunctionName          string `json:"function_name"`
	FunctionArgumentsJSON string `json:"function_arguments_json"`
}

// FunctionCallAttrs is the shape of the top-level llm.function_call
// attribute value.
type FunctionCallAttrs struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
