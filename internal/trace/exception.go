package trace

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/llmtrace/llmtrace/internal/llm/openai"
)

// exceptionType derives a stable type name for an error so consumers can
// match on it the way Python consumers match on an exception class name
// (P7 requires "AuthenticationError" specifically for a 401).
func exceptionType(err error) string {
	switch err.(type) {
	case *openai.AuthenticationError:
		return "AuthenticationError"
	case *openai.RateLimitError:
		return "RateLimitError"
	case *openai.APIError:
		return "APIError"
	default:
		return "Error"
	}
}

// captureStacktrace renders the current call stack in a textual form
// carrying the "Traceback" header consumers grep for, followed by Go
// frame lines. This is the Go-idiomatic stand-in for a Python traceback,
// not a literal translation of one.
func captureStacktrace(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	for {
		frame, more := frames.Next()
		b.WriteString("  File \"")
		b.WriteString(frame.File)
		b.WriteString("\", line ")
		b.WriteString(strconv.Itoa(frame.Line))
		b.WriteString(", in ")
		b.WriteString(frame.Function)
		b.WriteString("\n")
		if !more {
			break
		}
	}
	return b.String()
}
