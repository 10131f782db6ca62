package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/llmtrace/llmtrace/internal/agent"
	"github.com/llmtrace/llmtrace/internal/trace"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderRunResult summarizes an agent.RunResult for the demo command.
func renderRunResult(result *agent.RunResult) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Run result"))
	b.WriteString("\n")
	content, _ := result.Final.Content.(string)
	fmt.Fprintf(&b, "%s\n\n", content)
	fmt.Fprintf(&b, "%s turns=%d tokens=%d cost=$%.6f duration=%s\n",
		dimStyle.Render("·"), result.NumTurns, result.TotalUsage.TotalTokens, result.CostUSD, result.Duration.Round(1000000))
	return b.String()
}

// renderSpans renders a one-line-per-span summary table.
func renderSpans(spans []trace.Span) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render(fmt.Sprintf("Spans (%d)", len(spans))))
	b.WriteString("\n")
	for _, span := range spans {
		status := okStyle.Render(string(span.StatusCode))
		if span.StatusCode == trace.StatusError {
			status = errorStyle.Render(string(span.StatusCode))
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s\n", span.Context.SpanID[:8], span.Name, status, span.EndTime.Sub(span.StartTime).Round(1000000))
	}
	return b.String()
}

// renderSpanReport builds the markdown report for a single span, rendered
// through glamour so it is legible in a terminal pane.
func renderSpanReport(span trace.Span, width int) string {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s — %s\n\n", span.Name, span.StatusCode)
	fmt.Fprintf(&md, "- trace: `%s`\n", span.Context.TraceID)
	fmt.Fprintf(&md, "- span: `%s`\n", span.Context.SpanID)
	fmt.Fprintf(&md, "- duration: `%s`\n\n", span.EndTime.Sub(span.StartTime))

	if span.StatusMessage != "" {
		fmt.Fprintf(&md, "**status message:** %s\n\n", span.StatusMessage)
	}

	md.WriteString("## Attributes\n\n")
	for _, key := range attributeKeysInOrder(span.Attributes) {
		encoded, err := json.MarshalIndent(span.Attributes[key], "", "  ")
		if err != nil {
			continue
		}
		fmt.Fprintf(&md, "**%s**\n```json\n%s\n```\n\n", key, string(encoded))
	}

	if len(span.Events) > 0 {
		md.WriteString("## Events\n\n")
		for _, event := range span.Events {
			fmt.Fprintf(&md, "- `%s` %s at %s\n", event.Kind, event.Name, event.Timestamp.Format("15:04:05.000"))
		}
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return md.String()
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return md.String()
	}
	return out
}

// attributeKeysInOrder returns the span attribute keys that appear in a
// fixed semantic convention list, in that list's order, for stable report
// rendering. Keys outside the list (such as the mime-type attributes) are
// not returned.
func attributeKeysInOrder(attrs map[string]any) []string {
	preferred := []string{
		trace.AttrInputValue,
		trace.AttrInputMessages,
		trace.AttrInvocationParameters,
		trace.AttrOutputValue,
		trace.AttrOutputMessages,
		trace.AttrFunctionCall,
		trace.AttrTokenCountPrompt,
		trace.AttrTokenCountCompletion,
		trace.AttrTokenCountTotal,
	}
	var keys []string
	for _, key := range preferred {
		if _, ok := attrs[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
