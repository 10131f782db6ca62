package trace

import "time"

// SpanRow is a flat export row for a single span, mirroring the column
// set the original tabular/SQL export used for span dataframes. It is
// export-only: nothing here feeds back into span construction.
type SpanRow struct {
	Name                  string
	SpanKind              string
	ParentID              string
	StartTime             time.Time
	EndTime               time.Time
	StatusCode            string
	StatusMessage         string
	TraceID               string
	SpanID                string
	InputMessages         any
	OutputMessages        any
	InvocationParameters  any
	TokenCountPrompt      *int
	TokenCountCompletion  *int
	TokenCountTotal       *int
	InputValue            string
	InputMimeType         string
	OutputValue           string
	OutputMimeType        string
	LatencyMS             float64
	ErrorCount            int
}

// Rows flattens every span currently held by tracer into export rows, in
// recording order.
func Rows(tracer *Tracer) []SpanRow {
	spans := tracer.GetSpans()
	rows := make([]SpanRow, 0, len(spans))
	for _, span := range spans {
		rows = append(rows, rowFor(span))
	}
	return rows
}

func rowFor(span Span) SpanRow {
	row := SpanRow{
		Name:          span.Name,
		SpanKind:      string(span.SpanKind),
		ParentID:      span.Context.ParentSpanID,
		StartTime:     span.StartTime,
		EndTime:       span.EndTime,
		StatusCode:    string(span.StatusCode),
		StatusMessage: span.StatusMessage,
		TraceID:       span.Context.TraceID,
		SpanID:        span.Context.SpanID,
		LatencyMS:     span.EndTime.Sub(span.StartTime).Seconds() * 1000,
	}

	row.InputMessages = span.Attributes[AttrInputMessages]
	row.OutputMessages = span.Attributes[AttrOutputMessages]
	row.InvocationParameters = span.Attributes[AttrInvocationParameters]

	row.TokenCountPrompt = intAttr(span.Attributes, AttrTokenCountPrompt)
	row.TokenCountCompletion = intAttr(span.Attributes, AttrTokenCountCompletion)
	row.TokenCountTotal = intAttr(span.Attributes, AttrTokenCountTotal)

	row.InputValue, _ = span.Attributes[AttrInputValue].(string)
	row.InputMimeType, _ = span.Attributes[AttrInputMimeType].(string)
	row.OutputValue, _ = span.Attributes[AttrOutputValue].(string)
	row.OutputMimeType, _ = span.Attributes[AttrOutputMimeType].(string)

	for _, event := range span.Events {
		if event.Kind == EventKindException {
			row.ErrorCount++
		}
	}
	return row
}

func intAttr(attrs map[string]any, key string) *int {
	value, ok := attrs[key]
	if !ok {
		return nil
	}
	if asInt, ok := value.(int); ok {
		return &asInt
	}
	return nil
}
