package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceAttrs returns trace_id and span_id for a sampled span in ctx so log
// lines can be joined with their trace.
func TraceAttrs(ctx context.Context) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{"trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String()}
}
