package logfire

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type activeSpanKey struct{}

// active is what a context carries: the trace and the open real span
// that new records on this context parent to.
type active struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

// ContextWithSpan returns a context whose records parent to span. Span
// and Activate already do this; it is exported for code that carries
// contexts across API boundaries by hand.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	if span == nil || !span.spanID.IsValid() {
		return ctx
	}
	return context.WithValue(ctx, activeSpanKey{}, active{
		traceID: span.traceID,
		spanID:  span.spanID,
	})
}

func activeFrom(ctx context.Context) (active, bool) {
	a, ok := ctx.Value(activeSpanKey{}).(active)
	return a, ok
}
