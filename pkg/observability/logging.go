package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SpanFields returns the trace and span ids of the active span as log fields
func SpanFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// WithSpan adds the active span's ids to l
func WithSpan(ctx context.Context, l *zap.Logger) *zap.Logger {
	if fields := SpanFields(ctx); fields != nil {
		return l.With(fields...)
	}
	return l
}
