package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys set on stage spans
const (
	AttrRunID      = "movieport.run_id"
	AttrStage      = "movieport.stage"
	AttrRecordsIn  = "movieport.records.in"
	AttrRecordsOut = "movieport.records.out"
)

// Span is a stage span that records its input and output counts
type Span struct {
	span      trace.Span
	startTime time.Time
}

// StartStage opens a span named after the stage. A nil tracer produces a no-op span.
func StartStage(ctx context.Context, tracer trace.Tracer, runID, stage string) (context.Context, *Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	ctx, span := tracer.Start(ctx, "stage."+stage,
		trace.WithAttributes(
			attribute.String(AttrRunID, runID),
			attribute.String(AttrStage, stage),
		),
	)
	return ctx, &Span{span: span, startTime: time.Now()}
}

// SetRecords records how many records the stage read and wrote
func (s *Span) SetRecords(in, out int) {
	s.span.SetAttributes(
		attribute.Int(AttrRecordsIn, in),
		attribute.Int(AttrRecordsOut, out),
	)
}

// AddEvent adds an event to the span active in ctx, if any
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span with the stage outcome and returns the elapsed time
func (s *Span) End(err error) time.Duration {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
	return time.Since(s.startTime)
}
