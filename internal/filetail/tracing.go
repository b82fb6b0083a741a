package filetail

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "log-tailer/filetail"

func startSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, operationName, trace.WithAttributes(attrs...))
}

// endSpan records the outcome of a tail call and ends the span
func endSpan(span trace.Span, res Result, err error) {
	span.SetAttributes(
		attribute.String("tail.status", res.Status.String()),
		attribute.String("tail.key", res.Key),
		attribute.Int64("tail.start_offset", int64(res.Start)),
		attribute.Int64("tail.end_offset", int64(res.End)),
		attribute.Int("tail.lines", len(res.Lines)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("%s: %v", res.Status, err))
	} else {
		span.SetStatus(codes.Ok, res.Status.String())
	}
	span.End()
}
