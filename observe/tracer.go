package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCall starts a span for one store operation.
// Span name format: store.call.<op>
func StartCall(ctx context.Context, tracer trace.Tracer, op, collection string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("store.op", op),
	}
	if collection != "" {
		attrs = append(attrs, attribute.String("store.collection", collection))
	}
	return tracer.Start(ctx, "store.call."+op, trace.WithAttributes(attrs...))
}

// EndCall ends the span, recording the outcome.
func EndCall(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
