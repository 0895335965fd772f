package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns events into OpenTelemetry spans.
//
// Each event becomes a span named after event.Msg with the topic, stage,
// step, and all metadata recorded as attributes. An "error" metadata entry
// marks the span status as error.
//
// Usage:
//
//	tracer := otel.Tracer("researchpipe-go")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter backed by tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends a span for the event. Events represent
// points in time, not durations; stage timing travels in the "duration_ms"
// metadata attribute.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()
	o.record(span, event)
}

// EmitBatch creates spans for multiple events under one context, letting
// the batch span processor amortize export overhead.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.record(span, event)
		span.End()
	}
	return nil
}

// Flush forces export of pending spans. Call before shutdown so buffered
// spans reach the backend.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) record(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("researchpipe.topic", event.Topic),
		attribute.Int("researchpipe.step", event.Step),
		attribute.String("researchpipe.stage", event.Stage),
	)
	o.addMetadataAttributes(span, event.Meta)

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// addMetadataAttributes converts event metadata to span attributes.
// Well-known pipeline keys get namespaced attribute names.
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := key
		switch key {
		case "papers":
			attrKey = "researchpipe.papers"
		case "notes":
			attrKey = "researchpipe.notes"
		case "themes":
			attrKey = "researchpipe.themes"
		case "attempt":
			attrKey = "researchpipe.attempt"
		case "duration_ms":
			attrKey = "researchpipe.stage.duration_ms"
		case "source":
			attrKey = "researchpipe.source"
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
