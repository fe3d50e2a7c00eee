// Package observability wraps the OpenTelemetry tracer provider in
// the one shape internal/engine actually needs: a span per
// resource/window worker, tagged with a handful of scalar attributes
// (spec.md §4.1).
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "cqlbulk"

// Span is a tracing span with attributes batched until End, avoiding
// a SetAttributes call per field on the hot per-record path.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// NewSpan starts a span under the global tracer. otel.Tracer resolves
// against whatever provider Initialize installed, or a no-op provider
// if Initialize was never called or failed — either way this never
// panics (cmd/cqlbulk/main.go treats a failed Initialize as
// non-fatal).
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, operationName)
	return ctx, &Span{span: span}
}

// SetAttribute queues an attribute for the span, converting common Go
// scalar types directly and falling back to fmt.Sprintf for anything
// else.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.attributes = append(s.attributes, attr)
}

// End flushes the queued attributes and ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}
