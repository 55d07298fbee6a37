package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceCarrier is the serialisable form of a span context, stored next to
// outbox rows so the publisher can continue the originating trace.
type TraceCarrier struct {
	Traceparent string
	Tracestate  string
}

func (c TraceCarrier) Empty() bool { return c.Traceparent == "" }

func CaptureTrace(ctx context.Context) TraceCarrier {
	m := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, m)
	return TraceCarrier{Traceparent: m["traceparent"], Tracestate: m["tracestate"]}
}

func ResumeTrace(ctx context.Context, c TraceCarrier) context.Context {
	if c.Empty() {
		return ctx
	}
	m := propagation.MapCarrier{"traceparent": c.Traceparent}
	if c.Tracestate != "" {
		m["tracestate"] = c.Tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, m)
}
