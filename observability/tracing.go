package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tollgate/tollgate"

// Tracer provides OpenTelemetry tracing for Tollgate.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tollgate tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartForwardSpan starts a span for one upstream forward.
func (t *Tracer) StartForwardSpan(ctx context.Context, endpointID, method, upstreamURL string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tollgate.forward",
		trace.WithAttributes(
			attribute.String("tollgate.endpoint_id", endpointID),
			attribute.String("http.method", method),
			attribute.String("tollgate.upstream_url", upstreamURL),
		),
	)
}

// EndForwardSpan ends a forward span with result attributes.
func (t *Tracer) EndForwardSpan(span trace.Span, statusCode, latencyMs int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("tollgate.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("tollgate.error", err))
	}
	span.End()
}

// StartPaymentSpan starts a span covering facilitator verify + settle for
// one paid request.
func (t *Tracer) StartPaymentSpan(ctx context.Context, resource, amount string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tollgate.payment",
		trace.WithAttributes(
			attribute.String("tollgate.resource", resource),
			attribute.String("tollgate.amount", amount),
		),
	)
}
