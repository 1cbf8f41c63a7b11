package tollgate

import (
	"context"

	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/observability"
	"github.com/tollgate/tollgate/payment"
	"github.com/tollgate/tollgate/proxy"
	"github.com/tollgate/tollgate/ratelimit"
	"github.com/tollgate/tollgate/store"
	"github.com/tollgate/tollgate/usage"
)

// wireServices initializes the internal services after options have been
// applied. Every dependency is constructed here, explicitly — no lazy
// singletons on the request path.
func (g *Gateway) wireServices() {
	g.endpointSvc = endpoint.NewService(g.store, g.logger)

	g.forwarder = proxy.NewForwarder(proxy.Config{
		Timeout: g.config.UpstreamTimeout,
		Metrics: g.metrics,
		Tracer:  g.tracer,
	}, g.logger)

	g.gate = payment.NewGate(g.facilitator, g.store, payment.GateConfig{
		Network:            g.config.Network,
		MaxTimeoutSeconds:  g.config.PaymentWindowSeconds,
		ProofTTL:           g.config.ProofTTL,
		FacilitatorTimeout: g.config.FacilitatorTimeout,
		Metrics:            g.metrics,
		Tracer:             g.tracer,
	}, g.logger)

	g.recorder = usage.NewRecorder(g.store, usage.RecorderConfig{
		BufferSize:   g.config.UsageBufferSize,
		Workers:      g.config.UsageWorkers,
		DrainTimeout: g.config.ShutdownTimeout,
	}, g.logger)

	g.limiter = ratelimit.New()
}

// Start begins the background call-metering workers.
func (g *Gateway) Start(ctx context.Context) {
	g.recorder.Start(ctx)
}

// Stop drains queued call records and shuts down background workers.
func (g *Gateway) Stop(ctx context.Context) {
	g.recorder.Stop(ctx)
}

// Lookup fetches an endpoint for forwarding. It is called fresh on every
// proxied request so credential, price and payout changes take effect on the
// next call — the pipeline never caches endpoint state.
func (g *Gateway) Lookup(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	ep, err := g.store.GetEndpoint(ctx, epID)
	if err != nil {
		return nil, err
	}
	if !ep.Enabled {
		return nil, ErrEndpointDisabled
	}
	return ep, nil
}

// Endpoints returns the endpoint management service.
func (g *Gateway) Endpoints() *endpoint.Service {
	return g.endpointSvc
}

// Forwarder returns the request forwarder.
func (g *Gateway) Forwarder() *proxy.Forwarder {
	return g.forwarder
}

// Gate returns the payment gate.
func (g *Gateway) Gate() *payment.Gate {
	return g.gate
}

// Recorder returns the async usage recorder.
func (g *Gateway) Recorder() *usage.Recorder {
	return g.recorder
}

// Limiter returns the per-endpoint rate limiter.
func (g *Gateway) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Store returns the underlying store.
func (g *Gateway) Store() store.Store {
	return g.store
}

// Metrics returns the metric instruments, or nil when not configured.
func (g *Gateway) Metrics() *observability.Metrics {
	return g.metrics
}
