package tollgate

import (
	"log/slog"
	"time"

	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/observability"
	"github.com/tollgate/tollgate/payment"
	"github.com/tollgate/tollgate/proxy"
	"github.com/tollgate/tollgate/ratelimit"
	"github.com/tollgate/tollgate/store"
	"github.com/tollgate/tollgate/usage"
)

// Gateway is the root proxy engine: endpoint registry, auth injection,
// request forwarding and the payment gate, wired together.
type Gateway struct {
	config      Config
	store       store.Store
	facilitator payment.Facilitator
	endpointSvc *endpoint.Service
	forwarder   *proxy.Forwarder
	gate        *payment.Gate
	recorder    *usage.Recorder
	limiter     *ratelimit.Limiter
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	logger      *slog.Logger
}

// Option configures a Gateway instance.
type Option func(*Gateway) error

// New creates a new Gateway with the given options. A store and a payment
// facilitator are required; construction fails fast on a missing dependency.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if g.store == nil {
		return nil, ErrNoStore
	}
	if g.facilitator == nil {
		return nil, ErrNoFacilitator
	}
	g.wireServices()
	return g, nil
}

// WithStore sets the persistence backend for the Gateway instance.
func WithStore(s store.Store) Option {
	return func(g *Gateway) error {
		g.store = s
		return nil
	}
}

// WithFacilitator sets the payment facilitator for the Gateway instance.
func WithFacilitator(f payment.Facilitator) Option {
	return func(g *Gateway) error {
		g.facilitator = f
		return nil
	}
}

// WithLogger sets the structured logger for the Gateway instance.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithNetwork sets the settlement network advertised in payment challenges.
func WithNetwork(network string) Option {
	return func(g *Gateway) error {
		g.config.Network = network
		return nil
	}
}

// WithUpstreamTimeout bounds each forwarded upstream call.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.UpstreamTimeout = d
		return nil
	}
}

// WithFacilitatorTimeout bounds each facilitator verify/settle call.
func WithFacilitatorTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.FacilitatorTimeout = d
		return nil
	}
}

// WithProofTTL bounds how long used payment proof digests are retained.
func WithProofTTL(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.ProofTTL = d
		return nil
	}
}

// WithUsageBuffer sets the capacity of the async call-metering queue.
func WithUsageBuffer(n int) Option {
	return func(g *Gateway) error {
		g.config.UsageBufferSize = n
		return nil
	}
}

// WithMetrics sets the metric instruments for the Gateway instance.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) error {
		g.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the Gateway instance.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) error {
		g.tracer = t
		return nil
	}
}
