package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tollgate/tollgate/observability"
)

// Sentinel errors produced while authorizing a paid request. The HTTP layer
// maps each to a distinct response shape.
var (
	// ErrPaymentRequired means no proof was attached; the caller should be
	// challenged with the 402 requirements.
	ErrPaymentRequired = errors.New("payment: payment required")

	// ErrMalformedProof means the X-Payment header could not be decoded.
	ErrMalformedProof = errors.New("payment: malformed payment header")

	// ErrPaymentInvalid means the facilitator rejected the proof, or the
	// proof does not match the advertised requirements.
	ErrPaymentInvalid = errors.New("payment: payment rejected")
)

// GateConfig holds payment gate configuration.
type GateConfig struct {
	// Network is the settlement network advertised in challenges.
	Network string

	// MaxTimeoutSeconds is the payment validity window advertised in
	// challenges.
	MaxTimeoutSeconds int

	// ProofTTL bounds how long used-proof digests are retained.
	ProofTTL time.Duration

	// FacilitatorTimeout bounds each verify and settle call.
	FacilitatorTimeout time.Duration

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Gate is the payment-verification stage that fronts paid endpoints.
//
// The core invariant: Authorize returns a non-nil Settlement only after the
// facilitator has accepted and settled the proof, and a given proof
// authorizes at most one request. Callers must not forward upstream on any
// error return.
type Gate struct {
	facilitator Facilitator
	proofs      ProofStore
	config      GateConfig
	logger      *slog.Logger
}

// NewGate creates a payment gate. The facilitator is a required, explicitly
// constructed dependency — there is no lazy fallback.
func NewGate(facilitator Facilitator, proofs ProofStore, cfg GateConfig, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Network == "" {
		cfg.Network = NetworkBaseSepolia
	}
	if cfg.MaxTimeoutSeconds <= 0 {
		cfg.MaxTimeoutSeconds = 60
	}
	if cfg.ProofTTL <= 0 {
		cfg.ProofTTL = 24 * time.Hour
	}
	if cfg.FacilitatorTimeout <= 0 {
		cfg.FacilitatorTimeout = 30 * time.Second
	}
	return &Gate{
		facilitator: facilitator,
		proofs:      proofs,
		config:      cfg,
		logger:      logger,
	}
}

// Network returns the settlement network the gate advertises.
func (g *Gate) Network() string { return g.config.Network }

// RequirementFor builds the payment requirement for one priced resource.
// The price is the endpoint's display price (e.g. "$0.001"); resource is the
// URL the caller requested.
func (g *Gate) RequirementFor(price, payTo, resource, description string) (Requirement, error) {
	amount, err := ParsePrice(price)
	if err != nil {
		return Requirement{}, err
	}
	asset, err := AssetForNetwork(g.config.Network)
	if err != nil {
		return Requirement{}, err
	}
	return Requirement{
		Scheme:            SchemeExact,
		Network:           g.config.Network,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       description,
		MimeType:          "application/json",
		PayTo:             payTo,
		MaxTimeoutSeconds: g.config.MaxTimeoutSeconds,
		Asset:             asset,
		Extra: map[string]string{
			"price":         price,
			"payoutAddress": payTo,
		},
	}, nil
}

// Authorize validates the payment proof attached to r against req and, on
// acceptance, settles it. It returns the settlement to surface to the caller.
//
// Error returns:
//   - ErrPaymentRequired: no proof attached
//   - ErrMalformedProof: proof header present but undecodable
//   - ErrPaymentInvalid: facilitator rejected, or scheme/network mismatch
//   - ErrProofReused: proof was already spent by another request
//   - anything else: facilitator unreachable or failed
func (g *Gate) Authorize(ctx context.Context, r *http.Request, req Requirement) (*Settlement, error) {
	header := r.Header.Get(ProofHeader)
	if header == "" {
		if g.config.Metrics != nil {
			g.config.Metrics.PaymentChallengesTotal.Inc()
		}
		return nil, ErrPaymentRequired
	}

	proof, err := DecodeProof(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if proof.Scheme != req.Scheme || proof.Network != req.Network {
		return nil, fmt.Errorf("%w: proof is for %s/%s, required %s/%s",
			ErrPaymentInvalid, proof.Scheme, proof.Network, req.Scheme, req.Network)
	}

	settlement, err := g.verifyAndSettle(ctx, proof, req)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "payment settled",
		"resource", req.Resource,
		"amount", req.MaxAmountRequired,
		"pay_to", req.PayTo,
		"transaction", settlement.Transaction,
	)
	if g.config.Metrics != nil {
		g.config.Metrics.PaymentsSettledTotal.Inc()
	}
	return settlement, nil
}

func (g *Gate) verifyAndSettle(ctx context.Context, proof *Payload, req Requirement) (*Settlement, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.FacilitatorTimeout)
	defer cancel()

	if g.config.Tracer != nil {
		var span trace.Span
		ctx, span = g.config.Tracer.StartPaymentSpan(ctx, req.Resource, req.MaxAmountRequired)
		defer span.End()
	}

	verdict, err := g.facilitator.Verify(ctx, proof, req)
	if err != nil {
		return nil, fmt.Errorf("payment: verify: %w", err)
	}
	if !verdict.IsValid {
		if g.config.Metrics != nil {
			g.config.Metrics.PaymentRejectionsTotal.Inc()
		}
		return nil, fmt.Errorf("%w: %s", ErrPaymentInvalid, verdict.InvalidReason)
	}

	// Burn the proof before settling so a concurrent duplicate cannot also
	// reach the facilitator.
	if err := g.proofs.MarkProofUsed(ctx, proof.Digest(), g.config.ProofTTL); err != nil {
		return nil, err
	}

	settlement, err := g.facilitator.Settle(ctx, proof, req)
	if err != nil {
		return nil, fmt.Errorf("payment: settle: %w", err)
	}
	if !settlement.Success {
		if g.config.Metrics != nil {
			g.config.Metrics.PaymentRejectionsTotal.Inc()
		}
		return nil, fmt.Errorf("%w: %s", ErrPaymentInvalid, settlement.ErrorReason)
	}
	return settlement, nil
}

// Challenge builds the deterministic 402 response body for req. reason is
// empty for a bare challenge and carries the rejection cause after a failed
// verification.
func (g *Gate) Challenge(req Requirement, reason string) RequiredResponse {
	return RequiredResponse{
		X402Version: Version,
		Error:       reason,
		Accepts:     []Requirement{req},
	}
}
