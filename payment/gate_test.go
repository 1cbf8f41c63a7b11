package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeFacilitator scripts verify/settle outcomes and counts calls.
type fakeFacilitator struct {
	verifyResult *VerifyResult
	verifyErr    error
	settleResult *Settlement
	settleErr    error

	mu          sync.Mutex
	verifyCalls int
	settleCalls int
}

func (f *fakeFacilitator) Verify(_ context.Context, _ *Payload, _ Requirement) (*VerifyResult, error) {
	f.mu.Lock()
	f.verifyCalls++
	f.mu.Unlock()
	return f.verifyResult, f.verifyErr
}

func (f *fakeFacilitator) Settle(_ context.Context, _ *Payload, _ Requirement) (*Settlement, error) {
	f.mu.Lock()
	f.settleCalls++
	f.mu.Unlock()
	return f.settleResult, f.settleErr
}

// fakeProofStore is an in-memory single-use proof ledger.
type fakeProofStore struct {
	mu   sync.Mutex
	used map[string]bool
}

func newFakeProofStore() *fakeProofStore {
	return &fakeProofStore{used: make(map[string]bool)}
}

func (s *fakeProofStore) MarkProofUsed(_ context.Context, digest string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used[digest] {
		return ErrProofReused
	}
	s.used[digest] = true
	return nil
}

func acceptingFacilitator() *fakeFacilitator {
	return &fakeFacilitator{
		verifyResult: &VerifyResult{IsValid: true, Payer: "0xpayer"},
		settleResult: &Settlement{Success: true, Transaction: "0xtx", Network: NetworkBaseSepolia},
	}
}

func testRequirement(t *testing.T, g *Gate) Requirement {
	t.Helper()
	req, err := g.RequirementFor("$0.01", "0xABC", "http://gw.test/paid-proxy/ep_1", "Payment for weather API")
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func proofRequest(t *testing.T, network string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://gw.test/paid-proxy/ep_1", nil)
	header := encodeProof(t, fmt.Sprintf(
		`{"x402Version":1,"scheme":"exact","network":%q,"payload":{"signature":"0xsig"}}`, network))
	r.Header.Set(ProofHeader, header)
	return r
}

func TestRequirementFor(t *testing.T) {
	g := NewGate(acceptingFacilitator(), newFakeProofStore(), GateConfig{}, nil)

	req := testRequirement(t, g)
	if req.Scheme != SchemeExact {
		t.Fatalf("expected exact scheme, got %q", req.Scheme)
	}
	if req.Network != NetworkBaseSepolia {
		t.Fatalf("expected default network, got %q", req.Network)
	}
	if req.MaxAmountRequired != "10000" {
		t.Fatalf("expected atomic amount 10000, got %q", req.MaxAmountRequired)
	}
	if req.PayTo != "0xABC" {
		t.Fatalf("expected payTo 0xABC, got %q", req.PayTo)
	}
	if req.Asset == "" {
		t.Fatal("expected asset contract")
	}
	if req.Extra["price"] != "$0.01" {
		t.Fatalf("expected display price in extra, got %v", req.Extra)
	}
}

func TestAuthorize_NoProof(t *testing.T) {
	fac := acceptingFacilitator()
	g := NewGate(fac, newFakeProofStore(), GateConfig{}, nil)

	r := httptest.NewRequest(http.MethodGet, "http://gw.test/paid-proxy/ep_1", nil)
	_, err := g.Authorize(context.Background(), r, testRequirement(t, g))
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
	if fac.verifyCalls != 0 || fac.settleCalls != 0 {
		t.Fatal("facilitator must not be called without a proof")
	}
}

func TestAuthorize_MalformedProof(t *testing.T) {
	fac := acceptingFacilitator()
	g := NewGate(fac, newFakeProofStore(), GateConfig{}, nil)

	r := httptest.NewRequest(http.MethodGet, "http://gw.test/paid-proxy/ep_1", nil)
	r.Header.Set(ProofHeader, "not-base64!!!")

	_, err := g.Authorize(context.Background(), r, testRequirement(t, g))
	if !errors.Is(err, ErrMalformedProof) {
		t.Fatalf("expected ErrMalformedProof, got %v", err)
	}
	if fac.verifyCalls != 0 {
		t.Fatal("facilitator must not see malformed proofs")
	}
}

func TestAuthorize_NetworkMismatch(t *testing.T) {
	fac := acceptingFacilitator()
	g := NewGate(fac, newFakeProofStore(), GateConfig{Network: NetworkBaseSepolia}, nil)

	_, err := g.Authorize(context.Background(), proofRequest(t, NetworkBase), testRequirement(t, g))
	if !errors.Is(err, ErrPaymentInvalid) {
		t.Fatalf("expected ErrPaymentInvalid, got %v", err)
	}
	if fac.verifyCalls != 0 {
		t.Fatal("mismatched proofs must be rejected before verification")
	}
}

func TestAuthorize_Accepted(t *testing.T) {
	fac := acceptingFacilitator()
	g := NewGate(fac, newFakeProofStore(), GateConfig{}, nil)

	settlement, err := g.Authorize(context.Background(), proofRequest(t, NetworkBaseSepolia), testRequirement(t, g))
	if err != nil {
		t.Fatal(err)
	}
	if settlement.Transaction != "0xtx" {
		t.Fatalf("expected settlement reference, got %q", settlement.Transaction)
	}
	if fac.verifyCalls != 1 || fac.settleCalls != 1 {
		t.Fatalf("expected one verify and one settle, got %d/%d", fac.verifyCalls, fac.settleCalls)
	}
}

func TestAuthorize_Rejected(t *testing.T) {
	fac := acceptingFacilitator()
	fac.verifyResult = &VerifyResult{IsValid: false, InvalidReason: "insufficient_funds"}
	g := NewGate(fac, newFakeProofStore(), GateConfig{}, nil)

	_, err := g.Authorize(context.Background(), proofRequest(t, NetworkBaseSepolia), testRequirement(t, g))
	if !errors.Is(err, ErrPaymentInvalid) {
		t.Fatalf("expected ErrPaymentInvalid, got %v", err)
	}
	if fac.settleCalls != 0 {
		t.Fatal("rejected proofs must never be settled")
	}
}

func TestAuthorize_ProofReuse(t *testing.T) {
	fac := acceptingFacilitator()
	g := NewGate(fac, newFakeProofStore(), GateConfig{}, nil)
	req := testRequirement(t, g)

	if _, err := g.Authorize(context.Background(), proofRequest(t, NetworkBaseSepolia), req); err != nil {
		t.Fatal(err)
	}

	// The identical proof must be refused the second time.
	_, err := g.Authorize(context.Background(), proofRequest(t, NetworkBaseSepolia), req)
	if !errors.Is(err, ErrProofReused) {
		t.Fatalf("expected ErrProofReused, got %v", err)
	}
	if fac.settleCalls != 1 {
		t.Fatalf("replayed proof must not settle again, got %d settles", fac.settleCalls)
	}
}

func TestAuthorize_SettleFailure(t *testing.T) {
	fac := acceptingFacilitator()
	fac.settleResult = &Settlement{Success: false, ErrorReason: "settlement_failed"}
	g := NewGate(fac, newFakeProofStore(), GateConfig{}, nil)

	_, err := g.Authorize(context.Background(), proofRequest(t, NetworkBaseSepolia), testRequirement(t, g))
	if !errors.Is(err, ErrPaymentInvalid) {
		t.Fatalf("expected ErrPaymentInvalid, got %v", err)
	}
}

func TestAuthorize_FacilitatorDown(t *testing.T) {
	fac := &fakeFacilitator{verifyErr: errors.New("connection refused")}
	g := NewGate(fac, newFakeProofStore(), GateConfig{}, nil)

	_, err := g.Authorize(context.Background(), proofRequest(t, NetworkBaseSepolia), testRequirement(t, g))
	if err == nil {
		t.Fatal("expected error when facilitator is unreachable")
	}
	if errors.Is(err, ErrPaymentRequired) || errors.Is(err, ErrPaymentInvalid) {
		t.Fatalf("facilitator outage must not look like a payment decision: %v", err)
	}
}

func TestChallenge(t *testing.T) {
	g := NewGate(acceptingFacilitator(), newFakeProofStore(), GateConfig{}, nil)
	req := testRequirement(t, g)

	bare := g.Challenge(req, "")
	if bare.X402Version != Version {
		t.Fatalf("expected version %d, got %d", Version, bare.X402Version)
	}
	if len(bare.Accepts) != 1 || bare.Accepts[0].PayTo != "0xABC" {
		t.Fatalf("expected requirement in accepts, got %+v", bare.Accepts)
	}

	rejected := g.Challenge(req, "insufficient_funds")
	if rejected.Error != "insufficient_funds" {
		t.Fatalf("expected rejection reason, got %q", rejected.Error)
	}
}
