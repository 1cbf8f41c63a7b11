package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxFacilitatorBody = 1 << 20 // 1MB cap on facilitator responses

// VerifyResult is the facilitator's accept/reject decision for a proof.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// Facilitator verifies payment proofs and settles accepted payments.
// Implementations must bound their own wait; the gate performs no retries.
type Facilitator interface {
	Verify(ctx context.Context, proof *Payload, req Requirement) (*VerifyResult, error)
	Settle(ctx context.Context, proof *Payload, req Requirement) (*Settlement, error)
}

// HTTPFacilitator talks to an x402 facilitator service over HTTP.
type HTTPFacilitator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFacilitator creates a facilitator client. The base URL is validated
// here so a misconfigured deployment fails at startup, not at first payment.
func NewHTTPFacilitator(baseURL string, timeout time.Duration) (*HTTPFacilitator, error) {
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("payment: facilitator URL %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFacilitator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// facilitatorRequest is the wire envelope for both /verify and /settle.
type facilitatorRequest struct {
	X402Version         int         `json:"x402Version"`
	PaymentPayload      *Payload    `json:"paymentPayload"`
	PaymentRequirements Requirement `json:"paymentRequirements"`
}

// Verify asks the facilitator whether the proof satisfies the requirement.
func (f *HTTPFacilitator) Verify(ctx context.Context, proof *Payload, req Requirement) (*VerifyResult, error) {
	var result VerifyResult
	if err := f.post(ctx, "/verify", proof, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Settle asks the facilitator to execute the payment and reports the
// settlement reference.
func (f *HTTPFacilitator) Settle(ctx context.Context, proof *Payload, req Requirement) (*Settlement, error) {
	var result Settlement
	if err := f.post(ctx, "/settle", proof, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (f *HTTPFacilitator) post(ctx context.Context, path string, proof *Payload, req Requirement, out any) error {
	body, err := json.Marshal(facilitatorRequest{
		X402Version:         Version,
		PaymentPayload:      proof,
		PaymentRequirements: req,
	})
	if err != nil {
		return fmt.Errorf("payment: marshal facilitator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("payment: create facilitator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payment: facilitator %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFacilitatorBody))
	if err != nil {
		return fmt.Errorf("payment: read facilitator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment: facilitator %s returned %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payment: parse facilitator response: %w", err)
	}
	return nil
}
