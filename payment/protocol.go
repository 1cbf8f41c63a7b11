// Package payment implements the per-request micropayment gate that fronts
// paid marketplace endpoints.
//
// The wire protocol is x402: an unpaid request receives a deterministic
// 402 response describing the payment requirements; the client settles out of
// band and retries with a proof in the X-Payment header; the gateway asks an
// external facilitator to verify and settle the proof before any upstream
// call is made. The facilitator is an opaque oracle — the gate never inspects
// proof internals.
package payment

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Version is the x402 protocol version this gateway speaks.
const Version = 1

// SchemeExact is the exact-amount payment scheme.
const SchemeExact = "exact"

// Header names carrying payment proofs and settlement references.
const (
	ProofHeader      = "X-Payment"
	SettlementHeader = "X-Payment-Response"
)

// Requirement describes one acceptable way to pay for a resource. It is
// embedded in the 402 challenge and echoed to the facilitator during
// verification so both sides agree on price and recipient.
type Requirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	MimeType          string `json:"mimeType"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Asset             string `json:"asset"`

	// Extra carries scheme-specific hints, including the human-readable
	// display price the atomic amount was derived from.
	Extra map[string]string `json:"extra,omitempty"`
}

// RequiredResponse is the JSON body of a 402 challenge. It is deterministic
// and machine-parseable so automated clients can construct a proof and retry.
type RequiredResponse struct {
	X402Version int           `json:"x402Version"`
	Error       string        `json:"error,omitempty"`
	Accepts     []Requirement `json:"accepts"`
}

// Payload is a client-supplied payment proof, decoded from the X-Payment
// header. The inner payload is scheme-specific and passed through to the
// facilitator untouched.
type Payload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     json.RawMessage `json:"payload"`

	digest string
}

// DecodeProof parses an X-Payment header value (base64-encoded JSON).
func DecodeProof(header string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("payment: decode proof header: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("payment: parse proof header: %w", err)
	}
	if p.X402Version != Version {
		return nil, fmt.Errorf("payment: unsupported x402 version %d", p.X402Version)
	}

	sum := sha256.Sum256(raw)
	p.digest = hex.EncodeToString(sum[:])
	return &p, nil
}

// Digest returns a stable fingerprint of the raw proof, used to enforce
// single-use semantics across concurrent requests.
func (p *Payload) Digest() string {
	return p.digest
}

// Settlement is the facilitator's record of a settled payment. It is relayed
// to the caller in the X-Payment-Response header as proof that payment
// occurred.
type Settlement struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
}

// EncodeHeader renders the settlement as a base64 JSON header value.
func (s *Settlement) EncodeHeader() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("payment: encode settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
