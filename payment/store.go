package payment

import (
	"context"
	"errors"
	"time"
)

// ErrProofReused is returned by ProofStore implementations when a proof
// digest has already been marked used.
var ErrProofReused = errors.New("payment: proof already used")

// ProofStore enforces single-use payment proofs. MarkProofUsed must be
// atomic: of any set of concurrent calls with the same digest, exactly one
// succeeds and the rest return ErrProofReused.
type ProofStore interface {
	// MarkProofUsed records a proof digest as consumed. The record may be
	// dropped after ttl; proofs themselves expire on the settlement layer
	// well before any reasonable ttl.
	MarkProofUsed(ctx context.Context, digest string, ttl time.Duration) error
}
