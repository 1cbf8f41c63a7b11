package tollgate

import (
	"errors"

	"github.com/tollgate/tollgate/payment"
)

// Sentinel errors returned by Gateway operations.
var (
	// ErrNoStore is returned when a Gateway is created without a store.
	ErrNoStore = errors.New("tollgate: store is required")

	// ErrNoFacilitator is returned when a Gateway is created without a
	// payment facilitator. Payment configuration fails at startup, never
	// at first paid request.
	ErrNoFacilitator = errors.New("tollgate: payment facilitator is required")

	// ErrEndpointNotFound is returned when an endpoint cannot be found.
	ErrEndpointNotFound = errors.New("tollgate: endpoint not found")

	// ErrEndpointDisabled is returned when proxying to a disabled endpoint.
	ErrEndpointDisabled = errors.New("tollgate: endpoint is disabled")

	// ErrCallNotFound is returned when a call record cannot be found.
	ErrCallNotFound = errors.New("tollgate: call record not found")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("tollgate: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("tollgate: migration failed")
)

// Payment sentinels re-exported for callers that only import the root
// package. Store backends and the HTTP layer match on these with errors.Is.
var (
	ErrPaymentRequired = payment.ErrPaymentRequired
	ErrPaymentInvalid  = payment.ErrPaymentInvalid
	ErrMalformedProof  = payment.ErrMalformedProof
	ErrProofReused     = payment.ErrProofReused
)
