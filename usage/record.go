// Package usage meters proxied API calls for billing history and stats.
package usage

import (
	"context"

	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
)

// Record is one metered API call through the gateway.
type Record struct {
	entity.Entity

	// ID is the unique TypeID for this call record.
	ID id.ID `json:"id"`

	// EndpointID references the endpoint that served the call.
	EndpointID id.ID `json:"endpoint_id"`

	// Method and RequestPath identify what the caller requested.
	Method      string `json:"method"`
	RequestPath string `json:"request_path"`

	// StatusCode is the status relayed to the caller.
	StatusCode int `json:"status_code"`

	// Cost is the display price charged, empty for free calls.
	Cost string `json:"cost,omitempty"`

	// SettlementRef is the facilitator's settlement reference for paid calls.
	SettlementRef string `json:"settlement_ref,omitempty"`

	// LatencyMs is the upstream round-trip time in milliseconds.
	LatencyMs int `json:"latency_ms"`
}

// ListOpts configures filtering and pagination for call history listing.
type ListOpts struct {
	Offset int
	Limit  int
}

// Store defines the persistence contract for call records.
type Store interface {
	// CreateCall persists one call record.
	CreateCall(ctx context.Context, rec *Record) error

	// ListCalls returns call records for an endpoint, newest first.
	ListCalls(ctx context.Context, epID id.ID, opts ListOpts) ([]*Record, error)

	// CountCalls returns the total number of recorded calls.
	CountCalls(ctx context.Context) (int64, error)
}
