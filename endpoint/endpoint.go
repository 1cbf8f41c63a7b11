package endpoint

import (
	"github.com/tollgate/tollgate/auth"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
)

// Endpoint represents an upstream API registered in the marketplace.
//
// The ID is the sole routing key: requests arrive on /proxy/{id}/... or
// /paid-proxy/{id}/... and everything after the id is appended to TargetURL.
type Endpoint struct {
	entity.Entity

	// ID is the unique TypeID for this endpoint.
	ID id.ID `json:"id"`

	// Name is a human label. No uniqueness constraint.
	Name string `json:"name"`

	// TargetURL is the absolute upstream base URL. The request path suffix
	// and query string are appended at forward time.
	TargetURL string `json:"target_url"`

	// Auth is the upstream credential configuration. The credential value
	// itself is never serialized.
	Auth auth.Config `json:"auth"`

	// RequiresPayment gates this endpoint behind the payment protocol.
	RequiresPayment bool `json:"requires_payment"`

	// Price is the per-request price in display format, e.g. "$0.001".
	// Required (and validated) when RequiresPayment is true.
	Price string `json:"price,omitempty"`

	// PayoutAddress receives settled payment for this endpoint.
	// Required when RequiresPayment is true.
	PayoutAddress string `json:"payout_address,omitempty"`

	// Enabled indicates whether the endpoint accepts proxy traffic.
	Enabled bool `json:"enabled"`

	// RateLimit is the maximum forwarded requests per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Paid reports whether the payment gate applies to this endpoint. The stored
// flag is authoritative: an endpoint reached via the paid routing prefix still
// bypasses the gate when it does not require payment.
func (e *Endpoint) Paid() bool {
	return e.RequiresPayment && e.PayoutAddress != ""
}
