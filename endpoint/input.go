package endpoint

// Input is the creation/update payload for endpoints.
type Input struct {
	// Name is a human label for the upstream API.
	Name string `json:"name"`

	// TargetURL is the absolute upstream base URL.
	TargetURL string `json:"target_url"`

	// AuthType is one of none, header, bearer, query_param.
	AuthType string `json:"auth_type"`

	// AuthKey names the header or query parameter for header/query_param auth.
	AuthKey string `json:"auth_key,omitempty"`

	// AuthValue is the upstream credential.
	AuthValue string `json:"auth_value,omitempty"`

	// RequiresPayment gates the endpoint behind the payment protocol.
	// Nil means false on create and "unchanged" on update.
	RequiresPayment *bool `json:"requires_payment,omitempty"`

	// Price is the per-request price in display format, e.g. "$0.001".
	Price string `json:"price,omitempty"`

	// PayoutAddress receives settled payment.
	PayoutAddress string `json:"payout_address,omitempty"`

	// RateLimit is the maximum forwarded requests per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for endpoint listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}
