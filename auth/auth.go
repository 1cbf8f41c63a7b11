// Package auth applies stored upstream credentials to outbound proxy requests.
//
// Each registered endpoint carries an auth Config describing where its
// credential is injected: a named header, a bearer Authorization header, or a
// query-string parameter. The set of types is closed; anything else is
// rejected when the endpoint is registered.
package auth

import (
	"fmt"
	"net/http"
)

// Type is the closed set of upstream auth schemes.
type Type string

const (
	// TypeNone forwards the request without credentials.
	TypeNone Type = "none"

	// TypeHeader sets a named request header to the credential value.
	TypeHeader Type = "header"

	// TypeBearer sets "Authorization: Bearer <value>".
	TypeBearer Type = "bearer"

	// TypeQueryParam sets a named query-string parameter on the upstream URL.
	TypeQueryParam Type = "query_param"
)

// ParseType validates a string against the closed auth type set.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeNone, TypeHeader, TypeBearer, TypeQueryParam:
		return t, nil
	default:
		return "", fmt.Errorf("auth: unknown auth type %q", s)
	}
}

// Config is an endpoint's upstream credential configuration.
type Config struct {
	// Type selects the injection point.
	Type Type `json:"type"`

	// Key names the header or query parameter. Required for TypeHeader and
	// TypeQueryParam, empty otherwise.
	Key string `json:"key,omitempty"`

	// Value is the credential itself. Never serialized.
	Value string `json:"-"`
}

// Validate checks the cross-field invariants of a Config. It is called at
// registration time so that a malformed config can never reach the proxy
// pipeline.
func (c Config) Validate() error {
	switch c.Type {
	case TypeNone:
		if c.Key != "" || c.Value != "" {
			return fmt.Errorf("auth: type %q must not carry a key or value", c.Type)
		}
	case TypeBearer:
		if c.Value == "" {
			return fmt.Errorf("auth: type %q requires a value", c.Type)
		}
		if c.Key != "" {
			return fmt.Errorf("auth: type %q must not carry a key", c.Type)
		}
	case TypeHeader, TypeQueryParam:
		if c.Key == "" {
			return fmt.Errorf("auth: type %q requires a key", c.Type)
		}
		if c.Value == "" {
			return fmt.Errorf("auth: type %q requires a value", c.Type)
		}
	default:
		return fmt.Errorf("auth: unknown auth type %q", c.Type)
	}
	return nil
}

// Apply injects the credential into an outbound request. The server-side
// credential always wins: an identically named header or query parameter
// forwarded from the client is overwritten, never merged.
//
// Apply never logs or returns the credential value. A Config whose Type is
// outside the closed set indicates corrupted registration data; Apply reports
// it as an error so the caller can fail the request as a configuration fault.
func (c Config) Apply(req *http.Request) error {
	switch c.Type {
	case TypeNone:
		return nil
	case TypeHeader:
		req.Header.Set(c.Key, c.Value)
		return nil
	case TypeBearer:
		req.Header.Set("Authorization", "Bearer "+c.Value)
		return nil
	case TypeQueryParam:
		q := req.URL.Query()
		q.Set(c.Key, c.Value)
		req.URL.RawQuery = q.Encode()
		return nil
	default:
		return fmt.Errorf("auth: unknown auth type %q", c.Type)
	}
}
