package endpoint

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/tollgate/tollgate/auth"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
	"github.com/tollgate/tollgate/payment"
)

// Service provides endpoint registration and management.
//
// All cross-field invariants are enforced here, at registration time. The
// proxy pipeline assumes any endpoint it reads from the store is well formed.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new endpoint service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Create registers a new marketplace endpoint.
func (svc *Service) Create(ctx context.Context, in Input) (*Endpoint, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}
	if err := validateTargetURL(in.TargetURL); err != nil {
		return nil, err
	}

	authTypeRaw := in.AuthType
	if authTypeRaw == "" {
		authTypeRaw = string(auth.TypeNone)
	}
	authType, err := auth.ParseType(authTypeRaw)
	if err != nil {
		return nil, &ValidationError{Field: "auth_type", Message: "must be one of none, header, bearer, query_param"}
	}
	authCfg := auth.Config{Type: authType, Key: in.AuthKey, Value: in.AuthValue}
	if err := authCfg.Validate(); err != nil {
		return nil, &ValidationError{Field: "auth_key", Message: err.Error()}
	}

	ep := &Endpoint{
		Entity:          entity.New(),
		ID:              id.NewEndpointID(),
		Name:            in.Name,
		TargetURL:       in.TargetURL,
		Auth:            authCfg,
		RequiresPayment: in.RequiresPayment != nil && *in.RequiresPayment,
		Price:           in.Price,
		PayoutAddress:   in.PayoutAddress,
		Enabled:         true,
		RateLimit:       in.RateLimit,
		Metadata:        in.Metadata,
	}

	if err := validatePayment(ep); err != nil {
		return nil, err
	}

	if err := svc.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "endpoint registered",
		"endpoint_id", ep.ID,
		"name", ep.Name,
		"requires_payment", ep.RequiresPayment,
	)

	return ep, nil
}

// Get returns an endpoint by ID.
func (svc *Service) Get(ctx context.Context, epID id.ID) (*Endpoint, error) {
	return svc.store.GetEndpoint(ctx, epID)
}

// Update modifies an existing endpoint. Zero-valued input fields are left
// unchanged; the merged record is re-validated before persisting.
func (svc *Service) Update(ctx context.Context, epID id.ID, in Input) (*Endpoint, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		ep.Name = in.Name
	}
	if in.TargetURL != "" {
		if err := validateTargetURL(in.TargetURL); err != nil {
			return nil, err
		}
		ep.TargetURL = in.TargetURL
	}
	if in.AuthType != "" {
		authType, parseErr := auth.ParseType(in.AuthType)
		if parseErr != nil {
			return nil, &ValidationError{Field: "auth_type", Message: "must be one of none, header, bearer, query_param"}
		}
		authCfg := auth.Config{Type: authType, Key: in.AuthKey, Value: in.AuthValue}
		if validateErr := authCfg.Validate(); validateErr != nil {
			return nil, &ValidationError{Field: "auth_key", Message: validateErr.Error()}
		}
		ep.Auth = authCfg
	}
	if in.RequiresPayment != nil {
		ep.RequiresPayment = *in.RequiresPayment
	}
	if in.Price != "" {
		ep.Price = in.Price
	}
	if in.PayoutAddress != "" {
		ep.PayoutAddress = in.PayoutAddress
	}
	if in.RateLimit > 0 {
		ep.RateLimit = in.RateLimit
	}
	if in.Metadata != nil {
		ep.Metadata = in.Metadata
	}

	if err := validatePayment(ep); err != nil {
		return nil, err
	}

	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, err
	}

	return ep, nil
}

// Delete removes an endpoint.
func (svc *Service) Delete(ctx context.Context, epID id.ID) error {
	return svc.store.DeleteEndpoint(ctx, epID)
}

// List returns registered endpoints.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Endpoint, error) {
	return svc.store.ListEndpoints(ctx, opts)
}

// SetEnabled enables or disables an endpoint without deleting it.
func (svc *Service) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	return svc.store.SetEnabled(ctx, epID, enabled)
}

func validateTargetURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "target_url", Message: "required"}
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: "target_url", Message: "must be an absolute URL"}
	}
	return nil
}

// validatePayment enforces the paid-endpoint invariants: a payment-required
// endpoint must carry a payout address and a price that parses to a positive
// amount.
func validatePayment(ep *Endpoint) error {
	if !ep.RequiresPayment {
		return nil
	}
	if ep.PayoutAddress == "" {
		return &ValidationError{Field: "payout_address", Message: "required when requires_payment is true"}
	}
	if _, err := payment.ParsePrice(ep.Price); err != nil {
		return &ValidationError{Field: "price", Message: err.Error()}
	}
	return nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "endpoint validation: " + e.Field + ": " + e.Message
}
