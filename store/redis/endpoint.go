package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	tollgate "github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/auth"
	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
)

// endpointModel is the JSON representation stored in Redis.
type endpointModel struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	TargetURL       string            `json:"target_url"`
	AuthType        string            `json:"auth_type"`
	AuthKey         string            `json:"auth_key,omitempty"`
	AuthValue       string            `json:"auth_value,omitempty"`
	RequiresPayment bool              `json:"requires_payment"`
	Price           string            `json:"price,omitempty"`
	PayoutAddress   string            `json:"payout_address,omitempty"`
	Enabled         bool              `json:"enabled"`
	RateLimit       int               `json:"rate_limit"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	return &endpointModel{
		ID:              ep.ID.String(),
		Name:            ep.Name,
		TargetURL:       ep.TargetURL,
		AuthType:        string(ep.Auth.Type),
		AuthKey:         ep.Auth.Key,
		AuthValue:       ep.Auth.Value,
		RequiresPayment: ep.RequiresPayment,
		Price:           ep.Price,
		PayoutAddress:   ep.PayoutAddress,
		Enabled:         ep.Enabled,
		RateLimit:       ep.RateLimit,
		Metadata:        ep.Metadata,
		CreatedAt:       ep.CreatedAt,
		UpdatedAt:       ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	return &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        epID,
		Name:      m.Name,
		TargetURL: m.TargetURL,
		Auth: auth.Config{
			Type:  auth.Type(m.AuthType),
			Key:   m.AuthKey,
			Value: m.AuthValue,
		},
		RequiresPayment: m.RequiresPayment,
		Price:           m.Price,
		PayoutAddress:   m.PayoutAddress,
		Enabled:         m.Enabled,
		RateLimit:       m.RateLimit,
		Metadata:        m.Metadata,
	}, nil
}

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	key := entityKey(prefixEndpoint, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("tollgate/redis: create endpoint: %w", err)
	}

	err := s.rdb.ZAdd(ctx, zEndpointAll, goredis.Z{
		Score:  float64(m.CreatedAt.UnixNano()) / 1e9,
		Member: m.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("tollgate/redis: create endpoint index: %w", err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	var m endpointModel
	if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, tollgate.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("tollgate/redis: get endpoint: %w", err)
	}
	return fromEndpointModel(&m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	key := entityKey(prefixEndpoint, ep.ID.String())

	// Verify existence.
	var existing endpointModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isRedisNil(err) {
			return tollgate.ErrEndpointNotFound
		}
		return fmt.Errorf("tollgate/redis: update endpoint get: %w", err)
	}

	m := toEndpointModel(ep)
	m.UpdatedAt = time.Now().UTC()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("tollgate/redis: update endpoint: %w", err)
	}
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return tollgate.ErrEndpointNotFound
		}
		return fmt.Errorf("tollgate/redis: delete endpoint get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, zEndpointAll, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tollgate/redis: delete endpoint: %w", err)
	}
	return nil
}

func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	ids, err := s.rdb.ZRange(ctx, zEndpointAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("tollgate/redis: list endpoints: %w", err)
	}

	result := make([]*endpoint.Endpoint, 0, len(ids))
	for _, entryID := range ids {
		var m endpointModel
		if err := s.getEntity(ctx, entityKey(prefixEndpoint, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Enabled != nil && m.Enabled != *opts.Enabled {
			continue
		}
		ep, err := fromEndpointModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, ep)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return tollgate.ErrEndpointNotFound
		}
		return fmt.Errorf("tollgate/redis: set enabled get: %w", err)
	}

	m.Enabled = enabled
	m.UpdatedAt = time.Now().UTC()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("tollgate/redis: set enabled: %w", err)
	}
	return nil
}
