package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tollgate/tollgate/auth"
	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
	"github.com/tollgate/tollgate/usage"
)

type endpointModel struct {
	bun.BaseModel `bun:"table:tollgate_endpoints"`

	ID              string            `bun:"id,pk"`
	Name            string            `bun:"name,notnull"`
	TargetURL       string            `bun:"target_url,notnull"`
	AuthType        string            `bun:"auth_type,notnull"`
	AuthKey         string            `bun:"auth_key"`
	AuthValue       string            `bun:"auth_value"`
	RequiresPayment bool              `bun:"requires_payment,notnull"`
	Price           string            `bun:"price"`
	PayoutAddress   string            `bun:"payout_address"`
	Enabled         bool              `bun:"enabled,notnull"`
	RateLimit       int               `bun:"rate_limit"`
	Metadata        map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt       time.Time         `bun:"created_at,notnull"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull"`
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

type callModel struct {
	bun.BaseModel `bun:"table:tollgate_calls"`

	ID            string    `bun:"id,pk"`
	EndpointID    string    `bun:"endpoint_id,notnull"`
	Method        string    `bun:"method,notnull"`
	RequestPath   string    `bun:"request_path"`
	StatusCode    int       `bun:"status_code,notnull"`
	Cost          string    `bun:"cost"`
	SettlementRef string    `bun:"settlement_ref"`
	LatencyMs     int       `bun:"latency_ms"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func toCallModel(rec *usage.Record) *callModel {
	return &callModel{
		ID:            rec.ID.String(),
		EndpointID:    rec.EndpointID.String(),
		Method:        rec.Method,
		RequestPath:   rec.RequestPath,
		StatusCode:    rec.StatusCode,
		Cost:          rec.Cost,
		SettlementRef: rec.SettlementRef,
		LatencyMs:     rec.LatencyMs,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func fromCallModel(m *callModel) (*usage.Record, error) {
	callID, err := id.ParseCallID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse call ID %q: %w", m.ID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	return &usage.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            callID,
		EndpointID:    epID,
		Method:        m.Method,
		RequestPath:   m.RequestPath,
		StatusCode:    m.StatusCode,
		Cost:          m.Cost,
		SettlementRef: m.SettlementRef,
		LatencyMs:     m.LatencyMs,
	}, nil
}

type usedProofModel struct {
	bun.BaseModel `bun:"table:tollgate_used_proofs"`

	Digest    string    `bun:"digest,pk"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}
