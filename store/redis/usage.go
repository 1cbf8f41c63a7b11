package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
	"github.com/tollgate/tollgate/usage"
)

// callModel is the JSON representation stored in Redis.
type callModel struct {
	ID            string    `json:"id"`
	EndpointID    string    `json:"endpoint_id"`
	Method        string    `json:"method"`
	RequestPath   string    `json:"request_path"`
	StatusCode    int       `json:"status_code"`
	Cost          string    `json:"cost,omitempty"`
	SettlementRef string    `json:"settlement_ref,omitempty"`
	LatencyMs     int       `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
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

func (s *Store) CreateCall(ctx context.Context, rec *usage.Record) error {
	m := toCallModel(rec)
	key := entityKey(prefixCall, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("tollgate/redis: create call: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zCallEP+m.EndpointID, goredis.Z{
		Score:  float64(m.CreatedAt.UnixNano()) / 1e9,
		Member: m.ID,
	})
	pipe.Incr(ctx, cCallsTotal)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tollgate/redis: create call indexes: %w", err)
	}
	return nil
}

func (s *Store) ListCalls(ctx context.Context, epID id.ID, opts usage.ListOpts) ([]*usage.Record, error) {
	// Newest first.
	ids, err := s.rdb.ZRevRange(ctx, zCallEP+epID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("tollgate/redis: list calls: %w", err)
	}

	result := make([]*usage.Record, 0, len(ids))
	for _, entryID := range ids {
		var m callModel
		if err := s.getEntity(ctx, entityKey(prefixCall, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		rec, err := fromCallModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountCalls(ctx context.Context) (int64, error) {
	n, err := s.rdb.Get(ctx, cCallsTotal).Int64()
	if err != nil {
		if isRedisNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("tollgate/redis: count calls: %w", err)
	}
	return n, nil
}
