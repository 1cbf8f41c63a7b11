// Package memory provides an in-memory Store implementation for unit testing
// and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
	tollstore "github.com/tollgate/tollgate/store"
	"github.com/tollgate/tollgate/usage"
)

// compile-time interface check.
var _ tollstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	endpoints  map[string]*endpoint.Endpoint // keyed by ID string
	calls      map[string]*usage.Record      // keyed by ID string
	usedProofs map[string]time.Time          // proof digest -> expiry

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		endpoints:  make(map[string]*endpoint.Endpoint),
		calls:      make(map[string]*usage.Record),
		usedProofs: make(map[string]time.Time),
	}
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return tollgate.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ep
	s.endpoints[ep.ID.String()] = &cp
	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(_ context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return nil, tollgate.ErrEndpointNotFound
	}
	cp := *ep
	return &cp, nil
}

// UpdateEndpoint modifies an existing endpoint.
func (s *Store) UpdateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[ep.ID.String()]; !ok {
		return tollgate.ErrEndpointNotFound
	}
	cp := *ep
	cp.UpdatedAt = time.Now().UTC()
	s.endpoints[ep.ID.String()] = &cp
	return nil
}

// DeleteEndpoint removes an endpoint.
func (s *Store) DeleteEndpoint(_ context.Context, epID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[epID.String()]; !ok {
		return tollgate.ErrEndpointNotFound
	}
	delete(s.endpoints, epID.String())
	return nil
}

// ListEndpoints returns registered endpoints, oldest first.
func (s *Store) ListEndpoints(_ context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*endpoint.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if opts.Enabled != nil && ep.Enabled != *opts.Enabled {
			continue
		}
		cp := *ep
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// SetEnabled enables or disables an endpoint without deleting it.
func (s *Store) SetEnabled(_ context.Context, epID id.ID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return tollgate.ErrEndpointNotFound
	}
	ep.Enabled = enabled
	ep.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// usage.Store
// ──────────────────────────────────────────────────

// CreateCall persists one call record.
func (s *Store) CreateCall(_ context.Context, rec *usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.calls[rec.ID.String()] = &cp
	return nil
}

// ListCalls returns call records for an endpoint, newest first.
func (s *Store) ListCalls(_ context.Context, epID id.ID, opts usage.ListOpts) ([]*usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*usage.Record, 0)
	for _, rec := range s.calls {
		if rec.EndpointID != epID {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyCallPagination(result, opts.Offset, opts.Limit), nil
}

// CountCalls returns the total number of recorded calls.
func (s *Store) CountCalls(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.calls)), nil
}

// ──────────────────────────────────────────────────
// payment.ProofStore
// ──────────────────────────────────────────────────

// MarkProofUsed records a proof digest as consumed. Exactly one concurrent
// caller per digest succeeds; the rest observe ErrProofReused.
func (s *Store) MarkProofUsed(_ context.Context, digest string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if expiry, ok := s.usedProofs[digest]; ok && now.Before(expiry) {
		return tollgate.ErrProofReused
	}

	// Opportunistically drop expired digests.
	for d, expiry := range s.usedProofs {
		if !now.Before(expiry) {
			delete(s.usedProofs, d)
		}
	}

	s.usedProofs[digest] = now.Add(ttl)
	return nil
}

func applyPagination(eps []*endpoint.Endpoint, offset, limit int) []*endpoint.Endpoint {
	if offset >= len(eps) {
		return nil
	}
	eps = eps[offset:]
	if limit > 0 && limit < len(eps) {
		eps = eps[:limit]
	}
	return eps
}

func applyCallPagination(recs []*usage.Record, offset, limit int) []*usage.Record {
	if offset >= len(recs) {
		return nil
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}
