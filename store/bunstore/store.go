// Package bunstore provides a SQL Store implementation using the Bun ORM.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	tollgate "github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
	tollstore "github.com/tollgate/tollgate/store"
	"github.com/tollgate/tollgate/usage"
)

// compile-time interface check
var _ tollstore.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables using Bun's CreateTable.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*endpointModel)(nil),
		(*callModel)(nil),
		(*usedProofModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	// Create indexes.
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_tollgate_calls_endpoint ON tollgate_calls (endpoint_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_tollgate_used_proofs_expiry ON tollgate_used_proofs (expires_at)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Endpoint Store ====================

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", epID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tollgate.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tollgate.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*endpointModel)(nil)).
		Where("id = ?", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tollgate.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	q := s.db.NewSelect().Model(&models)
	if opts.Enabled != nil {
		q = q.Where("enabled = ?", *opts.Enabled)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*endpoint.Endpoint, len(models))
	for i := range models {
		ep, err := fromEndpointModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = ep
	}
	return result, nil
}

func (s *Store) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*endpointModel)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = ?", now).
		Where("id = ?", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tollgate.ErrEndpointNotFound
	}
	return nil
}

// ==================== Usage Store ====================

func (s *Store) CreateCall(ctx context.Context, rec *usage.Record) error {
	m := toCallModel(rec)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) ListCalls(ctx context.Context, epID id.ID, opts usage.ListOpts) ([]*usage.Record, error) {
	var models []callModel
	q := s.db.NewSelect().Model(&models).Where("endpoint_id = ?", epID.String())
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*usage.Record, len(models))
	for i := range models {
		rec, err := fromCallModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

func (s *Store) CountCalls(ctx context.Context) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*callModel)(nil)).
		Count(ctx)
	return int64(count), err
}

// ==================== Proof Store ====================

// MarkProofUsed consumes a payment proof digest. An INSERT guarded by
// ON CONFLICT DO NOTHING on the digest primary key gives the atomicity:
// exactly one caller per digest gets a row inserted.
func (s *Store) MarkProofUsed(ctx context.Context, digest string, ttl time.Duration) error {
	now := time.Now().UTC()

	// Reclaim rows whose window has lapsed so a digest can be accepted
	// again after expiry.
	if _, err := s.db.NewDelete().
		Model((*usedProofModel)(nil)).
		Where("digest = ?", digest).
		Where("expires_at <= ?", now).
		Exec(ctx); err != nil {
		return err
	}

	m := &usedProofModel{
		Digest:    digest,
		ExpiresAt: now.Add(ttl),
	}
	res, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (digest) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tollgate.ErrProofReused
	}
	return nil
}

// PurgeExpiredProofs removes proof digests whose reuse window has lapsed.
func (s *Store) PurgeExpiredProofs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*usedProofModel)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}
