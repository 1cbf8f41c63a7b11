// Package store defines the composite Store interface for all Tollgate
// persistence.
//
// Each subsystem defines its own store interface, and the aggregate Store
// composes them all. Backends implement the whole aggregate.
package store

import (
	"context"

	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/payment"
	"github.com/tollgate/tollgate/usage"
)

// Store is the aggregate persistence interface.
type Store interface {
	endpoint.Store
	usage.Store
	payment.ProofStore

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
