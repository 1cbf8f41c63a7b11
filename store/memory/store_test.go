package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/auth"
	"github.com/tollgate/tollgate/endpoint"
	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
	"github.com/tollgate/tollgate/usage"
)

func ctx() context.Context { return context.Background() }

func newEndpoint(name string) *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:    entity.New(),
		ID:        id.NewEndpointID(),
		Name:      name,
		TargetURL: "https://api.example.com",
		Auth:      auth.Config{Type: auth.TypeNone},
		Enabled:   true,
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, tollgate.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

func TestEndpointCRUD(t *testing.T) {
	s := New()
	ep := newEndpoint("weather")

	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "weather" {
		t.Fatalf("expected name weather, got %q", got.Name)
	}

	got.TargetURL = "https://api.example.com/v2"
	if err := s.UpdateEndpoint(ctx(), got); err != nil {
		t.Fatal(err)
	}
	updated, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.TargetURL != "https://api.example.com/v2" {
		t.Fatalf("update not persisted, got %q", updated.TargetURL)
	}

	if err := s.DeleteEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetEndpoint(ctx(), ep.ID); !errors.Is(err, tollgate.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestEndpointNotFound(t *testing.T) {
	s := New()
	missing := id.NewEndpointID()

	if _, err := s.GetEndpoint(ctx(), missing); !errors.Is(err, tollgate.ErrEndpointNotFound) {
		t.Fatalf("get: expected ErrEndpointNotFound, got %v", err)
	}
	if err := s.UpdateEndpoint(ctx(), newEndpoint("x")); !errors.Is(err, tollgate.ErrEndpointNotFound) {
		t.Fatalf("update: expected ErrEndpointNotFound, got %v", err)
	}
	if err := s.DeleteEndpoint(ctx(), missing); !errors.Is(err, tollgate.ErrEndpointNotFound) {
		t.Fatalf("delete: expected ErrEndpointNotFound, got %v", err)
	}
	if err := s.SetEnabled(ctx(), missing, false); !errors.Is(err, tollgate.ErrEndpointNotFound) {
		t.Fatalf("set enabled: expected ErrEndpointNotFound, got %v", err)
	}
}

func TestListEndpoints(t *testing.T) {
	s := New()

	for i := 0; i < 5; i++ {
		ep := newEndpoint("ep-" + strconv.Itoa(i))
		ep.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		if i%2 == 0 {
			ep.Enabled = false
		}
		if err := s.CreateEndpoint(ctx(), ep); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListEndpoints(ctx(), endpoint.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 endpoints, got %d", len(all))
	}
	// Oldest first.
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Fatal("expected ascending created_at order")
		}
	}

	enabled := true
	active, err := s.ListEndpoints(ctx(), endpoint.ListOpts{Enabled: &enabled})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 enabled endpoints, got %d", len(active))
	}

	page, err := s.ListEndpoints(ctx(), endpoint.ListOpts{Offset: 3, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 endpoints after offset 3, got %d", len(page))
	}

	empty, err := s.ListEndpoints(ctx(), endpoint.ListOpts{Offset: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestSetEnabled(t *testing.T) {
	s := New()
	ep := newEndpoint("toggle")
	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	if err := s.SetEnabled(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Fatal("expected endpoint disabled")
	}
}

// ──────────────────────────────────────────────────
// usage.Store
// ──────────────────────────────────────────────────

func TestCalls(t *testing.T) {
	s := New()
	epID := id.NewEndpointID()
	otherID := id.NewEndpointID()

	for i := 0; i < 3; i++ {
		rec := &usage.Record{
			Entity:     entity.New(),
			ID:         id.NewCallID(),
			EndpointID: epID,
			Method:     "GET",
			StatusCode: 200,
		}
		rec.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		if err := s.CreateCall(ctx(), rec); err != nil {
			t.Fatal(err)
		}
	}
	other := &usage.Record{Entity: entity.New(), ID: id.NewCallID(), EndpointID: otherID}
	if err := s.CreateCall(ctx(), other); err != nil {
		t.Fatal(err)
	}

	calls, err := s.ListCalls(ctx(), epID, usage.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	// Newest first.
	for i := 1; i < len(calls); i++ {
		if calls[i].CreatedAt.After(calls[i-1].CreatedAt) {
			t.Fatal("expected descending created_at order")
		}
	}

	total, err := s.CountCalls(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 {
		t.Fatalf("expected 4 total calls, got %d", total)
	}
}

// ──────────────────────────────────────────────────
// payment.ProofStore
// ──────────────────────────────────────────────────

func TestMarkProofUsed(t *testing.T) {
	s := New()

	if err := s.MarkProofUsed(ctx(), "digest-1", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkProofUsed(ctx(), "digest-1", time.Hour); !errors.Is(err, tollgate.ErrProofReused) {
		t.Fatalf("expected ErrProofReused, got %v", err)
	}
	// A different digest is independent.
	if err := s.MarkProofUsed(ctx(), "digest-2", time.Hour); err != nil {
		t.Fatal(err)
	}
}

func TestMarkProofUsed_Expiry(t *testing.T) {
	s := New()

	if err := s.MarkProofUsed(ctx(), "short-lived", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	// The window lapsed, the digest is acceptable again.
	if err := s.MarkProofUsed(ctx(), "short-lived", time.Hour); err != nil {
		t.Fatalf("expected reuse allowed after expiry, got %v", err)
	}
}

func TestMarkProofUsed_Concurrent(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	results := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.MarkProofUsed(ctx(), "contested", time.Hour)
		}()
	}
	wg.Wait()
	close(results)

	var wins, reuses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, tollgate.ErrProofReused):
			reuses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
	if reuses != 49 {
		t.Fatalf("expected 49 reuse errors, got %d", reuses)
	}
}
