package redis

import (
	"context"
	"fmt"
	"time"

	tollgate "github.com/tollgate/tollgate"
)

// MarkProofUsed consumes a payment proof digest. SETNX with TTL gives the
// atomicity: exactly one caller per digest wins, later callers within the
// TTL observe ErrProofReused.
func (s *Store) MarkProofUsed(ctx context.Context, digest string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, entityKey(prefixProof, digest), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("tollgate/redis: mark proof used: %w", err)
	}
	if !ok {
		return tollgate.ErrProofReused
	}
	return nil
}
