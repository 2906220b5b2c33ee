// Package cache holds the Redis-backed helpers used around dispatch: sweep
// claims and the carrier message id index.
package cache

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const claimKeyPrefix = "sweep:claim:"

// releaseScript deletes the claim only when it is still owned by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Claim is a held lock on one customer.
type Claim struct {
	CustomerID uuid.UUID
	Token      string
}

// ClaimStore hands out short-lived exclusive claims so that overlapping
// sweeps never dispatch the same customer twice.
type ClaimStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClaimStore(client *redis.Client, ttl time.Duration) *ClaimStore {
	return &ClaimStore{client: client, ttl: ttl}
}

// Acquire tries to claim customerID. ok is false when another sweep holds it.
func (s *ClaimStore) Acquire(ctx context.Context, customerID uuid.UUID) (*Claim, bool, error) {
	token := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	ok, err := s.client.SetNX(ctx, claimKey(customerID), token, s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire claim: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	return &Claim{CustomerID: customerID, Token: token}, true, nil
}

// Release drops the claim if it has not expired and been taken over.
func (s *ClaimStore) Release(ctx context.Context, claim *Claim) error {
	if err := releaseScript.Run(ctx, s.client, []string{claimKey(claim.CustomerID)}, claim.Token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

func claimKey(customerID uuid.UUID) string {
	return claimKeyPrefix + customerID.String()
}
