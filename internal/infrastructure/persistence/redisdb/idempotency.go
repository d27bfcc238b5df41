package redisdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	claimKeyPrefix = "paid:"

	// claimTTL outlives any plausible duplicate window of a load run. Claims
	// are never released early; a failed payment stays claimed so it cannot
	// be double-recorded by a late duplicate.
	claimTTL = 2 * time.Hour

	purgeScanCount = 512
)

// ClaimRegistry arbitrates which submission of a correlation id gets
// processed, backed by SETNX with a TTL.
type ClaimRegistry struct {
	client *redis.Client
}

func NewClaimRegistry(client *redis.Client) *ClaimRegistry {
	return &ClaimRegistry{client: client}
}

// TryClaim returns true iff this call created the claim key. Losing callers
// must drop the payment without contacting a processor.
func (r *ClaimRegistry) TryClaim(ctx context.Context, correlationID uuid.UUID) (bool, error) {
	created, err := r.client.SetNX(ctx, claimKeyPrefix+correlationID.String(), 1, claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim payment %s: %w", correlationID, err)
	}
	return created, nil
}

// PurgeClaims removes every claim key. Used between load runs together with
// the ledger purge.
func (r *ClaimRegistry) PurgeClaims(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, claimKeyPrefix+"*", purgeScanCount).Iterator()

	keys := make([]string, 0, purgeScanCount)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == purgeScanCount {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("purge claims: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan claims: %w", err)
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("purge claims: %w", err)
		}
	}

	return nil
}
