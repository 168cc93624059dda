package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistKeyPrefix = "gatekeeper:revoked:"

// Denylist records revoked token IDs in Redis. Entries expire
// together with the token they revoke, so the set stays bounded by
// the refresh TTL.
type Denylist struct {
	client *redis.Client
}

// NewDenylist constructs a Denylist backed by the given client.
func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client}
}

// Revoke marks a token ID as revoked for the given duration.
func (d *Denylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired, nothing to record.
		return nil
	}
	if err := d.client.Set(ctx, denylistKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("tokens: revoke %s: %w", tokenID, err)
	}
	return nil
}

// IsRevoked reports whether the token ID has been revoked.
func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("tokens: denylist lookup: %w", err)
	}
	return n > 0, nil
}
