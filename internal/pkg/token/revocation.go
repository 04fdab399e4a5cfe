package token

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/naturesense/naturesense/internal/pkg/cache"
)

const revokedKeyPrefix = "token:revoked:"

// Revoke places a token ID on the denylist until the token would have
// expired anyway. Used by logout.
func Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return cache.GetClient().Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether a token ID is on the denylist.
func IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := cache.GetClient().Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}
