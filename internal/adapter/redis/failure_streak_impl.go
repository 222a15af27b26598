package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/pricewatch/pkg/utils"
)

const (
	streakKeyPrefix = "pricewatch:streak:"
	streakTTL       = 30 * 24 * time.Hour
)

// FailureStreakRepoImpl counts consecutive failed checks per URL.
type FailureStreakRepoImpl struct {
	client *redis.Client
}

// NewFailureStreakRepo creates a new instance of FailureStreakRepoImpl.
func NewFailureStreakRepo(client *redis.Client) *FailureStreakRepoImpl {
	return &FailureStreakRepoImpl{client: client}
}

// streakKey creates a consistent Redis key for a given URL by hashing it.
func streakKey(url string) string {
	return fmt.Sprintf("%s%s", streakKeyPrefix, utils.HashURL(url))
}

// Increment bumps the streak for url and returns the new value. The key
// expires if the URL stops being checked.
func (r *FailureStreakRepoImpl) Increment(ctx context.Context, url string) (int64, error) {
	key := streakKey(url)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, streakTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Reset clears the streak after a successful check.
func (r *FailureStreakRepoImpl) Reset(ctx context.Context, url string) error {
	return r.client.Del(ctx, streakKey(url)).Err()
}
