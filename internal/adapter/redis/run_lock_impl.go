package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const runLockKey = "pricewatch:run-lock"

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLockRepoImpl is a single-holder lock shared by every process using the
// same Redis.
type RunLockRepoImpl struct {
	client *redis.Client
	token  string
}

// NewRunLockRepo creates a lock owned by this process.
func NewRunLockRepo(client *redis.Client) *RunLockRepoImpl {
	host, _ := os.Hostname()
	return &RunLockRepoImpl{
		client: client,
		token:  fmt.Sprintf("%s:%d:%d", host, os.Getpid(), time.Now().UnixNano()),
	}
}

// Acquire takes the lock for ttl. It reports false when someone else holds it.
func (r *RunLockRepoImpl) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, runLockKey, r.token, ttl).Result()
}

// Release drops the lock if it is still ours.
func (r *RunLockRepoImpl) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, r.client, []string{runLockKey}, r.token).Err()
}
