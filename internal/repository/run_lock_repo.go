package repository

import (
	"context"
	"time"
)

// RunLockRepository guards against overlapping check cycles.
type RunLockRepository interface {
	// Acquire takes the lock for ttl. It returns false when another holder has it.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	// Release drops the lock if this holder still owns it.
	Release(ctx context.Context) error
}
