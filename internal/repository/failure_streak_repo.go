package repository

import "context"

// FailureStreakRepository counts consecutive failed cycles per URL.
type FailureStreakRepository interface {
	// Increment bumps the streak for url and returns the new value.
	Increment(ctx context.Context, url string) (int64, error)
	// Reset clears the streak for url after a successful check.
	Reset(ctx context.Context, url string) error
}
