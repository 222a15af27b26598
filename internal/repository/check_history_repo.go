package repository

import (
	"context"

	"github.com/user/pricewatch/internal/entity"
)

// CheckHistoryRepository defines the interface for storing per-cycle check outcomes.
type CheckHistoryRepository interface {
	// SaveBatch appends the outcomes of one cycle.
	SaveBatch(ctx context.Context, checks []entity.PriceCheck) error
	// FindByURL returns the most recent checks for url, newest first.
	FindByURL(ctx context.Context, url string, limit int) ([]*entity.PriceCheck, error)
}
