package repository

import (
	"context"

	"github.com/user/pricewatch/internal/entity"
)

// ProductStore defines the interface for the tracked-product dataset.
type ProductStore interface {
	// Load reads every row of the dataset. Row identities are assigned in file order.
	Load(ctx context.Context) ([]entity.TrackedProduct, error)
	// Save writes the full dataset back in one operation.
	Save(ctx context.Context, products []entity.TrackedProduct) error
}
