package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskResult is produced by exactly one task per product per cycle and consumed
// once by the tracker to update the matching row.
type TaskResult struct {
	Row       int
	URL       string
	Timestamp time.Time
	Status    Status
	Price     decimal.NullDecimal
	Attempts  int
	Duration  time.Duration
	Err       error
}

// Succeeded builds an ok result.
func Succeeded(p TrackedProduct, price decimal.Decimal, at time.Time) TaskResult {
	return TaskResult{
		Row:       p.Row,
		URL:       p.URL,
		Timestamp: at,
		Status:    StatusOK,
		Price:     decimal.NewNullDecimal(price),
	}
}

// Failed builds an error result.
func Failed(p TrackedProduct, err error, at time.Time) TaskResult {
	return TaskResult{
		Row:       p.Row,
		URL:       p.URL,
		Timestamp: at,
		Status:    StatusError,
		Err:       err,
	}
}
