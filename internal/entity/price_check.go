package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceCheck mirrors the `price_checks` PostgreSQL table schema.
type PriceCheck struct {
	ID            int64
	RunID         string
	URL           string
	Status        Status
	PreviousPrice decimal.NullDecimal
	Price         decimal.NullDecimal
	ErrorKind     string
	ErrorMessage  string
	Attempts      int
	DurationMS    int64
	CheckedAt     time.Time
}
