package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedProduct is one row of the tracked-product dataset.
type TrackedProduct struct {
	// Row is the zero-based position of the record in the dataset. It is the
	// stable identity used to attribute task results back to the row.
	Row         int
	URL         string
	Locator     string
	Price       decimal.NullDecimal
	LastChecked time.Time
	Status      Status

	// PriceWasChanged records whether the last successful check moved the price.
	PriceWasChanged bool
}

// Apply folds a task result into the product. The price is only replaced when
// the result is ok; on error it is left untouched.
func (p *TrackedProduct) Apply(r TaskResult) {
	p.LastChecked = r.Timestamp
	p.Status = r.Status
	if r.Status == StatusOK && r.Price.Valid {
		p.PriceWasChanged = p.PriceChanged(r.Price.Decimal)
		p.Price = r.Price
	}
}

// PriceChanged reports whether newPrice differs from the stored price. A
// product without a known price has nothing to change from.
func (p *TrackedProduct) PriceChanged(newPrice decimal.Decimal) bool {
	if !p.Price.Valid {
		return false
	}
	return !p.Price.Decimal.Equal(newPrice)
}
