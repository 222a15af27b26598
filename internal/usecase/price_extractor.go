package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/user/pricewatch/internal/repository"
	"github.com/user/pricewatch/pkg/utils"
)

var errNotPositive = errors.New("price must be positive")

// ExtractPrice makes a single attempt at reading the price rendered by the
// element behind locator. It waits up to timeout for the element to be
// visible.
func ExtractPrice(ctx context.Context, session repository.Session, locator string, timeout time.Duration) (decimal.Decimal, error) {
	el, err := session.WaitVisible(ctx, locator, timeout)
	if err != nil {
		return decimal.Zero, asNotFound(locator, err)
	}

	text, err := el.Text(ctx)
	if err != nil {
		return decimal.Zero, asNotFound(locator, err)
	}

	return ParsePrice(text)
}

func asNotFound(locator string, err error) error {
	var session repository.SessionError
	var notFound repository.ElementNotFoundError
	if errors.As(err, &session) || errors.As(err, &notFound) {
		return err
	}
	return repository.ElementNotFoundError{Locator: locator, Err: err}
}

// ParsePrice turns rendered price text such as "$1,299.00" or "1.299,00 €"
// into a decimal. The text must hold a single amount; stock banners, dates
// and promotions are a ParseError.
func ParsePrice(text string) (decimal.Decimal, error) {
	price, err := utils.ParseAmount(text)
	if err != nil {
		return decimal.Zero, repository.ParseError{Text: text, Err: err}
	}
	if !price.IsPositive() {
		return decimal.Zero, repository.ParseError{Text: text, Err: errNotPositive}
	}
	return price, nil
}
