package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestApplyOKReplacesPrice(t *testing.T) {
	p := TrackedProduct{Row: 0, URL: "https://shop.test/a", Price: decimal.NewNullDecimal(decimal.RequireFromString("10.00"))}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p.Apply(Succeeded(p, decimal.RequireFromString("12.00"), at))

	if p.Status != StatusOK {
		t.Fatalf("status = %q, want ok", p.Status)
	}
	if !p.Price.Decimal.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("price = %s, want 12", p.Price.Decimal)
	}
	if !p.LastChecked.Equal(at) {
		t.Fatalf("last checked = %v, want %v", p.LastChecked, at)
	}
	if !p.PriceWasChanged {
		t.Fatal("10 -> 12 should mark the price as changed")
	}

	p.Apply(Succeeded(p, decimal.RequireFromString("12.00"), at))
	if p.PriceWasChanged {
		t.Fatal("same price should clear the changed flag")
	}
}

func TestApplyErrorKeepsPrice(t *testing.T) {
	p := TrackedProduct{Price: decimal.NewNullDecimal(decimal.RequireFromString("10.00")), PriceWasChanged: true}
	at := time.Now()

	p.Apply(Failed(p, errors.New("boom"), at))

	if p.Status != StatusError {
		t.Fatalf("status = %q, want error", p.Status)
	}
	if !p.Price.Decimal.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("price changed on error: %s", p.Price.Decimal)
	}
	if !p.LastChecked.Equal(at) {
		t.Fatalf("last checked not updated")
	}
	if !p.PriceWasChanged {
		t.Fatal("a failed check must keep the previous changed flag")
	}
}

func TestPriceChanged(t *testing.T) {
	tests := []struct {
		name   string
		stored decimal.NullDecimal
		next   string
		want   bool
	}{
		{name: "no stored price", stored: decimal.NullDecimal{}, next: "5", want: false},
		{name: "equal with different scale", stored: decimal.NewNullDecimal(decimal.RequireFromString("10.00")), next: "10", want: false},
		{name: "different", stored: decimal.NewNullDecimal(decimal.RequireFromString("10.00")), next: "9.99", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TrackedProduct{Price: tt.stored}
			if got := p.PriceChanged(decimal.RequireFromString(tt.next)); got != tt.want {
				t.Fatalf("PriceChanged = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"ok":      StatusOK,
		" OK ":    StatusOK,
		"error":   StatusError,
		"fail":    StatusError,
		"":        StatusUnknown,
		"unknown": StatusUnknown,
		"weird":   StatusUnknown,
	}
	for raw, want := range tests {
		if got := ParseStatus(raw); got != want {
			t.Errorf("ParseStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
