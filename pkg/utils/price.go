package utils

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrNoDigits   = errors.New("no digits in text")
	ErrNotNumeric = errors.New("text is not a single amount")

	// An optional currency code on either side of one grouped number, once
	// currency symbols and whitespace are gone.
	amountPattern = regexp.MustCompile(`^(?:\p{L}{1,3}\.?)?([0-9](?:[0-9.,']*[0-9])?)(?:\p{L}{1,3}\.?)?$`)
	digits        = regexp.MustCompile(`[0-9]`)
)

// ParseAmount reads a monetary amount such as "$1,299.00", "1.299,00 €",
// "USD 45" or "CHF 1'250.50". Currency symbols, a currency code and
// surrounding whitespace are allowed; anything else makes the text
// ErrNotNumeric.
func ParseAmount(text string) (decimal.Decimal, error) {
	if !digits.MatchString(text) {
		return decimal.Zero, ErrNoDigits
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	m := amountPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return decimal.Zero, ErrNotNumeric
	}
	return decimal.NewFromString(normalizeSeparators(strings.ReplaceAll(m[1], "'", "")))
}

// normalizeSeparators leaves a single '.' decimal point. A trailing comma
// followed by exactly two digits is a decimal comma; any other comma groups
// thousands.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	if lastComma > lastDot && len(s)-lastComma-1 == 2 {
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	}
	return strings.ReplaceAll(s, ",", "")
}

// FormatAmount renders d with at least two decimals and never rounds.
func FormatAmount(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	return d.StringFixed(places)
}
