// Package money holds the fixed-point helpers every monetary computation
// must route through. Amounts are scale 2, exchange rates scale 6 and
// quantities scale 3, all rounded half-up. Raw float arithmetic on money is
// not allowed anywhere downstream.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// BaseCurrency is the reporting currency all foreign totals convert into.
const BaseCurrency = "IDR"

// ErrInvalidNumberFormat indicates textual input that cannot be parsed as a
// decimal number.
var ErrInvalidNumberFormat = errors.New("invalid number format")

// One is the pinned exchange rate for base-currency documents.
var One = decimal.New(1, 0)

// RoundCurrency rounds to 2 decimal places, half-up.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundRate rounds to 6 decimal places, half-up.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(6)
}

// RoundQuantity rounds to 3 decimal places, half-up.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(3)
}

// Parse converts user-entered numeric text into a decimal. Both the
// thousands-dot/decimal-comma form ("1.234,56") and the plain decimal-dot
// form ("1234.56") are accepted; the separator appearing last is taken as
// the decimal point. Empty input parses as zero.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	if s == "" {
		return decimal.Zero, nil
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidNumberFormat, s)
	}
	return d, nil
}

// ValidCurrencyCode reports whether code is a well-formed ISO 4217 currency
// code.
func ValidCurrencyCode(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}

// IsBase reports whether code is the base (reporting) currency.
func IsBase(code string) bool {
	return strings.ToUpper(strings.TrimSpace(code)) == BaseCurrency
}
