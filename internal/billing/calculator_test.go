package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/samudra-erp/samudra-erp/internal/fx"
)

// fixedRates resolves from a static table, tracking lookups.
type fixedRates struct {
	rates map[string]string
	hits  int
}

func (f *fixedRates) Resolve(ctx context.Context, currency string, asOf time.Time) (decimal.Decimal, error) {
	f.hits++
	s, ok := f.rates[currency]
	if !ok {
		return decimal.Zero, fx.ErrRateNotFound
	}
	return decimal.RequireFromString(s), nil
}

func taxedLine(amountPerUnit string, qty int64, rate string) Line {
	return Line{
		Description: "Freight charge",
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.RequireFromString(amountPerUnit),
		Taxes:       []LineTax{{TaxID: 1, Name: "VAT", RatePercent: decimal.RequireFromString(rate)}},
	}
}

func TestCalculateTaxedTotals(t *testing.T) {
	calc := NewCalculator(&fixedRates{})
	inv := &Invoice{
		Currency: "IDR",
		Lines:    []Line{taxedLine("100.00", 1, "11"), taxedLine("100.00", 1, "11")},
	}

	require.NoError(t, calc.Calculate(context.Background(), inv, time.Now()))
	require.Equal(t, "200.00", inv.Subtotal.StringFixed(2))
	require.Equal(t, "22.00", inv.TaxTotal.StringFixed(2))
	require.Equal(t, "222.00", inv.GrandTotal.StringFixed(2))
	require.Equal(t, "222.00", inv.TotalIDR.StringFixed(2))
	require.Equal(t, "1.000000", inv.ExchangeRate.StringFixed(6))
}

func TestCalculateRoundsPerLineHalfUp(t *testing.T) {
	calc := NewCalculator(&fixedRates{})
	inv := &Invoice{
		Currency: "IDR",
		// 3 * 33.335 = 100.005, rounds up per line before summing.
		Lines: []Line{taxedLine("33.335", 3, "0")},
	}

	require.NoError(t, calc.Calculate(context.Background(), inv, time.Now()))
	require.Equal(t, "100.01", inv.Lines[0].Amount.StringFixed(2))
	require.Equal(t, "100.01", inv.Subtotal.StringFixed(2))
}

func TestCalculateSkipsDeletedLines(t *testing.T) {
	calc := NewCalculator(&fixedRates{})
	deleted := taxedLine("500.00", 1, "11")
	deleted.Deleted = true
	inv := &Invoice{
		Currency: "IDR",
		Lines:    []Line{taxedLine("100.00", 1, "11"), deleted},
	}

	require.NoError(t, calc.Calculate(context.Background(), inv, time.Now()))
	require.Equal(t, "100.00", inv.Subtotal.StringFixed(2))
	require.Equal(t, "11.00", inv.TaxTotal.StringFixed(2))
}

func TestCalculateForeignCurrency(t *testing.T) {
	calc := NewCalculator(&fixedRates{rates: map[string]string{"USD": "15750.500000"}})
	inv := &Invoice{
		Currency: "USD",
		Lines:    []Line{taxedLine("100.00", 2, "11")},
	}

	require.NoError(t, calc.Calculate(context.Background(), inv, time.Now()))
	require.Equal(t, "222.00", inv.GrandTotal.StringFixed(2))
	require.Equal(t, "15750.500000", inv.ExchangeRate.StringFixed(6))
	require.Equal(t, "3496611.00", inv.TotalIDR.StringFixed(2))
}

func TestCalculateMissingRate(t *testing.T) {
	calc := NewCalculator(&fixedRates{})
	inv := &Invoice{Currency: "EUR", Lines: []Line{taxedLine("100.00", 1, "0")}}

	err := calc.Calculate(context.Background(), inv, time.Now())
	require.ErrorIs(t, err, ErrMissingExchangeRate)
}

func TestCalculateZeroRateRejected(t *testing.T) {
	calc := NewCalculator(&fixedRates{rates: map[string]string{"SGD": "0"}})
	inv := &Invoice{Currency: "SGD", Lines: []Line{taxedLine("100.00", 1, "0")}}

	err := calc.Calculate(context.Background(), inv, time.Now())
	require.ErrorIs(t, err, ErrMissingExchangeRate)
}

func TestCalculateIdempotent(t *testing.T) {
	calc := NewCalculator(&fixedRates{rates: map[string]string{"USD": "15000"}})
	inv := &Invoice{Currency: "USD", Lines: []Line{taxedLine("123.45", 7, "11")}}

	require.NoError(t, calc.Calculate(context.Background(), inv, time.Now()))
	first := *inv
	require.NoError(t, calc.Calculate(context.Background(), inv, time.Now()))
	require.True(t, first.Subtotal.Equal(inv.Subtotal))
	require.True(t, first.TaxTotal.Equal(inv.TaxTotal))
	require.True(t, first.GrandTotal.Equal(inv.GrandTotal))
	require.True(t, first.TotalIDR.Equal(inv.TotalIDR))
}
