package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/fx"
	"github.com/samudra-erp/samudra-erp/internal/money"
)

// RateResolver is the slice of the fx resolver the calculator needs.
type RateResolver interface {
	Resolve(ctx context.Context, currency string, asOf time.Time) (decimal.Decimal, error)
}

// Calculator recomputes invoice aggregates from its lines. It writes
// amounts only; the invoice status is never touched here.
type Calculator struct {
	rates RateResolver
}

// NewCalculator builds the totals calculator.
func NewCalculator(rates RateResolver) *Calculator {
	return &Calculator{rates: rates}
}

var oneHundred = decimal.NewFromInt(100)

// Calculate rounds every line, sums the non-deleted lines and their taxes,
// and resolves the IDR total. The grand total is subtotal plus tax total
// exactly; only the per-line figures and the IDR conversion round.
// Calling it again on unchanged lines yields identical aggregates.
func (c *Calculator) Calculate(ctx context.Context, inv *Invoice, asOf time.Time) error {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	for i := range inv.Lines {
		l := &inv.Lines[i]
		if l.Deleted {
			continue
		}
		l.Amount = money.RoundCurrency(l.Quantity.Mul(l.UnitPrice))
		subtotal = subtotal.Add(l.Amount)
		for j := range l.Taxes {
			t := &l.Taxes[j]
			t.Amount = money.RoundCurrency(l.Amount.Mul(t.RatePercent).Div(oneHundred))
			taxTotal = taxTotal.Add(t.Amount)
		}
	}
	inv.Subtotal = subtotal
	inv.TaxTotal = taxTotal
	inv.GrandTotal = subtotal.Add(taxTotal)

	if money.IsBase(inv.Currency) {
		inv.ExchangeRate = money.RoundRate(money.One)
		inv.TotalIDR = inv.GrandTotal
		return nil
	}

	rate, err := c.rates.Resolve(ctx, inv.Currency, asOf)
	if errors.Is(err, fx.ErrRateNotFound) {
		return fmt.Errorf("%w: %s as of %s", ErrMissingExchangeRate, inv.Currency, asOf.Format("2006-01-02"))
	}
	if err != nil {
		return fmt.Errorf("billing: resolve rate %s: %w", inv.Currency, err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("%w: %s resolved to %s", ErrMissingExchangeRate, inv.Currency, rate)
	}
	inv.ExchangeRate = rate
	inv.TotalIDR = money.RoundCurrency(inv.GrandTotal.Mul(rate))
	return nil
}
