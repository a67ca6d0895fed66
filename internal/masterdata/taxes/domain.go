// Package taxes holds the tax master data referenced by invoice lines and
// service definitions. Rates are percentages at currency scale, e.g. 11.00
// for Indonesian VAT.
package taxes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tax is one tax rate definition.
type Tax struct {
	ID          int64
	Code        string
	Name        string
	RatePercent decimal.Decimal
	Category    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
