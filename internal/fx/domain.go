// Package fx resolves currency exchange rates against the base currency.
// Rates are stored with an effective date; resolution picks the latest
// active rate whose effective date is on or before the requested date.
package fx

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
)

// ErrRateNotFound indicates no active rate exists on or before the
// requested date for the currency.
var ErrRateNotFound = fmt.Errorf("%w: exchange rate", httpx.ErrNotFound)

// ExchangeRate is one quoted rate: 1 unit of Currency equals Rate units of
// the base currency, effective from ValidFrom until superseded.
type ExchangeRate struct {
	ID        int64
	Currency  string
	Rate      decimal.Decimal
	ValidFrom time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
