package job

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
)

// Fee period statuses. A period is editable while DRAFT; approval freezes
// it for payroll.
const (
	FeePeriodDraft    = "DRAFT"
	FeePeriodApproved = "APPROVED"
	FeePeriodPaid     = "PAID"
)

// ErrFeePeriodFrozen indicates a regenerate or edit on an approved or paid
// period.
var ErrFeePeriodFrozen = fmt.Errorf("%w: fee period is approved or paid", httpx.ErrDuplicate)

// FeeLine is one salesperson's fee over a completed job.
type FeeLine struct {
	ID         int64
	JobOrderID int64
	JobNumber  string
	EmployeeID int64
	Base       decimal.Decimal
	Percent    decimal.Decimal
	Amount     decimal.Decimal
}

// FeePeriod is the monthly sales-fee sheet: one per (year, month), built
// from the jobs completed in that month.
type FeePeriod struct {
	ID         int64
	Year       int
	Month      time.Month
	Status     string
	Total      decimal.Decimal
	Lines      []FeeLine
	ApprovedBy *int64
	ApprovedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Frozen reports whether the period can no longer be regenerated.
func (p *FeePeriod) Frozen() bool {
	return p.Status != FeePeriodDraft
}

// Recalc rounds each line fee and recomputes the header total from lines.
func (p *FeePeriod) Recalc() {
	total := decimal.Zero
	for i := range p.Lines {
		l := &p.Lines[i]
		l.Amount = money.RoundCurrency(l.Base.Mul(l.Percent).Div(decimal.NewFromInt(100)))
		total = total.Add(l.Amount)
	}
	p.Total = total
}
