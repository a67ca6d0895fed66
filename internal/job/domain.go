// Package job implements freight job orders: the operational execution of
// a piece of customer business. A job carries the contract value billing
// draws against, the down-payment percentage, and the operational route
// details that end up on invoice descriptions.
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// JobOrder is one freight job.
type JobOrder struct {
	ID          int64
	UUID        uuid.UUID
	Number      string
	QuotationID *int64
	CustomerID  int64
	ServiceName string
	Pickup      string
	Delivery    string
	Cargo       string
	Currency    string

	// ContractValue is the agreed grand total billing may not exceed.
	ContractValue decimal.Decimal
	// DPPercent is the agreed down-payment percentage of the contract
	// value, zero when no DP was negotiated.
	DPPercent decimal.Decimal
	// CostTotal accumulates vendor costs; completion posts it as COGS.
	CostTotal decimal.Decimal

	// SalesEmployeeID and FeePercent feed the monthly sales-fee sheet
	// once the job completes.
	SalesEmployeeID int64
	FeePercent      decimal.Decimal

	Status workflow.Status

	ConfirmedBy *int64
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	ResolvedAt  *time.Time

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the job is past DRAFT and not terminated, i.e.
// real business that billing may invoice.
func (j *JobOrder) Active() bool {
	switch j.Status {
	case workflow.StatusConfirmed, workflow.StatusOnProgress, workflow.StatusOnHold, workflow.StatusCompleted:
		return true
	}
	return false
}

// EligibleForDP reports whether a down-payment invoice may be generated:
// the job is active and a DP percentage was agreed. Whether a DP invoice
// already exists is the generator's check, made under lock.
func (j *JobOrder) EligibleForDP() bool {
	return j.Active() && j.DPPercent.IsPositive()
}

// DownPaymentAmount is the DP invoice base amount.
func (j *JobOrder) DownPaymentAmount() decimal.Decimal {
	return money.RoundCurrency(j.ContractValue.Mul(j.DPPercent).Div(decimal.NewFromInt(100)))
}

// RemainingInvoiceable is the contract value not yet covered by linked
// invoices.
func (j *JobOrder) RemainingInvoiceable(invoiced decimal.Decimal) decimal.Decimal {
	return j.ContractValue.Sub(invoiced)
}

// Description renders the operational summary used as the single line on
// generated invoices. Operational fields only, never amounts.
func (j *JobOrder) Description() string {
	desc := fmt.Sprintf("%s - %s, %s to %s", j.Number, j.ServiceName, j.Pickup, j.Delivery)
	if j.Cargo != "" {
		desc += ", " + j.Cargo
	}
	return desc
}

// NewMachine declares the job order lifecycle.
func NewMachine() *workflow.Machine[*JobOrder] {
	return workflow.NewOrderMachine("job_order",
		workflow.OrderPermissions{
			Confirm:  rbac.PermJobConfirm,
			Progress: rbac.PermJobProgress,
			Hold:     rbac.PermJobHold,
			Complete: rbac.PermJobComplete,
			Cancel:   rbac.PermJobCancel,
		},
		func(j *JobOrder) workflow.Status { return j.Status },
		func(j *JobOrder, s workflow.Status) { j.Status = s },
	)
}
