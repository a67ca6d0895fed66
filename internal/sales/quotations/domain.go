// Package quotations implements the freight quotation lifecycle: drafted,
// sent to the customer, then accepted, cancelled or expired. An accepted
// quotation is consumed exactly once by sales order generation.
package quotations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Quotation statuses.
const (
	StatusDraft     workflow.Status = "DRAFT"
	StatusSent      workflow.Status = "SENT"
	StatusAccepted  workflow.Status = "ACCEPTED"
	StatusExpired   workflow.Status = "EXPIRED"
	StatusCancelled workflow.Status = "CANCELLED"
	StatusOrdered   workflow.Status = "ORDERED"
)

// Line is one quoted charge.
type Line struct {
	ID          int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	Deleted     bool
}

// Quotation is a freight quotation document.
type Quotation struct {
	ID          int64
	UUID        uuid.UUID
	Number      string
	CustomerID  int64
	ServiceName string
	Origin      string
	Destination string
	Currency    string
	ValidUntil  time.Time
	Status      workflow.Status
	Subtotal    decimal.Decimal
	Lines       []Line

	SentBy     *int64
	SentAt     *time.Time
	AcceptedBy *int64
	AcceptedAt *time.Time
	ResolvedAt *time.Time

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueForExpiry reports whether a sent quotation's validity has lapsed.
func (q *Quotation) DueForExpiry(now time.Time) bool {
	return q.Status == StatusSent && q.ValidUntil.Before(truncateDay(now))
}

// RecalcSubtotal rounds each live line and sums them.
func (q *Quotation) RecalcSubtotal() {
	subtotal := decimal.Zero
	for i := range q.Lines {
		if q.Lines[i].Deleted {
			continue
		}
		q.Lines[i].Amount = money.RoundCurrency(q.Lines[i].Quantity.Mul(q.Lines[i].UnitPrice))
		subtotal = subtotal.Add(q.Lines[i].Amount)
	}
	q.Subtotal = subtotal
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NewMachine declares the quotation lifecycle. EXPIRE is system-only: the
// background sweep moves overdue SENT quotations, never a user action.
func NewMachine(now func() time.Time) *workflow.Machine[*Quotation] {
	return workflow.New("quotation", StatusDraft,
		func(q *Quotation) workflow.Status { return q.Status },
		func(q *Quotation, s workflow.Status) { q.Status = s },
	).
		Permit(StatusDraft, StatusSent).
		Permit(StatusSent, StatusAccepted, StatusCancelled, StatusExpired).
		Permit(StatusAccepted, StatusOrdered).
		Require(StatusDraft, StatusSent, rbac.PermQuotationSend).
		Require(StatusSent, StatusAccepted, rbac.PermQuotationAccept).
		Require(StatusSent, StatusCancelled, rbac.PermQuotationCancel).
		Require(StatusAccepted, StatusOrdered, rbac.PermQuotationOrder).
		SystemOnly(StatusSent, StatusExpired).
		Guard(StatusSent, StatusExpired, "quotation.validity_lapsed", func(ctx context.Context, q *Quotation) error {
			if !q.DueForExpiry(now()) {
				return workflow.NewGuardError("quotation.validity_lapsed", "quotation %s is still valid until %s", q.Number, q.ValidUntil.Format("2006-01-02"))
			}
			return nil
		})
}
