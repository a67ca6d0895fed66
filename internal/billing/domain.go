// Package billing implements customer invoices: generation from job
// orders, totals computation, the confirm-to-ledger handoff, and payment
// receipts. An invoice is the only document that leaves DRAFT by posting
// to the general ledger.
package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Invoice kinds. DP and FINAL are derived from a job order; REGULAR is a
// free-amount invoice against a job.
const (
	KindDP      = "DP"
	KindFinal   = "FINAL"
	KindRegular = "REGULAR"
)

// Invoice statuses. DRAFT leaves only by confirm; the paid states are
// driven exclusively by the payment recompute.
const (
	StatusDraft   = workflow.StatusDraft
	StatusSent    = workflow.Status("SENT")
	StatusPartial = workflow.Status("PARTIAL")
	StatusPaid    = workflow.Status("PAID")
)

// Receipt statuses.
const (
	ReceiptDraft  = "DRAFT"
	ReceiptPosted = "POSTED"
)

var (
	// ErrDuplicateDerivedDocument indicates the job already has a
	// down-payment invoice.
	ErrDuplicateDerivedDocument = fmt.Errorf("%w: job already has a down-payment invoice", httpx.ErrDuplicate)
	// ErrContractValueExceeded indicates the new invoice would push the
	// invoiced total past the job's contract value.
	ErrContractValueExceeded = fmt.Errorf("%w: invoiced total would exceed contract value", httpx.ErrValidation)
	// ErrMissingExchangeRate indicates a non-IDR invoice with no resolvable
	// positive rate.
	ErrMissingExchangeRate = fmt.Errorf("%w: no exchange rate for invoice currency", httpx.ErrValidation)
)

// LineTax is one tax applied to one invoice line, with the rate frozen at
// the time it was attached.
type LineTax struct {
	ID          int64
	TaxID       int64
	Name        string
	RatePercent decimal.Decimal
	Amount      decimal.Decimal
}

// Line is one invoiced charge.
type Line struct {
	ID          int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	Taxes       []LineTax
	Deleted     bool
}

// Invoice is a customer invoice.
type Invoice struct {
	ID         int64
	UUID       uuid.UUID
	Number     string
	Kind       string
	JobOrderID *int64
	CustomerID int64
	Currency   string

	// ExchangeRate is the rate to IDR captured at calculation time,
	// 1.000000 for IDR invoices.
	ExchangeRate decimal.Decimal

	Lines      []Line
	Subtotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal
	TotalIDR   decimal.Decimal
	AmountPaid decimal.Decimal

	Status workflow.Status

	ConfirmedBy *int64
	ConfirmedAt *time.Time

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentStatus derives the paid state from amounts. Only meaningful once
// the invoice has left DRAFT.
func (inv *Invoice) PaymentStatus() workflow.Status {
	switch {
	case !inv.AmountPaid.IsPositive():
		return StatusSent
	case inv.AmountPaid.LessThan(inv.GrandTotal):
		return StatusPartial
	default:
		return StatusPaid
	}
}

// Receivable reports whether a receipt may be posted against the invoice.
func (inv *Invoice) Receivable() bool {
	return inv.Status == StatusSent || inv.Status == StatusPartial
}

// Receipt is a customer payment against one invoice.
type Receipt struct {
	ID        int64
	UUID      uuid.UUID
	Number    string
	InvoiceID int64
	Amount    decimal.Decimal
	Method    string
	Reference string
	Status    string
	PostedBy  *int64
	PostedAt  *time.Time
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
