// Package orders implements sales orders. An order is born from an
// accepted quotation (which it consumes) or drafted directly, then follows
// the shared confirm/progress/hold/complete lifecycle.
package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// ErrQuotationAlreadyOrdered indicates the quotation already produced a
// sales order.
var ErrQuotationAlreadyOrdered = fmt.Errorf("%w: quotation already has a sales order", httpx.ErrDuplicate)

// Line is one ordered charge, copied from the quotation at generation.
type Line struct {
	ID          int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// SalesOrder is a confirmed piece of customer business.
type SalesOrder struct {
	ID          int64
	UUID        uuid.UUID
	Number      string
	QuotationID *int64
	CustomerID  int64
	ServiceName string
	Origin      string
	Destination string
	Currency    string
	Status      workflow.Status
	Subtotal    decimal.Decimal
	Lines       []Line

	ConfirmedBy *int64
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	ResolvedAt  *time.Time

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMachine declares the sales order lifecycle.
func NewMachine() *workflow.Machine[*SalesOrder] {
	return workflow.NewOrderMachine("sales_order",
		workflow.OrderPermissions{
			Confirm:  rbac.PermOrderConfirm,
			Progress: rbac.PermOrderProgress,
			Hold:     rbac.PermOrderHold,
			Complete: rbac.PermOrderComplete,
			Cancel:   rbac.PermOrderCancel,
		},
		func(o *SalesOrder) workflow.Status { return o.Status },
		func(o *SalesOrder, s workflow.Status) { o.Status = s },
	)
}
