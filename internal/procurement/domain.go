// Package procurement implements purchase orders toward vendors (truckers,
// shipping lines, depots). Purchase orders follow the shared order
// lifecycle.
package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Line is one procured cost item.
type Line struct {
	ID          int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// PurchaseOrder is a commitment to buy vendor services.
type PurchaseOrder struct {
	ID         int64
	UUID       uuid.UUID
	Number     string
	VendorID   int64
	JobOrderID *int64
	Currency   string
	Status     workflow.Status
	Subtotal   decimal.Decimal
	Lines      []Line

	ConfirmedBy *int64
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	ResolvedAt  *time.Time

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMachine declares the purchase order lifecycle.
func NewMachine() *workflow.Machine[*PurchaseOrder] {
	return workflow.NewOrderMachine("purchase_order",
		workflow.OrderPermissions{
			Confirm:  rbac.PermPurchaseConfirm,
			Progress: rbac.PermPurchaseProgress,
			Hold:     rbac.PermPurchaseHold,
			Complete: rbac.PermPurchaseComplete,
			Cancel:   rbac.PermPurchaseCancel,
		},
		func(p *PurchaseOrder) workflow.Status { return p.Status },
		func(p *PurchaseOrder, s workflow.Status) { p.Status = s },
	)
}
