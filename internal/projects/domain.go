// Package projects tracks multi-shipment engagements (project cargo,
// recurring lanes) on the shared order lifecycle.
package projects

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Project is one customer engagement spanning multiple job orders.
type Project struct {
	ID         int64
	UUID       uuid.UUID
	Number     string
	CustomerID int64
	Name       string
	Currency   string
	Budget     decimal.Decimal
	StartDate  *time.Time
	EndDate    *time.Time
	Status     workflow.Status

	ConfirmedBy *int64
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	ResolvedAt  *time.Time

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMachine declares the project lifecycle.
func NewMachine() *workflow.Machine[*Project] {
	return workflow.NewOrderMachine("project",
		workflow.OrderPermissions{
			Confirm:  rbac.PermProjectConfirm,
			Progress: rbac.PermProjectProgress,
			Hold:     rbac.PermProjectHold,
			Complete: rbac.PermProjectComplete,
			Cancel:   rbac.PermProjectCancel,
		},
		func(p *Project) workflow.Status { return p.Status },
		func(p *Project, s workflow.Status) { p.Status = s },
	)
}
