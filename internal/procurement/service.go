package procurement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// CreateInput describes a new purchase order draft.
type CreateInput struct {
	VendorID   int64
	JobOrderID *int64
	Currency   string
	Lines      []LineInput
}

// LineInput is one cost item on a draft.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Service handles purchase order business logic.
type Service struct {
	repo    Repository
	machine *workflow.Machine[*PurchaseOrder]
	alloc   *numbering.Allocator
	audit   shared.AuditRecorder
	now     func() time.Time
}

// NewService builds the purchase order service.
func NewService(repo Repository, alloc *numbering.Allocator, audit shared.AuditRecorder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, machine: NewMachine(), alloc: alloc, audit: audit, now: now}
}

// Create drafts a purchase order.
func (s *Service) Create(ctx context.Context, input CreateInput, actor *auth.User) (*PurchaseOrder, error) {
	if !money.ValidCurrencyCode(input.Currency) {
		return nil, shared.NewValidationError("purchase.currency", "unknown currency code %q", input.Currency)
	}
	if len(input.Lines) == 0 {
		return nil, shared.NewValidationError("purchase.lines", "a purchase order needs at least one line")
	}

	p := &PurchaseOrder{
		UUID:       uuid.New(),
		VendorID:   input.VendorID,
		JobOrderID: input.JobOrderID,
		Currency:   input.Currency,
		Status:     s.machine.Initial(),
		CreatedBy:  actor.ID,
	}
	subtotal := decimal.Zero
	for _, l := range input.Lines {
		amount := money.RoundCurrency(l.Quantity.Mul(l.UnitPrice))
		p.Lines = append(p.Lines, Line{
			Description: l.Description,
			Quantity:    money.RoundQuantity(l.Quantity),
			UnitPrice:   money.RoundCurrency(l.UnitPrice),
			Amount:      amount,
		})
		subtotal = subtotal.Add(amount)
	}
	p.Subtotal = subtotal

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "procurement", "order", s.now())
		if err != nil {
			return err
		}
		p.Number = number
		return tx.Insert(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("procurement: create: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "purchase_order.create", p)
	return p, nil
}

// Confirm moves a draft to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id int64, actor *auth.User) (*PurchaseOrder, error) {
	return s.transition(ctx, id, workflow.StatusConfirmed, actor, func(p *PurchaseOrder) {
		p.ConfirmedBy = &actor.ID
		at := s.now()
		p.ConfirmedAt = &at
	})
}

// StartProgress moves a confirmed or held order to ON_PROGRESS.
func (s *Service) StartProgress(ctx context.Context, id int64, actor *auth.User) (*PurchaseOrder, error) {
	return s.transition(ctx, id, workflow.StatusOnProgress, actor, func(p *PurchaseOrder) {})
}

// Hold parks an order.
func (s *Service) Hold(ctx context.Context, id int64, actor *auth.User) (*PurchaseOrder, error) {
	return s.transition(ctx, id, workflow.StatusOnHold, actor, func(p *PurchaseOrder) {})
}

// Complete finishes an in-progress order.
func (s *Service) Complete(ctx context.Context, id int64, actor *auth.User) (*PurchaseOrder, error) {
	return s.transition(ctx, id, workflow.StatusCompleted, actor, func(p *PurchaseOrder) {
		at := s.now()
		p.CompletedAt = &at
		p.ResolvedAt = &at
	})
}

// Cancel cancels a non-terminal order.
func (s *Service) Cancel(ctx context.Context, id int64, actor *auth.User) (*PurchaseOrder, error) {
	return s.transition(ctx, id, workflow.StatusCancelled, actor, func(p *PurchaseOrder) {
		at := s.now()
		p.ResolvedAt = &at
	})
}

func (s *Service) transition(ctx context.Context, id int64, target workflow.Status, actor *auth.User, stamp func(*PurchaseOrder)) (*PurchaseOrder, error) {
	var p *PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		p, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(ctx, p, target, actor); err != nil {
			return err
		}
		stamp(p)
		return tx.Save(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("procurement: %s %d: %w", target, id, err)
	}
	s.recordAudit(ctx, actor.ID, "purchase_order."+string(target), p)
	return p, nil
}

// Get loads one purchase order.
func (s *Service) Get(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns purchase orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status workflow.Status, limit int) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, status, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, p *PurchaseOrder) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     map[string]any{"number": p.Number, "status": string(p.Status)},
	})
}
