package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/sales/quotations"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Service handles sales order business logic.
type Service struct {
	repo    Repository
	machine *workflow.Machine[*SalesOrder]
	quotes  *quotations.Service
	alloc   *numbering.Allocator
	audit   shared.AuditRecorder
	now     func() time.Time
}

// NewService builds the sales order service.
func NewService(repo Repository, quotes *quotations.Service, alloc *numbering.Allocator, audit shared.AuditRecorder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    repo,
		machine: NewMachine(),
		quotes:  quotes,
		alloc:   alloc,
		audit:   audit,
		now:     now,
	}
}

// GenerateFromQuotation turns an accepted quotation into a draft sales
// order. The order insert and the quotation's flip to ORDERED commit
// together; a quotation produces at most one order, so a concurrent second
// call loses with ErrQuotationAlreadyOrdered.
func (s *Service) GenerateFromQuotation(ctx context.Context, quotationID int64, actor *auth.User) (*SalesOrder, error) {
	var order *SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := s.quotes.GetForUpdate(ctx, tx.Quotations(), quotationID)
		if err != nil {
			return err
		}
		if _, err := tx.FindByQuotation(ctx, quotationID); err == nil {
			return ErrQuotationAlreadyOrdered
		} else if !errors.Is(err, httpx.ErrNotFound) {
			return err
		}

		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "sales", "order", s.now())
		if err != nil {
			return err
		}
		order = &SalesOrder{
			UUID:        uuid.New(),
			Number:      number,
			QuotationID: &quote.ID,
			CustomerID:  quote.CustomerID,
			ServiceName: quote.ServiceName,
			Origin:      quote.Origin,
			Destination: quote.Destination,
			Currency:    quote.Currency,
			Status:      s.machine.Initial(),
			Subtotal:    quote.Subtotal,
			CreatedBy:   actor.ID,
		}
		for _, l := range quote.Lines {
			if l.Deleted {
				continue
			}
			order.Lines = append(order.Lines, Line{
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				Amount:      l.Amount,
			})
		}
		if err := tx.Insert(ctx, order); err != nil {
			return err
		}
		// Enforces ACCEPTED -> ORDERED, including the actor's permission.
		return s.quotes.MarkOrdered(ctx, tx.Quotations(), quote, actor)
	})
	if err != nil {
		return nil, fmt.Errorf("orders: generate from quotation %d: %w", quotationID, err)
	}
	s.recordAudit(ctx, actor.ID, "sales_order.generate", order)
	return order, nil
}

// Confirm moves a draft order to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id int64, actor *auth.User) (*SalesOrder, error) {
	return s.transition(ctx, id, workflow.StatusConfirmed, actor, func(o *SalesOrder) {
		o.ConfirmedBy = &actor.ID
		at := s.now()
		o.ConfirmedAt = &at
	})
}

// StartProgress moves a confirmed or held order to ON_PROGRESS.
func (s *Service) StartProgress(ctx context.Context, id int64, actor *auth.User) (*SalesOrder, error) {
	return s.transition(ctx, id, workflow.StatusOnProgress, actor, func(o *SalesOrder) {})
}

// Hold parks an order.
func (s *Service) Hold(ctx context.Context, id int64, actor *auth.User) (*SalesOrder, error) {
	return s.transition(ctx, id, workflow.StatusOnHold, actor, func(o *SalesOrder) {})
}

// Complete finishes an in-progress order.
func (s *Service) Complete(ctx context.Context, id int64, actor *auth.User) (*SalesOrder, error) {
	return s.transition(ctx, id, workflow.StatusCompleted, actor, func(o *SalesOrder) {
		at := s.now()
		o.CompletedAt = &at
		o.ResolvedAt = &at
	})
}

// Cancel cancels a non-terminal order.
func (s *Service) Cancel(ctx context.Context, id int64, actor *auth.User) (*SalesOrder, error) {
	return s.transition(ctx, id, workflow.StatusCancelled, actor, func(o *SalesOrder) {
		at := s.now()
		o.ResolvedAt = &at
	})
}

func (s *Service) transition(ctx context.Context, id int64, target workflow.Status, actor *auth.User, stamp func(*SalesOrder)) (*SalesOrder, error) {
	var order *SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(ctx, order, target, actor); err != nil {
			return err
		}
		stamp(order)
		return tx.Save(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %s %d: %w", target, id, err)
	}
	s.recordAudit(ctx, actor.ID, "sales_order."+string(target), order)
	return order, nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status workflow.Status, limit int) ([]SalesOrder, error) {
	return s.repo.List(ctx, status, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, o *SalesOrder) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sales_order",
		EntityID: strconv.FormatInt(o.ID, 10),
		Meta:     map[string]any{"number": o.Number, "status": string(o.Status)},
	})
}
