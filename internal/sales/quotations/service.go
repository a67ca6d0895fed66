package quotations

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
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// CreateInput describes a new quotation draft.
type CreateInput struct {
	CustomerID  int64
	ServiceName string
	Origin      string
	Destination string
	Currency    string
	ValidUntil  time.Time
	Lines       []LineInput
}

// LineInput is one charge on a draft.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Service handles quotation business logic.
type Service struct {
	repo         Repository
	machine      *workflow.Machine[*Quotation]
	alloc        *numbering.Allocator
	audit        shared.AuditRecorder
	validityDays int
	now          func() time.Time
}

// NewService builds the quotation service. validityDays is the default
// validity window applied when a draft carries no explicit date.
func NewService(repo Repository, alloc *numbering.Allocator, audit shared.AuditRecorder, validityDays int, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if validityDays <= 0 {
		validityDays = 7
	}
	return &Service{
		repo:         repo,
		machine:      NewMachine(now),
		alloc:        alloc,
		audit:        audit,
		validityDays: validityDays,
		now:          now,
	}
}

// Create drafts a quotation, allocating its number in the same
// transaction as the insert.
func (s *Service) Create(ctx context.Context, input CreateInput, actor *auth.User) (*Quotation, error) {
	if !money.ValidCurrencyCode(input.Currency) {
		return nil, shared.NewValidationError("quotation.currency", "unknown currency code %q", input.Currency)
	}
	if len(input.Lines) == 0 {
		return nil, shared.NewValidationError("quotation.lines", "a quotation needs at least one line")
	}

	today := s.now()
	q := &Quotation{
		UUID:        uuid.New(),
		CustomerID:  input.CustomerID,
		ServiceName: input.ServiceName,
		Origin:      input.Origin,
		Destination: input.Destination,
		Currency:    input.Currency,
		ValidUntil:  input.ValidUntil,
		Status:      s.machine.Initial(),
		CreatedBy:   actor.ID,
	}
	if q.ValidUntil.IsZero() {
		q.ValidUntil = truncateDay(today).AddDate(0, 0, s.validityDays)
	}
	for _, l := range input.Lines {
		q.Lines = append(q.Lines, Line{
			Description: l.Description,
			Quantity:    money.RoundQuantity(l.Quantity),
			UnitPrice:   money.RoundCurrency(l.UnitPrice),
		})
	}
	q.RecalcSubtotal()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "sales", "quotation", today)
		if err != nil {
			return err
		}
		q.Number = number
		return tx.Insert(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("quotations: create: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "quotation.create", q)
	return q, nil
}

// Send moves a draft to SENT.
func (s *Service) Send(ctx context.Context, id int64, actor *auth.User) (*Quotation, error) {
	return s.transition(ctx, id, StatusSent, actor, func(q *Quotation) {
		q.SentBy = &actor.ID
		at := s.now()
		q.SentAt = &at
	})
}

// Accept marks a sent quotation accepted by the customer.
func (s *Service) Accept(ctx context.Context, id int64, actor *auth.User) (*Quotation, error) {
	return s.transition(ctx, id, StatusAccepted, actor, func(q *Quotation) {
		q.AcceptedBy = &actor.ID
		at := s.now()
		q.AcceptedAt = &at
	})
}

// Cancel cancels a sent quotation.
func (s *Service) Cancel(ctx context.Context, id int64, actor *auth.User) (*Quotation, error) {
	return s.transition(ctx, id, StatusCancelled, actor, func(q *Quotation) {
		at := s.now()
		q.ResolvedAt = &at
	})
}

func (s *Service) transition(ctx context.Context, id int64, target workflow.Status, actor *auth.User, stamp func(*Quotation)) (*Quotation, error) {
	var q *Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		q, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(ctx, q, target, actor); err != nil {
			return err
		}
		stamp(q)
		return tx.Save(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("quotations: %s %d: %w", target, id, err)
	}
	s.recordAudit(ctx, actor.ID, "quotation."+string(target), q)
	return q, nil
}

// MarkOrdered flips an accepted quotation to ORDERED inside the caller's
// transaction. Sales order generation calls this so the order insert and
// the quotation flip commit together.
func (s *Service) MarkOrdered(ctx context.Context, tx TxRepository, q *Quotation, actor *auth.User) error {
	if err := s.machine.Transition(ctx, q, StatusOrdered, actor); err != nil {
		return err
	}
	at := s.now()
	q.ResolvedAt = &at
	return tx.Save(ctx, q)
}

// GetForUpdate loads a quotation under row lock inside the caller's
// transaction.
func (s *Service) GetForUpdate(ctx context.Context, tx TxRepository, id int64) (*Quotation, error) {
	return tx.GetForUpdate(ctx, id)
}

// ExpireDue sweeps SENT quotations whose validity lapsed before today and
// expires each in its own transaction. Returns the number expired. The
// worker invokes this daily; it requires no actor.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	ids, err := s.repo.ListDueForExpiry(ctx, truncateDay(s.now()), 0)
	if err != nil {
		return 0, fmt.Errorf("quotations: list due for expiry: %w", err)
	}
	expired := 0
	for _, id := range ids {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			q, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			// Re-check under lock; the quotation may have been accepted
			// between the sweep query and now.
			if err := s.machine.SystemTransition(ctx, q, StatusExpired); err != nil {
				return nil
			}
			at := s.now()
			q.ResolvedAt = &at
			if err := tx.Save(ctx, q); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			return expired, fmt.Errorf("quotations: expire %d: %w", id, err)
		}
	}
	return expired, nil
}

// PurgeExpired deletes an expired quotation together with any draft job
// order that hangs off it. The cascade is an explicit operation; expiry
// itself never deletes anything.
func (s *Service) PurgeExpired(ctx context.Context, id int64, actor *auth.User) error {
	if !actor.HasPermission(rbac.PermQuotationPurge) {
		return workflow.ErrPermissionDenied
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != StatusExpired {
			return shared.NewValidationError("quotation.purge_status", "only expired quotations can be purged, %s is %s", q.Number, q.Status)
		}
		return tx.DeleteCascade(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("quotations: purge %d: %w", id, err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "quotation.purge",
		Entity:   "quotation",
		EntityID: strconv.FormatInt(id, 10),
	})
	return nil
}

// Get loads one quotation.
func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns quotations, optionally filtered by status.
func (s *Service) List(ctx context.Context, status workflow.Status, limit int) ([]Quotation, error) {
	return s.repo.List(ctx, status, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, q *Quotation) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "quotation",
		EntityID: strconv.FormatInt(q.ID, 10),
		Meta:     map[string]any{"number": q.Number, "status": string(q.Status)},
	})
}
