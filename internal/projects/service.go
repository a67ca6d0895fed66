package projects

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

// CreateInput describes a new project draft.
type CreateInput struct {
	CustomerID int64
	Name       string
	Currency   string
	Budget     decimal.Decimal
	StartDate  *time.Time
	EndDate    *time.Time
}

// Service handles project business logic.
type Service struct {
	repo    Repository
	machine *workflow.Machine[*Project]
	alloc   *numbering.Allocator
	audit   shared.AuditRecorder
	now     func() time.Time
}

// NewService builds the project service.
func NewService(repo Repository, alloc *numbering.Allocator, audit shared.AuditRecorder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, machine: NewMachine(), alloc: alloc, audit: audit, now: now}
}

// Create drafts a project.
func (s *Service) Create(ctx context.Context, input CreateInput, actor *auth.User) (*Project, error) {
	if !money.ValidCurrencyCode(input.Currency) {
		return nil, shared.NewValidationError("project.currency", "unknown currency code %q", input.Currency)
	}
	if input.Name == "" {
		return nil, shared.NewValidationError("project.name", "a project needs a name")
	}

	p := &Project{
		UUID:       uuid.New(),
		CustomerID: input.CustomerID,
		Name:       input.Name,
		Currency:   input.Currency,
		Budget:     money.RoundCurrency(input.Budget),
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		Status:     s.machine.Initial(),
		CreatedBy:  actor.ID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "projects", "project", s.now())
		if err != nil {
			return err
		}
		p.Number = number
		return tx.Insert(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("projects: create: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "project.create", p)
	return p, nil
}

// Confirm moves a draft to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id int64, actor *auth.User) (*Project, error) {
	return s.transition(ctx, id, workflow.StatusConfirmed, actor, func(p *Project) {
		p.ConfirmedBy = &actor.ID
		at := s.now()
		p.ConfirmedAt = &at
	})
}

// StartProgress moves a confirmed or held project to ON_PROGRESS.
func (s *Service) StartProgress(ctx context.Context, id int64, actor *auth.User) (*Project, error) {
	return s.transition(ctx, id, workflow.StatusOnProgress, actor, func(p *Project) {})
}

// Hold parks a project.
func (s *Service) Hold(ctx context.Context, id int64, actor *auth.User) (*Project, error) {
	return s.transition(ctx, id, workflow.StatusOnHold, actor, func(p *Project) {})
}

// Complete finishes an in-progress project.
func (s *Service) Complete(ctx context.Context, id int64, actor *auth.User) (*Project, error) {
	return s.transition(ctx, id, workflow.StatusCompleted, actor, func(p *Project) {
		at := s.now()
		p.CompletedAt = &at
		p.ResolvedAt = &at
	})
}

// Cancel cancels a non-terminal project.
func (s *Service) Cancel(ctx context.Context, id int64, actor *auth.User) (*Project, error) {
	return s.transition(ctx, id, workflow.StatusCancelled, actor, func(p *Project) {
		at := s.now()
		p.ResolvedAt = &at
	})
}

func (s *Service) transition(ctx context.Context, id int64, target workflow.Status, actor *auth.User, stamp func(*Project)) (*Project, error) {
	var p *Project
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
		return nil, fmt.Errorf("projects: %s %d: %w", target, id, err)
	}
	s.recordAudit(ctx, actor.ID, "project."+string(target), p)
	return p, nil
}

// Get loads one project.
func (s *Service) Get(ctx context.Context, id int64) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns projects, optionally filtered by status.
func (s *Service) List(ctx context.Context, status workflow.Status, limit int) ([]Project, error) {
	return s.repo.List(ctx, status, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, p *Project) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "project",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     map[string]any{"number": p.Number, "status": string(p.Status)},
	})
}
