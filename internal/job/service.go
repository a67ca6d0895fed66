package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/accounting/journals"
	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Ledger accounts used by job COGS postings.
const (
	accountCOGS            = "5100"
	accountAccruedJobCosts = "2110"
)

// PostingGate is the slice of the journal gate the job module uses.
type PostingGate interface {
	Post(ctx context.Context, input journals.PostInput) (*journals.Entry, error)
}

// CreateInput describes a new job order draft.
type CreateInput struct {
	QuotationID     *int64
	CustomerID      int64
	ServiceName     string
	Pickup          string
	Delivery        string
	Cargo           string
	Currency        string
	ContractValue   decimal.Decimal
	DPPercent       decimal.Decimal
	SalesEmployeeID int64
	FeePercent      decimal.Decimal
}

// Service handles job order business logic.
type Service struct {
	repo    Repository
	machine *workflow.Machine[*JobOrder]
	alloc   *numbering.Allocator
	gate    PostingGate
	audit   shared.AuditRecorder
	now     func() time.Time
}

// NewService builds the job service.
func NewService(repo Repository, alloc *numbering.Allocator, gate PostingGate, audit shared.AuditRecorder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, machine: NewMachine(), alloc: alloc, gate: gate, audit: audit, now: now}
}

// Create drafts a job order.
func (s *Service) Create(ctx context.Context, input CreateInput, actor *auth.User) (*JobOrder, error) {
	if !money.ValidCurrencyCode(input.Currency) {
		return nil, shared.NewValidationError("job.currency", "unknown currency code %q", input.Currency)
	}
	if !input.ContractValue.IsPositive() {
		return nil, shared.NewValidationError("job.contract_value", "contract value must be positive")
	}
	if input.DPPercent.IsNegative() || input.DPPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewValidationError("job.dp_percent", "dp percent must be between 0 and 100")
	}

	j := &JobOrder{
		UUID:            uuid.New(),
		QuotationID:     input.QuotationID,
		CustomerID:      input.CustomerID,
		ServiceName:     input.ServiceName,
		Pickup:          input.Pickup,
		Delivery:        input.Delivery,
		Cargo:           input.Cargo,
		Currency:        input.Currency,
		ContractValue:   money.RoundCurrency(input.ContractValue),
		DPPercent:       money.RoundCurrency(input.DPPercent),
		SalesEmployeeID: input.SalesEmployeeID,
		FeePercent:      money.RoundCurrency(input.FeePercent),
		Status:          s.machine.Initial(),
		CreatedBy:       actor.ID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "job", "order", s.now())
		if err != nil {
			return err
		}
		j.Number = number
		return tx.Insert(ctx, j)
	})
	if err != nil {
		return nil, fmt.Errorf("job: create: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "job_order.create", j)
	return j, nil
}

// Confirm moves a draft job to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id int64, actor *auth.User) (*JobOrder, error) {
	return s.transition(ctx, id, workflow.StatusConfirmed, actor, func(j *JobOrder) {
		j.ConfirmedBy = &actor.ID
		at := s.now()
		j.ConfirmedAt = &at
	})
}

// StartProgress moves a confirmed or held job to ON_PROGRESS.
func (s *Service) StartProgress(ctx context.Context, id int64, actor *auth.User) (*JobOrder, error) {
	return s.transition(ctx, id, workflow.StatusOnProgress, actor, func(j *JobOrder) {})
}

// Hold parks a job.
func (s *Service) Hold(ctx context.Context, id int64, actor *auth.User) (*JobOrder, error) {
	return s.transition(ctx, id, workflow.StatusOnHold, actor, func(j *JobOrder) {})
}

// Cancel cancels a non-terminal job.
func (s *Service) Cancel(ctx context.Context, id int64, actor *auth.User) (*JobOrder, error) {
	return s.transition(ctx, id, workflow.StatusCancelled, actor, func(j *JobOrder) {
		at := s.now()
		j.ResolvedAt = &at
	})
}

// AddCost accumulates vendor cost onto an active job.
func (s *Service) AddCost(ctx context.Context, id int64, amount decimal.Decimal, actor *auth.User) (*JobOrder, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("job.cost", "cost amount must be positive")
	}
	var j *JobOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		j, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !j.Active() || j.Status == workflow.StatusCompleted {
			return shared.NewValidationError("job.cost_status", "costs can only be added to confirmed or running jobs, %s is %s", j.Number, j.Status)
		}
		j.CostTotal = j.CostTotal.Add(money.RoundCurrency(amount))
		return tx.Save(ctx, j)
	})
	if err != nil {
		return nil, fmt.Errorf("job: add cost %d: %w", id, err)
	}
	s.recordAudit(ctx, actor.ID, "job_order.add_cost", j)
	return j, nil
}

// Complete finishes an in-progress job, then posts its accumulated cost as
// COGS. The posting is idempotent: if the entry already exists the
// completion still succeeds.
func (s *Service) Complete(ctx context.Context, id int64, actor *auth.User) (*JobOrder, error) {
	j, err := s.transition(ctx, id, workflow.StatusCompleted, actor, func(j *JobOrder) {
		at := s.now()
		j.CompletedAt = &at
		j.ResolvedAt = &at
	})
	if err != nil {
		return nil, err
	}
	if err := s.PostCOGS(ctx, j, actor); err != nil {
		return nil, err
	}
	return j, nil
}

// PostCOGS posts the job's cost total through the journal gate. Safe to
// call again after a posting failure; an already linked entry is success.
func (s *Service) PostCOGS(ctx context.Context, j *JobOrder, actor *auth.User) error {
	if j.Status != workflow.StatusCompleted || !j.CostTotal.IsPositive() {
		return nil
	}
	_, err := s.gate.Post(ctx, journals.PostInput{
		SourceModule: "job.order",
		SourceID:     j.UUID,
		Description:  "COGS " + j.Description(),
		Lines: []journals.Line{
			{AccountCode: accountCOGS, Debit: j.CostTotal},
			{AccountCode: accountAccruedJobCosts, Credit: j.CostTotal},
		},
		ActorID:  actor.ID,
		PostedAt: s.now(),
	})
	if err != nil && !errors.Is(err, journals.ErrSourceAlreadyLinked) {
		return fmt.Errorf("job: post cogs %d: %w", j.ID, err)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id int64, target workflow.Status, actor *auth.User, stamp func(*JobOrder)) (*JobOrder, error) {
	var j *JobOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		j, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(ctx, j, target, actor); err != nil {
			return err
		}
		stamp(j)
		return tx.Save(ctx, j)
	})
	if err != nil {
		return nil, fmt.Errorf("job: %s %d: %w", target, id, err)
	}
	s.recordAudit(ctx, actor.ID, "job_order."+string(target), j)
	return j, nil
}

// GenerateFeePeriod builds (or rebuilds, while DRAFT) the monthly sales
// fee sheet from the jobs completed in that month.
func (s *Service) GenerateFeePeriod(ctx context.Context, year int, month time.Month, actor *auth.User) (*FeePeriod, error) {
	if !actor.HasPermission(rbac.PermFeePeriodGenerate) {
		return nil, workflow.ErrPermissionDenied
	}
	jobs, err := s.repo.ListCompletedInMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("job: list completed %d-%02d: %w", year, month, err)
	}

	var lines []FeeLine
	for _, j := range jobs {
		if j.SalesEmployeeID == 0 || !j.FeePercent.IsPositive() {
			continue
		}
		lines = append(lines, FeeLine{
			JobOrderID: j.ID,
			JobNumber:  j.Number,
			EmployeeID: j.SalesEmployeeID,
			Base:       j.ContractValue,
			Percent:    j.FeePercent,
		})
	}

	var period *FeePeriod
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetFeePeriodForUpdate(ctx, year, month)
		switch {
		case err == nil:
			if existing.Frozen() {
				return ErrFeePeriodFrozen
			}
			existing.Lines = lines
			existing.Recalc()
			period = existing
			return tx.SaveFeePeriod(ctx, existing)
		case errors.Is(err, httpx.ErrNotFound):
			period = &FeePeriod{Year: year, Month: month, Status: FeePeriodDraft, Lines: lines}
			period.Recalc()
			return tx.InsertFeePeriod(ctx, period)
		default:
			return err
		}
	})
	if err != nil {
		return nil, fmt.Errorf("job: generate fee period %d-%02d: %w", year, month, err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "fee_period.generate",
		Entity:   "job_fee_period",
		EntityID: strconv.FormatInt(period.ID, 10),
		Meta:     map[string]any{"year": year, "month": int(month), "total": period.Total.StringFixed(2)},
	})
	return period, nil
}

// ApproveFeePeriod freezes a draft period for payroll.
func (s *Service) ApproveFeePeriod(ctx context.Context, year int, month time.Month, actor *auth.User) (*FeePeriod, error) {
	if !actor.HasPermission(rbac.PermFeePeriodApprove) {
		return nil, workflow.ErrPermissionDenied
	}
	var period *FeePeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.GetFeePeriodForUpdate(ctx, year, month)
		if err != nil {
			return err
		}
		if period.Frozen() {
			return ErrFeePeriodFrozen
		}
		period.Status = FeePeriodApproved
		period.ApprovedBy = &actor.ID
		at := s.now()
		period.ApprovedAt = &at
		return tx.SaveFeePeriod(ctx, period)
	})
	if err != nil {
		return nil, fmt.Errorf("job: approve fee period %d-%02d: %w", year, month, err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "fee_period.approve",
		Entity:   "job_fee_period",
		EntityID: strconv.FormatInt(period.ID, 10),
	})
	return period, nil
}

// Get loads one job order.
func (s *Service) Get(ctx context.Context, id int64) (*JobOrder, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns job orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status workflow.Status, limit int) ([]JobOrder, error) {
	return s.repo.List(ctx, status, limit)
}

// GetFeePeriod loads one monthly fee sheet.
func (s *Service) GetFeePeriod(ctx context.Context, year int, month time.Month) (*FeePeriod, error) {
	return s.repo.GetFeePeriod(ctx, year, month)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, j *JobOrder) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "job_order",
		EntityID: strconv.FormatInt(j.ID, 10),
		Meta:     map[string]any{"number": j.Number, "status": string(j.Status)},
	})
}
