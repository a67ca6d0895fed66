package billing

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
	"github.com/samudra-erp/samudra-erp/internal/masterdata/taxes"
	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Journal source modules and ledger accounts used by billing postings.
const (
	sourceInvoice = "billing.invoice"
	sourceReceipt = "billing.receipt"

	accountCash        = "1110"
	accountReceivables = "1210"
	accountTaxPayable  = "2410"
	accountRevenue     = "4100"
)

// JournalGate is the slice of the journal gate billing uses.
type JournalGate interface {
	Post(ctx context.Context, input journals.PostInput) (*journals.Entry, error)
	HasLinkedEntry(ctx context.Context, module string, sourceID uuid.UUID) (bool, error)
}

// TaxCatalog resolves tax master data for invoice lines.
type TaxCatalog interface {
	GetByIDs(ctx context.Context, ids []int64) ([]taxes.Tax, error)
}

// LineInput describes one invoice line on manual creation.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxIDs      []int64
}

// CreateInput describes a manually drafted invoice.
type CreateInput struct {
	JobOrderID *int64
	CustomerID int64
	Currency   string
	Lines      []LineInput
}

// ReceiptInput describes a payment receipt draft.
type ReceiptInput struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Method    string
	Reference string
}

// Service handles invoice business logic.
type Service struct {
	repo    Repository
	taxes   TaxCatalog
	calc    *Calculator
	machine *workflow.Machine[*Invoice]
	alloc   *numbering.Allocator
	gate    JournalGate
	audit   shared.AuditRecorder
	now     func() time.Time
}

// NewService builds the billing service.
func NewService(repo Repository, catalog TaxCatalog, calc *Calculator, alloc *numbering.Allocator, gate JournalGate, audit shared.AuditRecorder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	s := &Service{
		repo:  repo,
		taxes: catalog,
		calc:  calc,
		alloc: alloc,
		gate:  gate,
		audit: audit,
		now:   now,
	}
	s.machine = newMachine(gate)
	return s
}

// newMachine declares the invoice lifecycle. Confirm is the only actor
// edge; the paid states move exclusively through the payment recompute.
func newMachine(gate JournalGate) *workflow.Machine[*Invoice] {
	return workflow.New("invoice", StatusDraft,
		func(inv *Invoice) workflow.Status { return inv.Status },
		func(inv *Invoice, s workflow.Status) { inv.Status = s },
	).
		Permit(StatusDraft, StatusSent).
		Permit(StatusSent, StatusPartial, StatusPaid).
		Permit(StatusPartial, StatusSent, StatusPaid).
		Permit(StatusPaid, StatusPartial, StatusSent).
		Require(StatusDraft, StatusSent, rbac.PermInvoiceConfirm).
		SystemOnly(StatusSent, StatusPartial).
		SystemOnly(StatusSent, StatusPaid).
		SystemOnly(StatusPartial, StatusSent).
		SystemOnly(StatusPartial, StatusPaid).
		SystemOnly(StatusPaid, StatusPartial).
		SystemOnly(StatusPaid, StatusSent).
		Guard(StatusDraft, StatusSent, "invoice.journal_linked", func(ctx context.Context, inv *Invoice) error {
			linked, err := gate.HasLinkedEntry(ctx, sourceInvoice, inv.UUID)
			if err != nil {
				return err
			}
			if linked {
				return workflow.NewGuardError("invoice.journal_linked", "invoice %s already has a ledger entry", inv.Number)
			}
			return nil
		})
}

// Create drafts a manual invoice. When linked to a job the invoiced base
// is checked against the contract value under the job's row lock.
func (s *Service) Create(ctx context.Context, input CreateInput, actor *auth.User) (*Invoice, error) {
	if !money.ValidCurrencyCode(input.Currency) {
		return nil, shared.NewValidationError("invoice.currency", "unknown currency code %q", input.Currency)
	}
	if len(input.Lines) == 0 {
		return nil, shared.NewValidationError("invoice.lines", "invoice needs at least one line")
	}
	rates, err := s.taxRates(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		UUID:       uuid.New(),
		Kind:       KindRegular,
		JobOrderID: input.JobOrderID,
		CustomerID: input.CustomerID,
		Currency:   input.Currency,
		Status:     s.machine.Initial(),
		CreatedBy:  actor.ID,
	}
	for _, li := range input.Lines {
		inv.Lines = append(inv.Lines, Line{
			Description: li.Description,
			Quantity:    money.RoundQuantity(li.Quantity),
			UnitPrice:   money.RoundCurrency(li.UnitPrice),
			Taxes:       attachTaxes(li.TaxIDs, rates),
		})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.calc.Calculate(ctx, inv, s.now()); err != nil {
			return err
		}
		if inv.JobOrderID != nil {
			if err := s.checkContractRoom(ctx, tx, *inv.JobOrderID, inv); err != nil {
				return err
			}
		}
		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "billing", "invoice", s.now())
		if err != nil {
			return err
		}
		inv.Number = number
		return tx.Insert(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: create invoice: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "invoice.create", inv)
	return inv, nil
}

// Recalculate reruns the totals calculator on a draft invoice. Running it
// on unchanged lines stores identical aggregates.
func (s *Service) Recalculate(ctx context.Context, id int64, actor *auth.User) (*Invoice, error) {
	var inv *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return shared.NewValidationError("invoice.recalc_status", "only draft invoices recalculate, %s is %s", inv.Number, inv.Status)
		}
		if err := s.calc.Calculate(ctx, inv, s.now()); err != nil {
			return err
		}
		return tx.Save(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: recalculate invoice %d: %w", id, err)
	}
	return inv, nil
}

// Confirm sends a draft invoice and posts it to the ledger. The ledger
// posting is idempotent: an already linked entry does not fail the
// confirmation retry.
func (s *Service) Confirm(ctx context.Context, id int64, actor *auth.User) (*Invoice, error) {
	var inv *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(ctx, inv, StatusSent, actor); err != nil {
			return err
		}
		inv.ConfirmedBy = &actor.ID
		at := s.now()
		inv.ConfirmedAt = &at
		return tx.Save(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: confirm invoice %d: %w", id, err)
	}
	if err := s.postConfirmJournal(ctx, inv, actor); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor.ID, "invoice.confirm", inv)
	return inv, nil
}

// postConfirmJournal books the receivable in IDR: the receivable against
// revenue and the tax payable. The tax line absorbs the conversion
// remainder so the entry always balances to the invoice's IDR total.
func (s *Service) postConfirmJournal(ctx context.Context, inv *Invoice, actor *auth.User) error {
	subtotalIDR := money.RoundCurrency(inv.Subtotal.Mul(inv.ExchangeRate))
	taxIDR := inv.TotalIDR.Sub(subtotalIDR)

	lines := []journals.Line{
		{AccountCode: accountReceivables, Debit: inv.TotalIDR},
		{AccountCode: accountRevenue, Credit: subtotalIDR},
	}
	if !taxIDR.IsZero() {
		lines = append(lines, journals.Line{AccountCode: accountTaxPayable, Credit: taxIDR})
	}
	_, err := s.gate.Post(ctx, journals.PostInput{
		SourceModule: sourceInvoice,
		SourceID:     inv.UUID,
		Description:  "Invoice " + inv.Number,
		Lines:        lines,
		ActorID:      actor.ID,
		PostedAt:     s.now(),
	})
	if err != nil && !errors.Is(err, journals.ErrSourceAlreadyLinked) {
		return fmt.Errorf("billing: post invoice %d: %w", inv.ID, err)
	}
	return nil
}

// CreateReceipt drafts a payment receipt against an invoice.
func (s *Service) CreateReceipt(ctx context.Context, input ReceiptInput, actor *auth.User) (*Receipt, error) {
	if !input.Amount.IsPositive() {
		return nil, shared.NewValidationError("receipt.amount", "receipt amount must be positive")
	}
	rc := &Receipt{
		UUID:      uuid.New(),
		InvoiceID: input.InvoiceID,
		Amount:    money.RoundCurrency(input.Amount),
		Method:    input.Method,
		Reference: input.Reference,
		Status:    ReceiptDraft,
		CreatedBy: actor.ID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if !inv.Receivable() {
			return shared.NewValidationError("receipt.invoice_status", "invoice %s is %s, receipts need SENT or PARTIAL", inv.Number, inv.Status)
		}
		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "billing", "receipt", s.now())
		if err != nil {
			return err
		}
		rc.Number = number
		return tx.InsertReceipt(ctx, rc)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: create receipt: %w", err)
	}
	return rc, nil
}

// PostReceipt applies a draft receipt to its invoice: the paid amount
// moves, the payment status recomputes, and the cash entry posts to the
// ledger.
func (s *Service) PostReceipt(ctx context.Context, id int64, actor *auth.User) (*Receipt, error) {
	if !actor.HasPermission(rbac.PermInvoiceReceive) {
		return nil, workflow.ErrPermissionDenied
	}
	var rc *Receipt
	var inv *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rc, err = tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if rc.Status != ReceiptDraft {
			return shared.NewValidationError("receipt.status", "receipt %s is already %s", rc.Number, rc.Status)
		}
		inv, err = tx.GetForUpdate(ctx, rc.InvoiceID)
		if err != nil {
			return err
		}
		if !inv.Receivable() {
			return shared.NewValidationError("receipt.invoice_status", "invoice %s is %s, receipts need SENT or PARTIAL", inv.Number, inv.Status)
		}
		inv.AmountPaid = inv.AmountPaid.Add(rc.Amount)
		if err := s.recomputePayment(ctx, inv); err != nil {
			return err
		}
		if err := tx.Save(ctx, inv); err != nil {
			return err
		}
		rc.Status = ReceiptPosted
		rc.PostedBy = &actor.ID
		at := s.now()
		rc.PostedAt = &at
		return tx.SaveReceipt(ctx, rc)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: post receipt %d: %w", id, err)
	}
	if err := s.postReceiptJournal(ctx, rc, inv, actor); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor.ID, "receipt.post", inv)
	return rc, nil
}

// recomputePayment derives the paid state from amounts. Draft invoices
// never move here.
func (s *Service) recomputePayment(ctx context.Context, inv *Invoice) error {
	if inv.Status == StatusDraft {
		return nil
	}
	target := inv.PaymentStatus()
	if target == inv.Status {
		return nil
	}
	return s.machine.SystemTransition(ctx, inv, target)
}

func (s *Service) postReceiptJournal(ctx context.Context, rc *Receipt, inv *Invoice, actor *auth.User) error {
	amountIDR := money.RoundCurrency(rc.Amount.Mul(inv.ExchangeRate))
	_, err := s.gate.Post(ctx, journals.PostInput{
		SourceModule: sourceReceipt,
		SourceID:     rc.UUID,
		Description:  "Receipt " + rc.Number + " for " + inv.Number,
		Lines: []journals.Line{
			{AccountCode: accountCash, Debit: amountIDR},
			{AccountCode: accountReceivables, Credit: amountIDR},
		},
		ActorID:  actor.ID,
		PostedAt: s.now(),
	})
	if err != nil && !errors.Is(err, journals.ErrSourceAlreadyLinked) {
		return fmt.Errorf("billing: post receipt journal %d: %w", rc.ID, err)
	}
	return nil
}

// Get loads one invoice with lines.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns invoices, optionally filtered by status.
func (s *Service) List(ctx context.Context, status workflow.Status, limit int) ([]Invoice, error) {
	return s.repo.List(ctx, status, limit)
}

// ListByJob returns the invoices linked to a job order.
func (s *Service) ListByJob(ctx context.Context, jobID int64) ([]Invoice, error) {
	return s.repo.ListByJob(ctx, jobID)
}

// ListReceipts returns the receipts against an invoice.
func (s *Service) ListReceipts(ctx context.Context, invoiceID int64) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, invoiceID)
}

func (s *Service) checkContractRoom(ctx context.Context, tx TxRepository, jobID int64, inv *Invoice) error {
	j, err := tx.Jobs().GetForUpdate(ctx, jobID)
	if err != nil {
		return err
	}
	if !j.Active() {
		return shared.NewValidationError("invoice.job_status", "job %s is %s, invoices need an active job", j.Number, j.Status)
	}
	invoiced, err := tx.SumInvoicedBase(ctx, jobID)
	if err != nil {
		return err
	}
	if invoiced.Add(inv.Subtotal).GreaterThan(j.ContractValue) {
		return fmt.Errorf("%w: job %s has %s invoiced of %s contract",
			ErrContractValueExceeded, j.Number, invoiced.StringFixed(2), j.ContractValue.StringFixed(2))
	}
	return nil
}

// taxRates loads and indexes the referenced taxes.
func (s *Service) taxRates(ctx context.Context, lines []LineInput) (map[int64]taxes.Tax, error) {
	var ids []int64
	seen := map[int64]bool{}
	for _, l := range lines {
		for _, id := range l.TaxIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	loaded, err := s.taxes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("billing: load taxes: %w", err)
	}
	rates := make(map[int64]taxes.Tax, len(loaded))
	for _, t := range loaded {
		rates[t.ID] = t
	}
	for _, id := range ids {
		if _, ok := rates[id]; !ok {
			return nil, shared.NewValidationError("invoice.tax", "unknown tax id %d", id)
		}
	}
	return rates, nil
}

func attachTaxes(ids []int64, rates map[int64]taxes.Tax) []LineTax {
	var out []LineTax
	for _, id := range ids {
		t := rates[id]
		out = append(out, LineTax{TaxID: t.ID, Name: t.Name, RatePercent: t.RatePercent})
	}
	return out
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, inv *Invoice) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     map[string]any{"number": inv.Number, "status": string(inv.Status)},
	})
}
