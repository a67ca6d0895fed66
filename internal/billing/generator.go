package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/job"
	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/shared"
)

// GenerateInput selects what to derive from the job order. Amount is only
// read for REGULAR invoices; DP and FINAL derive their base from the job.
type GenerateInput struct {
	Kind   string
	Amount decimal.Decimal
	TaxIDs []int64
}

// Generate derives an invoice from a job order: one transaction locks the
// job row, checks eligibility and the contract ceiling, allocates the
// number and persists the draft with a single operational description
// line. The contract value caps the tax-exclusive base of all invoices on
// the job; taxes are charged on top of it. Of two concurrent generations
// for the same DP exactly one wins; the loser gets
// ErrDuplicateDerivedDocument.
func (s *Service) Generate(ctx context.Context, jobID int64, input GenerateInput, actor *auth.User) (*Invoice, error) {
	switch input.Kind {
	case KindDP, KindFinal, KindRegular:
	default:
		return nil, shared.NewValidationError("invoice.kind", "unknown invoice kind %q", input.Kind)
	}
	rates, err := s.taxRates(ctx, []LineInput{{TaxIDs: input.TaxIDs}})
	if err != nil {
		return nil, err
	}

	var inv *Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		j, err := tx.Jobs().GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		invoiced, err := tx.SumInvoicedBase(ctx, jobID)
		if err != nil {
			return err
		}
		base, err := s.invoiceBase(ctx, tx, j, invoiced, input)
		if err != nil {
			return err
		}

		inv = &Invoice{
			UUID:       uuid.New(),
			Kind:       input.Kind,
			JobOrderID: &j.ID,
			CustomerID: j.CustomerID,
			Currency:   j.Currency,
			Status:     s.machine.Initial(),
			CreatedBy:  actor.ID,
			Lines: []Line{{
				Description: j.Description(),
				Quantity:    money.RoundQuantity(decimal.NewFromInt(1)),
				UnitPrice:   base,
				Taxes:       attachTaxes(input.TaxIDs, rates),
			}},
		}
		if err := s.calc.Calculate(ctx, inv, s.now()); err != nil {
			return err
		}
		if invoiced.Add(inv.Subtotal).GreaterThan(j.ContractValue) {
			return fmt.Errorf("%w: job %s has %s invoiced of %s contract",
				ErrContractValueExceeded, j.Number, invoiced.StringFixed(2), j.ContractValue.StringFixed(2))
		}

		number, err := s.alloc.AllocateIn(ctx, tx.Sequences(), "billing", "invoice", s.now())
		if err != nil {
			return err
		}
		inv.Number = number
		return tx.Insert(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: generate %s invoice for job %d: %w", input.Kind, jobID, err)
	}
	s.recordAudit(ctx, actor.ID, "invoice.generate", inv)
	return inv, nil
}

// invoiceBase computes the single-line base amount per kind and runs the
// kind's eligibility guards under the job's row lock.
func (s *Service) invoiceBase(ctx context.Context, tx TxRepository, j *job.JobOrder, invoiced decimal.Decimal, input GenerateInput) (decimal.Decimal, error) {
	if !j.Active() {
		return decimal.Zero, shared.NewValidationError("invoice.job_status", "job %s is %s, invoices need an active job", j.Number, j.Status)
	}
	switch input.Kind {
	case KindDP:
		if !j.EligibleForDP() {
			return decimal.Zero, shared.NewValidationError("invoice.dp_eligibility", "job %s has no down-payment percentage", j.Number)
		}
		base := j.DownPaymentAmount()
		if !base.IsPositive() {
			return decimal.Zero, shared.NewValidationError("invoice.dp_eligibility", "job %s down payment computes to zero", j.Number)
		}
		hasDP, err := tx.HasDPInvoice(ctx, j.ID)
		if err != nil {
			return decimal.Zero, err
		}
		if hasDP {
			return decimal.Zero, ErrDuplicateDerivedDocument
		}
		return base, nil
	case KindFinal:
		remaining := j.RemainingInvoiceable(invoiced)
		if !remaining.IsPositive() {
			return decimal.Zero, shared.NewValidationError("invoice.nothing_remaining", "job %s is fully invoiced", j.Number)
		}
		return remaining, nil
	default:
		base := money.RoundCurrency(input.Amount)
		if !base.IsPositive() {
			return decimal.Zero, shared.NewValidationError("invoice.amount", "invoice amount must be positive")
		}
		return base, nil
	}
}
