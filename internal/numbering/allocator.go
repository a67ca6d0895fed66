package numbering

import (
	"context"
	"fmt"
	"time"
)

// Repository is the persistence port for sequence rows. WithTx starts the
// atomic unit; LockForUpdate must hold an exclusive row lock until the
// surrounding transaction commits.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository operates inside one allocation transaction.
type TxRepository interface {
	// LockForUpdate returns the sequence row for (scope, code) under an
	// exclusive lock, creating it from defaults when absent.
	LockForUpdate(ctx context.Context, scope, code string, defaults Defaults, today time.Time) (*Sequence, error)
	// Save persists the incremented counter.
	Save(ctx context.Context, seq *Sequence) error
}

// Allocator issues formatted document numbers.
type Allocator struct {
	repo     Repository
	defaults Defaults
}

// NewAllocator builds an Allocator. defaults describes sequences created
// lazily on first use; its format is validated here so misconfiguration
// fails at wiring time.
func NewAllocator(repo Repository, defaults Defaults) (*Allocator, error) {
	if defaults.Format == "" {
		defaults.Format = DefaultFormat
	}
	if err := ValidateFormat(defaults.Format); err != nil {
		return nil, err
	}
	if defaults.Reset == "" {
		defaults.Reset = ResetMonthly
	}
	return &Allocator{repo: repo, defaults: defaults}, nil
}

// Allocate returns the next formatted number for (scope, code), evaluating
// period rollover against today. The read-increment-write runs under a row
// lock inside a single transaction; two concurrent calls can never observe
// the same counter value.
func (a *Allocator) Allocate(ctx context.Context, scope, code string, today time.Time) (string, error) {
	var number string
	err := a.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := a.AllocateIn(ctx, tx, scope, code, today)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("numbering: allocate %s/%s: %w", scope, code, err)
	}
	return number, nil
}

// AllocateIn allocates inside a transaction the caller already owns, so a
// document insert and its number draw commit or roll back together.
func (a *Allocator) AllocateIn(ctx context.Context, tx TxRepository, scope, code string, today time.Time) (string, error) {
	seq, err := tx.LockForUpdate(ctx, scope, code, a.defaults, today)
	if err != nil {
		return "", err
	}
	tmpl, err := compileFormat(seq.Format)
	if err != nil {
		// A row written through ValidateFormat can't get here; a row
		// edited behind our back still fails loudly.
		return "", err
	}
	if seq.rollover(today) {
		seq.LastNumber = 0
	}
	seq.PeriodYear = today.Year()
	seq.PeriodMonth = int(today.Month())
	seq.LastNumber++
	if err := tx.Save(ctx, seq); err != nil {
		return "", err
	}
	return tmpl.render(seq.Prefix, today, seq.LastNumber, seq.Padding), nil
}
