package journals

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/shared"
)

// Repository is the persistence port for journal entries.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Entry, error)
	FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (*Entry, error)
	List(ctx context.Context, module string, limit int) ([]Entry, error)
}

// TxRepository operates inside one posting transaction.
type TxRepository interface {
	numbering.TxRepository
	// LockSource takes an advisory lock on (module, sourceID) so two
	// concurrent postings for the same document serialize.
	LockSource(ctx context.Context, module string, sourceID uuid.UUID) error
	FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (*Entry, error)
	Insert(ctx context.Context, entry *Entry) error
	MarkVoid(ctx context.Context, id int64, actorID int64, at time.Time) error
	GetByID(ctx context.Context, id int64) (*Entry, error)
}

// Service is the journal posting gate.
type Service struct {
	repo  Repository
	alloc *numbering.Allocator
	audit shared.AuditRecorder
}

// NewService constructs the posting gate.
func NewService(repo Repository, alloc *numbering.Allocator, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, alloc: alloc, audit: audit}
}

// Post validates and persists a balanced journal entry for a source
// document. A source may link to at most one entry; a second posting for
// the same (module, source id) fails with ErrSourceAlreadyLinked, which
// callers that post idempotently (job completion) may treat as success.
func (s *Service) Post(ctx context.Context, input PostInput) (*Entry, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	if input.PostedAt.IsZero() {
		input.PostedAt = time.Now()
	}

	var entry *Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockSource(ctx, input.SourceModule, input.SourceID); err != nil {
			return err
		}
		if existing, err := tx.FindBySource(ctx, input.SourceModule, input.SourceID); err != nil && err != ErrNotFound {
			return err
		} else if existing != nil {
			return ErrSourceAlreadyLinked
		}

		number, err := s.alloc.AllocateIn(ctx, tx, "accounting", "journal", input.PostedAt)
		if err != nil {
			return err
		}
		entry = &Entry{
			Number:       number,
			SourceModule: input.SourceModule,
			SourceID:     input.SourceID,
			Description:  input.Description,
			Status:       StatusPosted,
			Lines:        input.Lines,
			PostedBy:     input.ActorID,
			PostedAt:     input.PostedAt,
		}
		return tx.Insert(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("journals: post %s/%s: %w", input.SourceModule, input.SourceID, err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   "journal.post",
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(entry.ID, 10),
		Meta: map[string]any{
			"number":        entry.Number,
			"source_module": entry.SourceModule,
			"source_id":     entry.SourceID.String(),
			"total":         entry.TotalDebit().StringFixed(2),
		},
	})
	return entry, nil
}

// Void marks a posted entry void. The operational document is expected to
// be reopened by its own module; the gate only flips the ledger side.
func (s *Service) Void(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if entry.Status == StatusVoid {
			return ErrAlreadyVoid
		}
		return tx.MarkVoid(ctx, id, actorID, time.Now())
	})
	if err != nil {
		return fmt.Errorf("journals: void %d: %w", id, err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "journal.void",
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(id, 10),
	})
	return nil
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns recent entries, optionally filtered by source module.
// Lines are not loaded; use Get for the full entry.
func (s *Service) List(ctx context.Context, module string, limit int) ([]Entry, error) {
	return s.repo.List(ctx, module, limit)
}

// FindBySource returns the entry linked to a source document, or
// ErrNotFound.
func (s *Service) FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (*Entry, error) {
	return s.repo.FindBySource(ctx, module, sourceID)
}

// HasLinkedEntry reports whether a non-void entry exists for the source.
// Invoice confirmation uses this as a guard.
func (s *Service) HasLinkedEntry(ctx context.Context, module string, sourceID uuid.UUID) (bool, error) {
	entry, err := s.repo.FindBySource(ctx, module, sourceID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.Status != StatusVoid, nil
}

func validate(input PostInput) error {
	if len(input.Lines) == 0 {
		return ErrEmptyLines
	}
	if input.SourceModule == "" || input.SourceID == uuid.Nil {
		return shared.NewValidationError("journal.source", "source module and id are required")
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range input.Lines {
		if l.AccountCode == "" {
			return shared.NewValidationError("journal.account", "line account code is required")
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return shared.NewValidationError("journal.amount", "line amounts must not be negative")
		}
		if !l.Debit.IsZero() && !l.Credit.IsZero() {
			return shared.NewValidationError("journal.side", "a line is either debit or credit, not both")
		}
		debit = debit.Add(money.RoundCurrency(l.Debit))
		credit = credit.Add(money.RoundCurrency(l.Credit))
	}
	if !debit.Equal(credit) || debit.IsZero() {
		return ErrUnbalanced
	}
	return nil
}
