// Package journals is the posting boundary between operational documents
// and the general ledger. A document that needs a ledger effect hands a
// balanced set of lines to the gate; the gate enforces that each source
// document links to at most one journal entry.
package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
)

// Entry statuses.
const (
	StatusPosted = "POSTED"
	StatusVoid   = "VOID"
)

var (
	// ErrUnbalanced indicates total debit does not equal total credit.
	ErrUnbalanced = errors.New("journal entry is not balanced")
	// ErrEmptyLines indicates an entry with no lines.
	ErrEmptyLines = errors.New("journal entry has no lines")
	// ErrSourceAlreadyLinked indicates the source document already has a
	// journal entry.
	ErrSourceAlreadyLinked = fmt.Errorf("%w: source document already linked to a journal entry", httpx.ErrDuplicate)
	// ErrNotFound indicates a missing journal entry.
	ErrNotFound = fmt.Errorf("%w: journal entry", httpx.ErrNotFound)
	// ErrAlreadyVoid indicates a double void.
	ErrAlreadyVoid = fmt.Errorf("%w: journal entry already void", httpx.ErrDuplicate)
)

// Line is one side of a double entry.
type Line struct {
	ID          int64
	AccountCode string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Entry is a posted journal entry. SourceModule and SourceID identify the
// operational document that produced it; the pair is unique.
type Entry struct {
	ID           int64
	Number       string
	SourceModule string
	SourceID     uuid.UUID
	Description  string
	Status       string
	Lines        []Line
	PostedBy     int64
	PostedAt     time.Time
	VoidedBy     *int64
	VoidedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PostInput describes a posting request.
type PostInput struct {
	SourceModule string
	SourceID     uuid.UUID
	Description  string
	Lines        []Line
	ActorID      int64
	PostedAt     time.Time
}

// TotalDebit sums the debit side.
func (e *Entry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side.
func (e *Entry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}
