// Package numbering issues unique, gapless-per-period document numbers.
// Every business document (quotation, order, job, invoice, receipt) takes
// its number from a counter row identified by (scope, code); allocation is
// an increment-and-format under an exclusive row lock.
package numbering

import (
	"errors"
	"fmt"
	"time"

	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
)

// ResetPolicy controls when a counter restarts from zero.
type ResetPolicy string

const (
	ResetNone    ResetPolicy = "NONE"
	ResetMonthly ResetPolicy = "MONTHLY"
	ResetYearly  ResetPolicy = "YEARLY"
)

// Errors surfaced by the allocator.
var (
	// ErrInvalidFormat indicates a template referencing tokens outside
	// {prefix, year, month, day, seq}. It is raised when a sequence is
	// configured, never during allocation.
	ErrInvalidFormat = errors.New("invalid sequence format")
	// ErrAllocationConflict indicates the counter row lock could not be
	// acquired. The caller may retry a bounded number of times.
	ErrAllocationConflict = fmt.Errorf("%w: sequence allocation", httpx.ErrConflict)
	// ErrNotFound indicates a missing sequence row.
	ErrNotFound = errors.New("sequence not found")
)

// Sequence is one counter row. At most one row exists per (scope, code);
// LastNumber never decreases within a period and resets to zero on period
// rollover when the reset policy demands it.
type Sequence struct {
	ID          int64
	Scope       string
	Code        string
	Prefix      string
	Format      string
	Padding     int
	Reset       ResetPolicy
	LastNumber  int64
	PeriodYear  int
	PeriodMonth int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// rollover reports whether the stored period differs from today under the
// sequence's reset policy.
func (s *Sequence) rollover(today time.Time) bool {
	switch s.Reset {
	case ResetYearly:
		return s.PeriodYear != today.Year()
	case ResetMonthly:
		return s.PeriodYear != today.Year() || s.PeriodMonth != int(today.Month())
	default:
		return false
	}
}

// Defaults describes the sequence created lazily on the first allocation
// for a (scope, code) pair. It is passed in explicitly by the caller; the
// allocator never reads ambient configuration.
type Defaults struct {
	Prefix  string
	Format  string
	Padding int
	Reset   ResetPolicy
}

// DefaultFormat is used when a lazily created sequence has no configured
// template.
const DefaultFormat = "{prefix}{year:04d}{month:02d}-{seq}"
