package numbering

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
)

// memoryRepo serializes allocations with a mutex, matching the exclusive
// row lock the SQL implementation takes.
type memoryRepo struct {
	mu   sync.Mutex
	rows map[string]*Sequence
	next int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[string]*Sequence)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, (*memoryTx)(r))
}

type memoryTx memoryRepo

func (t *memoryTx) LockForUpdate(ctx context.Context, scope, code string, defaults Defaults, today time.Time) (*Sequence, error) {
	key := scope + "/" + code
	if seq, ok := t.rows[key]; ok {
		cp := *seq
		return &cp, nil
	}
	t.next++
	seq := &Sequence{
		ID:          t.next,
		Scope:       scope,
		Code:        code,
		Prefix:      defaults.Prefix,
		Format:      defaults.Format,
		Padding:     defaults.Padding,
		Reset:       defaults.Reset,
		PeriodYear:  today.Year(),
		PeriodMonth: int(today.Month()),
		CreatedAt:   time.Now(),
	}
	t.rows[key] = seq
	cp := *seq
	return &cp, nil
}

func (t *memoryTx) Save(ctx context.Context, seq *Sequence) error {
	for key, row := range t.rows {
		if row.ID == seq.ID {
			cp := *seq
			cp.UpdatedAt = time.Now()
			t.rows[key] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func TestAllocateFormatsAndIncrements(t *testing.T) {
	repo := newMemoryRepo()
	alloc, err := NewAllocator(repo, Defaults{
		Prefix: "FQ",
		Format: "{prefix}{year:04d}{month:02d}-{seq:05d}",
		Reset:  ResetMonthly,
	})
	require.NoError(t, err)

	today := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	n, err := alloc.Allocate(context.Background(), "sales", "quotation", today)
	require.NoError(t, err)
	require.Equal(t, "FQ202503-00001", n)

	n, err = alloc.Allocate(context.Background(), "sales", "quotation", today)
	require.NoError(t, err)
	require.Equal(t, "FQ202503-00002", n)

	// A different code draws from its own counter.
	n, err = alloc.Allocate(context.Background(), "sales", "order", today)
	require.NoError(t, err)
	require.Equal(t, "FQ202503-00001", n)
}

func TestAllocateMonthlyRollover(t *testing.T) {
	repo := newMemoryRepo()
	alloc, err := NewAllocator(repo, Defaults{
		Prefix: "INV",
		Format: "{prefix}{year:04d}{month:02d}-{seq:04d}",
		Reset:  ResetMonthly,
	})
	require.NoError(t, err)

	march := time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)

	n, err := alloc.Allocate(context.Background(), "billing", "invoice", march)
	require.NoError(t, err)
	require.Equal(t, "INV202503-0001", n)

	n, err = alloc.Allocate(context.Background(), "billing", "invoice", march)
	require.NoError(t, err)
	require.Equal(t, "INV202503-0002", n)

	n, err = alloc.Allocate(context.Background(), "billing", "invoice", april)
	require.NoError(t, err)
	require.Equal(t, "INV202504-0001", n)
}

func TestAllocateYearlyRollover(t *testing.T) {
	repo := newMemoryRepo()
	alloc, err := NewAllocator(repo, Defaults{
		Prefix: "JO",
		Format: "{prefix}{year:04d}-{seq:05d}",
		Reset:  ResetYearly,
	})
	require.NoError(t, err)

	dec := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	n, err := alloc.Allocate(context.Background(), "job", "order", dec)
	require.NoError(t, err)
	require.Equal(t, "JO2025-00001", n)

	n, err = alloc.Allocate(context.Background(), "job", "order", jan)
	require.NoError(t, err)
	require.Equal(t, "JO2026-00001", n)
}

func TestAllocateNoReset(t *testing.T) {
	repo := newMemoryRepo()
	alloc, err := NewAllocator(repo, Defaults{
		Prefix: "RC",
		Format: "{prefix}-{seq:06d}",
		Reset:  ResetNone,
	})
	require.NoError(t, err)

	n, err := alloc.Allocate(context.Background(), "billing", "receipt",
		time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "RC-000001", n)

	n, err = alloc.Allocate(context.Background(), "billing", "receipt",
		time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "RC-000002", n)
}

func TestAllocateConcurrentUnique(t *testing.T) {
	repo := newMemoryRepo()
	alloc, err := NewAllocator(repo, Defaults{
		Prefix:  "FQ",
		Format:  "{prefix}-{seq}",
		Padding: 5,
		Reset:   ResetNone,
	})
	require.NoError(t, err)

	const workers = 32
	results := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := alloc.Allocate(context.Background(), "sales", "quotation", time.Now())
			require.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	var got []string
	for n := range results {
		got = append(got, n)
	}
	sort.Strings(got)
	require.Len(t, got, workers)
	for i, n := range got {
		require.Equal(t, "FQ-"+pad(int64(i+1), 5), n)
	}
}

func TestNewAllocatorRejectsBadFormat(t *testing.T) {
	_, err := NewAllocator(newMemoryRepo(), Defaults{Format: "{prefix}{bogus}"})
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestAllocationConflictIsRetryable(t *testing.T) {
	require.ErrorIs(t, ErrAllocationConflict, httpx.ErrConflict)
}
