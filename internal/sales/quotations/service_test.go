package quotations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

type memoryRepo struct {
	mu      sync.Mutex
	rows    map[int64]*Quotation
	purged  []int64
	seqs    map[string]*numbering.Sequence
	nextID  int64
	nextSeq int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]*Quotation), seqs: make(map[string]*numbering.Sequence)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, (*memoryTx)(r))
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (*Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (*memoryTx)(r).GetForUpdate(ctx, id)
}

func (r *memoryRepo) List(ctx context.Context, status workflow.Status, limit int) ([]Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Quotation
	for _, q := range r.rows {
		if status == "" || q.Status == status {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListDueForExpiry(ctx context.Context, today time.Time, limit int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, q := range r.rows {
		if q.Status == StatusSent && q.ValidUntil.Before(today) {
			ids = append(ids, q.ID)
		}
	}
	return ids, nil
}

type memoryTx memoryRepo

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	q, ok := t.rows[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *q
	cp.Lines = append([]Line(nil), q.Lines...)
	return &cp, nil
}

func (t *memoryTx) Insert(ctx context.Context, q *Quotation) error {
	t.nextID++
	q.ID = t.nextID
	cp := *q
	t.rows[q.ID] = &cp
	return nil
}

func (t *memoryTx) Save(ctx context.Context, q *Quotation) error {
	if _, ok := t.rows[q.ID]; !ok {
		return httpx.ErrNotFound
	}
	cp := *q
	t.rows[q.ID] = &cp
	return nil
}

func (t *memoryTx) DeleteCascade(ctx context.Context, id int64) error {
	if _, ok := t.rows[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(t.rows, id)
	t.purged = append(t.purged, id)
	return nil
}

func (t *memoryTx) Sequences() numbering.TxRepository { return (*memorySeqTx)(t) }

type memorySeqTx memoryRepo

func (t *memorySeqTx) LockForUpdate(ctx context.Context, scope, code string, defaults numbering.Defaults, today time.Time) (*numbering.Sequence, error) {
	key := scope + "/" + code
	if seq, ok := t.seqs[key]; ok {
		cp := *seq
		return &cp, nil
	}
	t.nextSeq++
	seq := &numbering.Sequence{
		ID: t.nextSeq, Scope: scope, Code: code,
		Prefix: defaults.Prefix, Format: defaults.Format,
		Padding: defaults.Padding, Reset: defaults.Reset,
		PeriodYear: today.Year(), PeriodMonth: int(today.Month()),
	}
	t.seqs[key] = seq
	cp := *seq
	return &cp, nil
}

func (t *memorySeqTx) Save(ctx context.Context, seq *numbering.Sequence) error {
	for key, row := range t.seqs {
		if row.ID == seq.ID {
			cp := *seq
			t.seqs[key] = &cp
			return nil
		}
	}
	return numbering.ErrNotFound
}

func salesActor(perms ...string) *auth.User {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return &auth.User{ID: 3, IsActive: true, Permissions: set}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(repo *memoryRepo, now time.Time) *Service {
	alloc, err := numbering.NewAllocator(nopAllocRepo{}, numbering.Defaults{
		Prefix: "FQ",
		Format: "{prefix}{year:04d}{month:02d}-{seq:05d}",
		Reset:  numbering.ResetMonthly,
	})
	if err != nil {
		panic(err)
	}
	return NewService(repo, alloc, shared.NopAuditRecorder{}, 7, fixedClock(now))
}

type nopAllocRepo struct{}

func (nopAllocRepo) WithTx(ctx context.Context, fn func(context.Context, numbering.TxRepository) error) error {
	panic("unexpected standalone allocation")
}

func draft(t *testing.T, svc *Service) *Quotation {
	t.Helper()
	q, err := svc.Create(context.Background(), CreateInput{
		CustomerID:  11,
		ServiceName: "Sea Freight FCL",
		Origin:      "Jakarta",
		Destination: "Singapore",
		Currency:    "IDR",
		Lines: []LineInput{
			{Description: "Ocean freight 20ft", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("4500000")},
			{Description: "Document fee", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("150000")},
		},
	}, salesActor())
	require.NoError(t, err)
	return q
}

func TestCreateAllocatesNumberAndSubtotal(t *testing.T) {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(newMemoryRepo(), now)

	q := draft(t, svc)
	require.Equal(t, "FQ202503-00001", q.Number)
	require.Equal(t, StatusDraft, q.Status)
	require.Equal(t, "9150000.00", q.Subtotal.StringFixed(2))
	// Default validity window.
	require.Equal(t, time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC), q.ValidUntil)

	q2 := draft(t, svc)
	require.Equal(t, "FQ202503-00002", q2.Number)
}

func TestCreateRejectsUnknownCurrency(t *testing.T) {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(newMemoryRepo(), now)

	_, err := svc.Create(context.Background(), CreateInput{
		CustomerID: 1,
		Currency:   "ZZZ",
		Lines:      []LineInput{{Description: "x", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}},
	}, salesActor())
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "quotation.currency", ve.Rule)
}

func TestSendRequiresPermission(t *testing.T) {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(newMemoryRepo(), now)
	q := draft(t, svc)

	_, err := svc.Send(context.Background(), q.ID, salesActor())
	require.ErrorIs(t, err, workflow.ErrPermissionDenied)

	sent, err := svc.Send(context.Background(), q.ID, salesActor(rbac.PermQuotationSend))
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	require.Equal(t, int64(3), *sent.SentBy)
}

func TestAcceptOnlyFromSent(t *testing.T) {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(newMemoryRepo(), now)
	q := draft(t, svc)

	_, err := svc.Accept(context.Background(), q.ID, salesActor(rbac.PermQuotationAccept))
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)

	_, err = svc.Send(context.Background(), q.ID, salesActor(rbac.PermQuotationSend))
	require.NoError(t, err)
	accepted, err := svc.Accept(context.Background(), q.ID, salesActor(rbac.PermQuotationAccept))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, accepted.Status)
}

func TestExpireDueSweepsOnlyLapsedSent(t *testing.T) {
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := newTestService(repo, start)

	lapsing := draft(t, svc)
	accepted := draft(t, svc)
	staysDraft := draft(t, svc)
	_ = staysDraft

	_, err := svc.Send(context.Background(), lapsing.ID, salesActor(rbac.PermQuotationSend))
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), accepted.ID, salesActor(rbac.PermQuotationSend))
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), accepted.ID, salesActor(rbac.PermQuotationAccept))
	require.NoError(t, err)

	// Ten days later the sweep runs: past the 7-day default validity.
	later := newTestService(repo, start.AddDate(0, 0, 10))
	n, err := later.ExpireDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := svc.Get(context.Background(), lapsing.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)

	got, err = svc.Get(context.Background(), accepted.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, got.Status)

	// Users cannot expire by hand, superuser included.
	su := &auth.User{ID: 1, Superuser: true}
	fresh := draft(t, svc)
	_, err = svc.Send(context.Background(), fresh.ID, su)
	require.NoError(t, err)
	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, fresh.ID)
		if err != nil {
			return err
		}
		return later.machine.Transition(ctx, q, StatusExpired, su)
	})
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestPurgeExpiredOnly(t *testing.T) {
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := newTestService(repo, start)

	q := draft(t, svc)
	_, err := svc.Send(context.Background(), q.ID, salesActor(rbac.PermQuotationSend))
	require.NoError(t, err)

	purger := salesActor(rbac.PermQuotationPurge)
	err = svc.PurgeExpired(context.Background(), q.ID, purger)
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "quotation.purge_status", ve.Rule)

	later := newTestService(repo, start.AddDate(0, 0, 10))
	_, err = later.ExpireDue(context.Background())
	require.NoError(t, err)

	require.ErrorIs(t, later.PurgeExpired(context.Background(), q.ID, salesActor()), workflow.ErrPermissionDenied)
	require.NoError(t, later.PurgeExpired(context.Background(), q.ID, purger))
	require.Equal(t, []int64{q.ID}, repo.purged)

	_, err = later.Get(context.Background(), q.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
