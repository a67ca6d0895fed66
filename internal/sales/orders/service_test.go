package orders

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
	"github.com/samudra-erp/samudra-erp/internal/sales/quotations"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// memoryStore backs both the quotation and order fakes so cross-module
// generation runs against one shared state, like one database.
type memoryStore struct {
	mu      sync.Mutex
	quotes  map[int64]*quotations.Quotation
	orders  map[int64]*SalesOrder
	seqs    map[string]*numbering.Sequence
	nextID  int64
	nextSeq int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		quotes: make(map[int64]*quotations.Quotation),
		orders: make(map[int64]*SalesOrder),
		seqs:   make(map[string]*numbering.Sequence),
	}
}

// quotation side

type quoteRepo struct{ s *memoryStore }

func (r quoteRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx quotations.TxRepository) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(ctx, quoteTx{r.s})
}

func (r quoteRepo) GetByID(ctx context.Context, id int64) (*quotations.Quotation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return quoteTx{r.s}.GetForUpdate(ctx, id)
}

func (r quoteRepo) List(ctx context.Context, status workflow.Status, limit int) ([]quotations.Quotation, error) {
	return nil, nil
}

func (r quoteRepo) ListDueForExpiry(ctx context.Context, today time.Time, limit int) ([]int64, error) {
	return nil, nil
}

type quoteTx struct{ s *memoryStore }

func (t quoteTx) Sequences() numbering.TxRepository { return seqTx{t.s} }

func (t quoteTx) GetForUpdate(ctx context.Context, id int64) (*quotations.Quotation, error) {
	q, ok := t.s.quotes[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *q
	cp.Lines = append([]quotations.Line(nil), q.Lines...)
	return &cp, nil
}

func (t quoteTx) Insert(ctx context.Context, q *quotations.Quotation) error {
	t.s.nextID++
	q.ID = t.s.nextID
	cp := *q
	t.s.quotes[q.ID] = &cp
	return nil
}

func (t quoteTx) Save(ctx context.Context, q *quotations.Quotation) error {
	if _, ok := t.s.quotes[q.ID]; !ok {
		return httpx.ErrNotFound
	}
	cp := *q
	t.s.quotes[q.ID] = &cp
	return nil
}

func (t quoteTx) DeleteCascade(ctx context.Context, id int64) error {
	delete(t.s.quotes, id)
	return nil
}

// order side

type orderRepo struct{ s *memoryStore }

func (r orderRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(ctx, orderTx{r.s})
}

func (r orderRepo) GetByID(ctx context.Context, id int64) (*SalesOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return orderTx{r.s}.GetForUpdate(ctx, id)
}

func (r orderRepo) List(ctx context.Context, status workflow.Status, limit int) ([]SalesOrder, error) {
	return nil, nil
}

type orderTx struct{ s *memoryStore }

func (t orderTx) Sequences() numbering.TxRepository   { return seqTx{t.s} }
func (t orderTx) Quotations() quotations.TxRepository { return quoteTx{t.s} }

func (t orderTx) GetForUpdate(ctx context.Context, id int64) (*SalesOrder, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp, nil
}

func (t orderTx) FindByQuotation(ctx context.Context, quotationID int64) (*SalesOrder, error) {
	for _, o := range t.s.orders {
		if o.QuotationID != nil && *o.QuotationID == quotationID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (t orderTx) Insert(ctx context.Context, o *SalesOrder) error {
	if o.QuotationID != nil {
		if _, err := t.FindByQuotation(ctx, *o.QuotationID); err == nil {
			return ErrQuotationAlreadyOrdered
		}
	}
	t.s.nextID++
	o.ID = t.s.nextID
	cp := *o
	t.s.orders[o.ID] = &cp
	return nil
}

func (t orderTx) Save(ctx context.Context, o *SalesOrder) error {
	if _, ok := t.s.orders[o.ID]; !ok {
		return httpx.ErrNotFound
	}
	cp := *o
	t.s.orders[o.ID] = &cp
	return nil
}

// sequence side

type seqTx struct{ s *memoryStore }

func (t seqTx) LockForUpdate(ctx context.Context, scope, code string, defaults numbering.Defaults, today time.Time) (*numbering.Sequence, error) {
	key := scope + "/" + code
	if seq, ok := t.s.seqs[key]; ok {
		cp := *seq
		return &cp, nil
	}
	t.s.nextSeq++
	seq := &numbering.Sequence{
		ID: t.s.nextSeq, Scope: scope, Code: code,
		Prefix: defaults.Prefix, Format: defaults.Format,
		Padding: defaults.Padding, Reset: defaults.Reset,
		PeriodYear: today.Year(), PeriodMonth: int(today.Month()),
	}
	t.s.seqs[key] = seq
	cp := *seq
	return &cp, nil
}

func (t seqTx) Save(ctx context.Context, seq *numbering.Sequence) error {
	for key, row := range t.s.seqs {
		if row.ID == seq.ID {
			cp := *seq
			t.s.seqs[key] = &cp
			return nil
		}
	}
	return numbering.ErrNotFound
}

type nopAllocRepo struct{}

func (nopAllocRepo) WithTx(ctx context.Context, fn func(context.Context, numbering.TxRepository) error) error {
	panic("unexpected standalone allocation")
}

func fullActor() *auth.User {
	return &auth.User{ID: 5, IsActive: true, Superuser: true}
}

func newServices(t *testing.T, now time.Time) (*quotations.Service, *Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	alloc, err := numbering.NewAllocator(nopAllocRepo{}, numbering.Defaults{
		Prefix: "SO",
		Format: "{prefix}{year:04d}{month:02d}-{seq:05d}",
		Reset:  numbering.ResetMonthly,
	})
	require.NoError(t, err)
	clock := func() time.Time { return now }
	quoteSvc := quotations.NewService(quoteRepo{store}, alloc, shared.NopAuditRecorder{}, 7, clock)
	orderSvc := NewService(orderRepo{store}, quoteSvc, alloc, shared.NopAuditRecorder{}, clock)
	return quoteSvc, orderSvc, store
}

func acceptedQuotation(t *testing.T, quoteSvc *quotations.Service) *quotations.Quotation {
	t.Helper()
	actor := fullActor()
	q, err := quoteSvc.Create(context.Background(), quotations.CreateInput{
		CustomerID:  21,
		ServiceName: "Air Freight",
		Origin:      "Surabaya",
		Destination: "Medan",
		Currency:    "IDR",
		Lines: []quotations.LineInput{
			{Description: "Air freight 120kg", Quantity: decimal.NewFromInt(120), UnitPrice: decimal.RequireFromString("25000")},
		},
	}, actor)
	require.NoError(t, err)
	_, err = quoteSvc.Send(context.Background(), q.ID, actor)
	require.NoError(t, err)
	accepted, err := quoteSvc.Accept(context.Background(), q.ID, actor)
	require.NoError(t, err)
	return accepted
}

func TestGenerateFromQuotation(t *testing.T) {
	now := time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)
	quoteSvc, orderSvc, store := newServices(t, now)
	quote := acceptedQuotation(t, quoteSvc)

	order, err := orderSvc.GenerateFromQuotation(context.Background(), quote.ID, fullActor())
	require.NoError(t, err)
	require.Equal(t, "SO202504-00001", order.Number)
	require.Equal(t, workflow.StatusDraft, order.Status)
	require.Equal(t, quote.ID, *order.QuotationID)
	require.Len(t, order.Lines, 1)
	require.Equal(t, "3000000.00", order.Subtotal.StringFixed(2))

	flipped := store.quotes[quote.ID]
	require.Equal(t, quotations.StatusOrdered, flipped.Status)
}

func TestGenerateTwiceFails(t *testing.T) {
	now := time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)
	quoteSvc, orderSvc, _ := newServices(t, now)
	quote := acceptedQuotation(t, quoteSvc)

	_, err := orderSvc.GenerateFromQuotation(context.Background(), quote.ID, fullActor())
	require.NoError(t, err)
	_, err = orderSvc.GenerateFromQuotation(context.Background(), quote.ID, fullActor())
	require.ErrorIs(t, err, ErrQuotationAlreadyOrdered)
}

func TestGenerateRequiresAcceptedQuotation(t *testing.T) {
	now := time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)
	quoteSvc, orderSvc, store := newServices(t, now)
	actor := fullActor()

	q, err := quoteSvc.Create(context.Background(), quotations.CreateInput{
		CustomerID:  21,
		ServiceName: "Air Freight",
		Origin:      "Surabaya",
		Destination: "Medan",
		Currency:    "IDR",
		Lines: []quotations.LineInput{
			{Description: "Air freight", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	}, actor)
	require.NoError(t, err)

	_, err = orderSvc.GenerateFromQuotation(context.Background(), q.ID, actor)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
	// The quotation never flipped.
	require.Equal(t, quotations.StatusDraft, store.quotes[q.ID].Status)
}

func TestOrderLifecycle(t *testing.T) {
	now := time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)
	quoteSvc, orderSvc, _ := newServices(t, now)
	quote := acceptedQuotation(t, quoteSvc)
	actor := fullActor()

	order, err := orderSvc.GenerateFromQuotation(context.Background(), quote.ID, actor)
	require.NoError(t, err)

	order, err = orderSvc.Confirm(context.Background(), order.ID, actor)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusConfirmed, order.Status)
	require.NotNil(t, order.ConfirmedAt)

	order, err = orderSvc.StartProgress(context.Background(), order.ID, actor)
	require.NoError(t, err)
	order, err = orderSvc.Hold(context.Background(), order.ID, actor)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusOnHold, order.Status)
	order, err = orderSvc.StartProgress(context.Background(), order.ID, actor)
	require.NoError(t, err)
	order, err = orderSvc.Complete(context.Background(), order.ID, actor)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)

	_, err = orderSvc.Cancel(context.Background(), order.ID, actor)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestConfirmRequiresPermission(t *testing.T) {
	now := time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)
	quoteSvc, orderSvc, _ := newServices(t, now)
	quote := acceptedQuotation(t, quoteSvc)
	order, err := orderSvc.GenerateFromQuotation(context.Background(), quote.ID, fullActor())
	require.NoError(t, err)

	clerk := &auth.User{ID: 8, IsActive: true, Permissions: map[string]struct{}{}}
	_, err = orderSvc.Confirm(context.Background(), order.ID, clerk)
	require.ErrorIs(t, err, workflow.ErrPermissionDenied)

	confirmer := &auth.User{ID: 8, IsActive: true, Permissions: map[string]struct{}{
		rbac.PermOrderConfirm: {},
	}}
	_, err = orderSvc.Confirm(context.Background(), order.ID, confirmer)
	require.NoError(t, err)
}
