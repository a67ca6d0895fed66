package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/samudra-erp/samudra-erp/internal/accounting/journals"
	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/job"
	"github.com/samudra-erp/samudra-erp/internal/masterdata/taxes"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// memoryStore backs the billing and job fakes so generation runs against
// one shared state, like one database.
type memoryStore struct {
	mu       sync.Mutex
	invoices map[int64]*Invoice
	receipts map[int64]*Receipt
	jobs     map[int64]*job.JobOrder
	seqs     map[string]*numbering.Sequence
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		invoices: make(map[int64]*Invoice),
		receipts: make(map[int64]*Receipt),
		jobs:     make(map[int64]*job.JobOrder),
		seqs:     make(map[string]*numbering.Sequence),
	}
}

type billingRepo struct{ s *memoryStore }

func (r billingRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(ctx, billingTx{r.s})
}

func (r billingRepo) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return billingTx{r.s}.GetForUpdate(ctx, id)
}

func (r billingRepo) List(ctx context.Context, status workflow.Status, limit int) ([]Invoice, error) {
	return nil, nil
}

func (r billingRepo) ListByJob(ctx context.Context, jobID int64) ([]Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []Invoice
	for _, inv := range r.s.invoices {
		if inv.JobOrderID != nil && *inv.JobOrderID == jobID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r billingRepo) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return billingTx{r.s}.GetReceiptForUpdate(ctx, id)
}

func (r billingRepo) ListReceipts(ctx context.Context, invoiceID int64) ([]Receipt, error) {
	return nil, nil
}

type billingTx struct{ s *memoryStore }

func (t billingTx) Sequences() numbering.TxRepository { return seqTx{t.s} }
func (t billingTx) Jobs() job.TxRepository            { return jobTx{t.s} }

func (t billingTx) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := t.s.invoices[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *inv
	cp.Lines = append([]Line(nil), inv.Lines...)
	return &cp, nil
}

func (t billingTx) Insert(ctx context.Context, inv *Invoice) error {
	if inv.Kind == KindDP && inv.JobOrderID != nil {
		for _, other := range t.s.invoices {
			if other.Kind == KindDP && other.JobOrderID != nil && *other.JobOrderID == *inv.JobOrderID {
				return ErrDuplicateDerivedDocument
			}
		}
	}
	t.s.nextID++
	inv.ID = t.s.nextID
	cp := *inv
	cp.Lines = append([]Line(nil), inv.Lines...)
	t.s.invoices[inv.ID] = &cp
	return nil
}

func (t billingTx) Save(ctx context.Context, inv *Invoice) error {
	if _, ok := t.s.invoices[inv.ID]; !ok {
		return httpx.ErrNotFound
	}
	cp := *inv
	cp.Lines = append([]Line(nil), inv.Lines...)
	t.s.invoices[inv.ID] = &cp
	return nil
}

func (t billingTx) SumInvoicedBase(ctx context.Context, jobID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range t.s.invoices {
		if inv.JobOrderID != nil && *inv.JobOrderID == jobID {
			sum = sum.Add(inv.Subtotal)
		}
	}
	return sum, nil
}

func (t billingTx) HasDPInvoice(ctx context.Context, jobID int64) (bool, error) {
	for _, inv := range t.s.invoices {
		if inv.Kind == KindDP && inv.JobOrderID != nil && *inv.JobOrderID == jobID {
			return true, nil
		}
	}
	return false, nil
}

func (t billingTx) GetReceiptForUpdate(ctx context.Context, id int64) (*Receipt, error) {
	rc, ok := t.s.receipts[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *rc
	return &cp, nil
}

func (t billingTx) InsertReceipt(ctx context.Context, rc *Receipt) error {
	t.s.nextID++
	rc.ID = t.s.nextID
	cp := *rc
	t.s.receipts[rc.ID] = &cp
	return nil
}

func (t billingTx) SaveReceipt(ctx context.Context, rc *Receipt) error {
	if _, ok := t.s.receipts[rc.ID]; !ok {
		return httpx.ErrNotFound
	}
	cp := *rc
	t.s.receipts[rc.ID] = &cp
	return nil
}

// job side

type jobTx struct{ s *memoryStore }

func (t jobTx) Sequences() numbering.TxRepository { return seqTx{t.s} }

func (t jobTx) GetForUpdate(ctx context.Context, id int64) (*job.JobOrder, error) {
	j, ok := t.s.jobs[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (t jobTx) Insert(ctx context.Context, j *job.JobOrder) error {
	t.s.nextID++
	j.ID = t.s.nextID
	cp := *j
	t.s.jobs[j.ID] = &cp
	return nil
}

func (t jobTx) Save(ctx context.Context, j *job.JobOrder) error {
	if _, ok := t.s.jobs[j.ID]; !ok {
		return httpx.ErrNotFound
	}
	cp := *j
	t.s.jobs[j.ID] = &cp
	return nil
}

func (t jobTx) GetFeePeriodForUpdate(ctx context.Context, year int, month time.Month) (*job.FeePeriod, error) {
	return nil, httpx.ErrNotFound
}

func (t jobTx) InsertFeePeriod(ctx context.Context, p *job.FeePeriod) error { return nil }
func (t jobTx) SaveFeePeriod(ctx context.Context, p *job.FeePeriod) error   { return nil }

// sequence side

type seqTx struct{ s *memoryStore }

func (t seqTx) LockForUpdate(ctx context.Context, scope, code string, defaults numbering.Defaults, today time.Time) (*numbering.Sequence, error) {
	key := scope + "/" + code
	if seq, ok := t.s.seqs[key]; ok {
		cp := *seq
		return &cp, nil
	}
	t.s.nextID++
	seq := &numbering.Sequence{
		ID: t.s.nextID, Scope: scope, Code: code,
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

// memoryGate mimics the journal gate's one-entry-per-source rule.
type memoryGate struct {
	entries map[string]*journals.Entry
}

func newMemoryGate() *memoryGate {
	return &memoryGate{entries: make(map[string]*journals.Entry)}
}

func gateKey(module string, id uuid.UUID) string { return module + ":" + id.String() }

func (g *memoryGate) Post(ctx context.Context, input journals.PostInput) (*journals.Entry, error) {
	key := gateKey(input.SourceModule, input.SourceID)
	if _, ok := g.entries[key]; ok {
		return nil, journals.ErrSourceAlreadyLinked
	}
	e := &journals.Entry{
		ID:           int64(len(g.entries) + 1),
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Description:  input.Description,
		Status:       journals.StatusPosted,
		Lines:        input.Lines,
	}
	g.entries[key] = e
	return e, nil
}

func (g *memoryGate) HasLinkedEntry(ctx context.Context, module string, sourceID uuid.UUID) (bool, error) {
	_, ok := g.entries[gateKey(module, sourceID)]
	return ok, nil
}

type fixedTaxes struct{ taxes map[int64]taxes.Tax }

func (f fixedTaxes) GetByIDs(ctx context.Context, ids []int64) ([]taxes.Tax, error) {
	var out []taxes.Tax
	for _, id := range ids {
		if t, ok := f.taxes[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func billingActor() *auth.User {
	return &auth.User{ID: 7, IsActive: true, Superuser: true}
}

func newService(t *testing.T, now time.Time) (*Service, *memoryStore, *memoryGate) {
	t.Helper()
	store := newMemoryStore()
	gate := newMemoryGate()
	alloc, err := numbering.NewAllocator(nopAllocRepo{}, numbering.Defaults{
		Prefix: "INV",
		Format: "{prefix}{year:04d}{month:02d}-{seq:05d}",
		Reset:  numbering.ResetMonthly,
	})
	require.NoError(t, err)
	catalog := fixedTaxes{taxes: map[int64]taxes.Tax{
		1: {ID: 1, Code: "PPN", Name: "VAT 11%", RatePercent: decimal.RequireFromString("11"), Active: true},
	}}
	calc := NewCalculator(&fixedRates{rates: map[string]string{"USD": "15000"}})
	svc := NewService(billingRepo{store}, catalog, calc, alloc, gate, shared.NopAuditRecorder{}, func() time.Time { return now })
	return svc, store, gate
}

func seedJob(store *memoryStore, status workflow.Status, contract, dpPercent string) *job.JobOrder {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.nextID++
	j := &job.JobOrder{
		ID: store.nextID, UUID: uuid.New(), Number: "JO202505-00001",
		CustomerID:    31,
		ServiceName:   "Sea Freight FCL",
		Pickup:        "Tanjung Priok",
		Delivery:      "Makassar",
		Currency:      "IDR",
		ContractValue: decimal.RequireFromString(contract),
		DPPercent:     decimal.RequireFromString(dpPercent),
		Status:        status,
	}
	store.jobs[j.ID] = j
	return j
}

func TestGenerateDPInvoice(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP, TaxIDs: []int64{1}}, billingActor())
	require.NoError(t, err)
	require.Equal(t, "INV202505-00001", inv.Number)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, KindDP, inv.Kind)
	require.Len(t, inv.Lines, 1)
	require.Contains(t, inv.Lines[0].Description, j.Number)
	require.Equal(t, "45000000.00", inv.Subtotal.StringFixed(2))
	require.Equal(t, "4950000.00", inv.TaxTotal.StringFixed(2))
	require.Equal(t, "49950000.00", inv.GrandTotal.StringFixed(2))
	require.Equal(t, "49950000.00", inv.TotalIDR.StringFixed(2))
}

func TestGenerateSecondDPFails(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	_, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, actor)
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, actor)
	require.ErrorIs(t, err, ErrDuplicateDerivedDocument)
}

func TestGenerateDPNeedsPercentage(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "0")

	_, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, billingActor())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "invoice.dp_eligibility", verr.Rule)
}

func TestGenerateFinalInvoicesRemainder(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	_, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, actor)
	require.NoError(t, err)

	final, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindFinal}, actor)
	require.NoError(t, err)
	require.Equal(t, "105000000.00", final.Subtotal.StringFixed(2))

	_, err = svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindFinal}, actor)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "invoice.nothing_remaining", verr.Rule)
}

func TestGenerateRegularOverbilling(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	_, err := svc.Generate(context.Background(), j.ID, GenerateInput{
		Kind: KindRegular, Amount: decimal.RequireFromString("150000000.01"),
	}, actor)
	require.ErrorIs(t, err, ErrContractValueExceeded)

	_, err = svc.Generate(context.Background(), j.ID, GenerateInput{
		Kind: KindRegular, Amount: decimal.RequireFromString("150000000"),
	}, actor)
	require.NoError(t, err)
}

func TestGenerateRequiresActiveJob(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusDraft, "150000000", "30")

	_, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, billingActor())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "invoice.job_status", verr.Rule)
}

func TestConfirmPostsReceivable(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, gate := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP, TaxIDs: []int64{1}}, actor)
	require.NoError(t, err)

	inv, err = svc.Confirm(context.Background(), inv.ID, actor)
	require.NoError(t, err)
	require.Equal(t, StatusSent, inv.Status)
	require.NotNil(t, inv.ConfirmedAt)

	entry := gate.entries[gateKey(sourceInvoice, inv.UUID)]
	require.NotNil(t, entry)
	require.Len(t, entry.Lines, 3)
	require.Equal(t, accountReceivables, entry.Lines[0].AccountCode)
	require.Equal(t, "49950000.00", entry.Lines[0].Debit.StringFixed(2))
	require.Equal(t, accountRevenue, entry.Lines[1].AccountCode)
	require.Equal(t, "45000000.00", entry.Lines[1].Credit.StringFixed(2))
	require.Equal(t, accountTaxPayable, entry.Lines[2].AccountCode)
	require.Equal(t, "4950000.00", entry.Lines[2].Credit.StringFixed(2))

	_, err = svc.Confirm(context.Background(), inv.ID, actor)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestConfirmBlockedWhenJournalAlreadyLinked(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, gate := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, actor)
	require.NoError(t, err)

	// A stray entry already claims this invoice.
	_, err = gate.Post(context.Background(), journals.PostInput{SourceModule: sourceInvoice, SourceID: inv.UUID})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), inv.ID, actor)
	var guardErr *workflow.GuardError
	require.ErrorAs(t, err, &guardErr)
	require.Equal(t, "invoice.journal_linked", guardErr.Guard)
}

func TestConfirmRequiresPermission(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, billingActor())
	require.NoError(t, err)

	clerk := &auth.User{ID: 3, IsActive: true, Permissions: map[string]struct{}{}}
	_, err = svc.Confirm(context.Background(), inv.ID, clerk)
	require.ErrorIs(t, err, workflow.ErrPermissionDenied)

	confirmer := &auth.User{ID: 3, IsActive: true, Permissions: map[string]struct{}{
		rbac.PermInvoiceConfirm: {},
	}}
	_, err = svc.Confirm(context.Background(), inv.ID, confirmer)
	require.NoError(t, err)
}

func TestReceiptsDrivePaymentStatus(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, gate := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP, TaxIDs: []int64{1}}, actor)
	require.NoError(t, err)
	inv, err = svc.Confirm(context.Background(), inv.ID, actor)
	require.NoError(t, err)

	rc, err := svc.CreateReceipt(context.Background(), ReceiptInput{
		InvoiceID: inv.ID, Amount: decimal.RequireFromString("20000000"), Method: "TRANSFER",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, ReceiptDraft, rc.Status)

	rc, err = svc.PostReceipt(context.Background(), rc.ID, actor)
	require.NoError(t, err)
	require.Equal(t, ReceiptPosted, rc.Status)
	require.Equal(t, StatusPartial, store.invoices[inv.ID].Status)
	require.Equal(t, "20000000.00", store.invoices[inv.ID].AmountPaid.StringFixed(2))

	entry := gate.entries[gateKey(sourceReceipt, rc.UUID)]
	require.NotNil(t, entry)
	require.Equal(t, accountCash, entry.Lines[0].AccountCode)
	require.Equal(t, "20000000.00", entry.Lines[0].Debit.StringFixed(2))

	rest, err := svc.CreateReceipt(context.Background(), ReceiptInput{
		InvoiceID: inv.ID, Amount: decimal.RequireFromString("29950000"), Method: "TRANSFER",
	}, actor)
	require.NoError(t, err)
	_, err = svc.PostReceipt(context.Background(), rest.ID, actor)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, store.invoices[inv.ID].Status)
}

func TestPaymentRecomputeRevertsToSent(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP, TaxIDs: []int64{1}}, actor)
	require.NoError(t, err)
	inv, err = svc.Confirm(context.Background(), inv.ID, actor)
	require.NoError(t, err)

	rc, err := svc.CreateReceipt(context.Background(), ReceiptInput{
		InvoiceID: inv.ID, Amount: decimal.RequireFromString("20000000"), Method: "TRANSFER",
	}, actor)
	require.NoError(t, err)
	_, err = svc.PostReceipt(context.Background(), rc.ID, actor)
	require.NoError(t, err)

	// A reversed allocation hands the money back; the invoice drops out
	// of PARTIAL.
	paid := store.invoices[inv.ID]
	require.Equal(t, StatusPartial, paid.Status)
	paid.AmountPaid = decimal.Zero
	require.NoError(t, svc.recomputePayment(context.Background(), paid))
	require.Equal(t, StatusSent, paid.Status)

	paid.AmountPaid = paid.GrandTotal
	require.NoError(t, svc.recomputePayment(context.Background(), paid))
	require.Equal(t, StatusPaid, paid.Status)

	paid.AmountPaid = decimal.Zero
	require.NoError(t, svc.recomputePayment(context.Background(), paid))
	require.Equal(t, StatusSent, paid.Status)
}

func TestPaymentRecomputeSkipsDraft(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, actor)
	require.NoError(t, err)

	inv.AmountPaid = decimal.RequireFromString("1000000")
	require.NoError(t, svc.recomputePayment(context.Background(), inv))
	require.Equal(t, StatusDraft, inv.Status)
}

func TestReceiptNeedsSentInvoice(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, actor)
	require.NoError(t, err)

	_, err = svc.CreateReceipt(context.Background(), ReceiptInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(1000), Method: "CASH",
	}, actor)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "receipt.invoice_status", verr.Rule)
}

func TestPostReceiptChecks(t *testing.T) {
	now := time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	svc, store, _ := newService(t, now)
	j := seedJob(store, workflow.StatusConfirmed, "150000000", "30")
	actor := billingActor()

	inv, err := svc.Generate(context.Background(), j.ID, GenerateInput{Kind: KindDP}, actor)
	require.NoError(t, err)
	_, err = svc.Confirm(context.Background(), inv.ID, actor)
	require.NoError(t, err)
	rc, err := svc.CreateReceipt(context.Background(), ReceiptInput{
		InvoiceID: inv.ID, Amount: decimal.NewFromInt(1000), Method: "CASH",
	}, actor)
	require.NoError(t, err)

	clerk := &auth.User{ID: 3, IsActive: true, Permissions: map[string]struct{}{}}
	_, err = svc.PostReceipt(context.Background(), rc.ID, clerk)
	require.ErrorIs(t, err, workflow.ErrPermissionDenied)

	_, err = svc.PostReceipt(context.Background(), rc.ID, actor)
	require.NoError(t, err)

	// Double post.
	_, err = svc.PostReceipt(context.Background(), rc.ID, actor)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "receipt.status", verr.Rule)
}
