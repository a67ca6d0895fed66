package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/samudra-erp/samudra-erp/internal/job"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/db"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Repository is the persistence port for invoices and receipts.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, status workflow.Status, limit int) ([]Invoice, error)
	ListByJob(ctx context.Context, jobID int64) ([]Invoice, error)
	GetReceipt(ctx context.Context, id int64) (*Receipt, error)
	ListReceipts(ctx context.Context, invoiceID int64) ([]Receipt, error)
}

// TxRepository operates inside one billing transaction. Jobs exposes the
// job store over the same transaction so generation locks the source row
// and links the invoice atomically.
type TxRepository interface {
	Sequences() numbering.TxRepository
	Jobs() job.TxRepository
	GetForUpdate(ctx context.Context, id int64) (*Invoice, error)
	Insert(ctx context.Context, inv *Invoice) error
	Save(ctx context.Context, inv *Invoice) error
	// SumInvoicedBase sums the tax-exclusive subtotals of every invoice
	// linked to the job, drafts included. The contract value caps this sum.
	SumInvoicedBase(ctx context.Context, jobID int64) (decimal.Decimal, error)
	HasDPInvoice(ctx context.Context, jobID int64) (bool, error)
	GetReceiptForUpdate(ctx context.Context, id int64) (*Receipt, error)
	InsertReceipt(ctx context.Context, rc *Receipt) error
	SaveReceipt(ctx context.Context, rc *Receipt) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed billing store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			tx:   tx,
			seqs: numbering.NewTxRepository(tx),
			jobs: job.NewTxRepository(tx),
		})
	})
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const invoiceColumns = `id, uuid, number, kind, job_order_id, customer_id, currency,
	exchange_rate, subtotal, tax_total, grand_total, total_idr, amount_paid,
	status, confirmed_by, confirmed_at, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row, inv *Invoice) error {
	return row.Scan(&inv.ID, &inv.UUID, &inv.Number, &inv.Kind, &inv.JobOrderID, &inv.CustomerID, &inv.Currency,
		&inv.ExchangeRate, &inv.Subtotal, &inv.TaxTotal, &inv.GrandTotal, &inv.TotalIDR, &inv.AmountPaid,
		&inv.Status, &inv.ConfirmedBy, &inv.ConfirmedAt, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
}

func getInvoice(ctx context.Context, q queryer, id int64, forUpdate bool) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var inv Invoice
	err := scanInvoice(q.QueryRow(ctx, query, id), &inv)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, q, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func loadLines(ctx context.Context, q queryer, inv *Invoice) error {
	rows, err := q.Query(ctx, `
		SELECT id, description, quantity, unit_price, amount, deleted
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id
	`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	lineIdx := map[int64]int{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Amount, &l.Deleted); err != nil {
			return err
		}
		inv.Lines = append(inv.Lines, l)
		lineIdx[l.ID] = len(inv.Lines) - 1
	}
	if err := rows.Err(); err != nil {
		return err
	}

	taxRows, err := q.Query(ctx, `
		SELECT t.id, t.line_id, t.tax_id, t.name, t.rate_percent, t.amount
		FROM invoice_line_taxes t
		JOIN invoice_lines l ON l.id = t.line_id
		WHERE l.invoice_id = $1 ORDER BY t.id
	`, inv.ID)
	if err != nil {
		return err
	}
	defer taxRows.Close()
	for taxRows.Next() {
		var lt LineTax
		var lineID int64
		if err := taxRows.Scan(&lt.ID, &lineID, &lt.TaxID, &lt.Name, &lt.RatePercent, &lt.Amount); err != nil {
			return err
		}
		if i, ok := lineIdx[lineID]; ok {
			inv.Lines[i].Taxes = append(inv.Lines[i].Taxes, lt)
		}
	}
	return taxRows.Err()
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	return getInvoice(ctx, r.pool, id, false)
}

func (r *repository) List(ctx context.Context, status workflow.Status, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	args := []any{limit}
	if status != "" {
		query += ` WHERE status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *repository) ListByJob(ctx context.Context, jobID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE job_order_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

const receiptColumns = `id, uuid, number, invoice_id, amount, method, reference,
	status, posted_by, posted_at, created_by, created_at, updated_at`

func scanReceipt(row pgx.Row, rc *Receipt) error {
	return row.Scan(&rc.ID, &rc.UUID, &rc.Number, &rc.InvoiceID, &rc.Amount, &rc.Method, &rc.Reference,
		&rc.Status, &rc.PostedBy, &rc.PostedAt, &rc.CreatedBy, &rc.CreatedAt, &rc.UpdatedAt)
}

func (r *repository) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	var rc Receipt
	err := scanReceipt(r.pool.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id), &rc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *repository) ListReceipts(ctx context.Context, invoiceID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		var rc Receipt
		if err := scanReceipt(rows, &rc); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx   pgx.Tx
	seqs numbering.TxRepository
	jobs job.TxRepository
}

func (t *txRepository) Sequences() numbering.TxRepository { return t.seqs }
func (t *txRepository) Jobs() job.TxRepository            { return t.jobs }

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	return getInvoice(ctx, t.tx, id, true)
}

func (t *txRepository) Insert(ctx context.Context, inv *Invoice) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices
			(uuid, number, kind, job_order_id, customer_id, currency,
			 exchange_rate, subtotal, tax_total, grand_total, total_idr, amount_paid,
			 status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`, inv.UUID, inv.Number, inv.Kind, inv.JobOrderID, inv.CustomerID, inv.Currency,
		inv.ExchangeRate, inv.Subtotal, inv.TaxTotal, inv.GrandTotal, inv.TotalIDR, inv.AmountPaid,
		inv.Status, inv.CreatedBy).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// Partial unique index: one DP invoice per job.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateDerivedDocument
		}
		return err
	}
	return t.insertLines(ctx, inv)
}

func (t *txRepository) insertLines(ctx context.Context, inv *Invoice) error {
	for i := range inv.Lines {
		l := &inv.Lines[i]
		err := t.tx.QueryRow(ctx, `
			INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, amount, deleted)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, inv.ID, l.Description, l.Quantity, l.UnitPrice, l.Amount, l.Deleted).Scan(&l.ID)
		if err != nil {
			return err
		}
		for j := range l.Taxes {
			lt := &l.Taxes[j]
			err := t.tx.QueryRow(ctx, `
				INSERT INTO invoice_line_taxes (line_id, tax_id, name, rate_percent, amount)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, l.ID, lt.TaxID, lt.Name, lt.RatePercent, lt.Amount).Scan(&lt.ID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *txRepository) Save(ctx context.Context, inv *Invoice) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices
		SET exchange_rate = $1, subtotal = $2, tax_total = $3, grand_total = $4,
		    total_idr = $5, amount_paid = $6, status = $7,
		    confirmed_by = $8, confirmed_at = $9, updated_at = NOW()
		WHERE id = $10
	`, inv.ExchangeRate, inv.Subtotal, inv.TaxTotal, inv.GrandTotal,
		inv.TotalIDR, inv.AmountPaid, inv.Status,
		inv.ConfirmedBy, inv.ConfirmedAt, inv.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (t *txRepository) SumInvoicedBase(ctx context.Context, jobID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(subtotal), 0) FROM invoices WHERE job_order_id = $1
	`, jobID).Scan(&sum)
	return sum, err
}

func (t *txRepository) HasDPInvoice(ctx context.Context, jobID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM invoices WHERE job_order_id = $1 AND kind = $2)
	`, jobID, KindDP).Scan(&exists)
	return exists, err
}

func (t *txRepository) GetReceiptForUpdate(ctx context.Context, id int64) (*Receipt, error) {
	var rc Receipt
	err := scanReceipt(t.tx.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = $1 FOR UPDATE`, id), &rc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (t *txRepository) InsertReceipt(ctx context.Context, rc *Receipt) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO receipts (uuid, number, invoice_id, amount, method, reference, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, rc.UUID, rc.Number, rc.InvoiceID, rc.Amount, rc.Method, rc.Reference, rc.Status, rc.CreatedBy).
		Scan(&rc.ID, &rc.CreatedAt, &rc.UpdatedAt)
}

func (t *txRepository) SaveReceipt(ctx context.Context, rc *Receipt) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE receipts
		SET status = $1, amount = $2, posted_by = $3, posted_at = $4, updated_at = NOW()
		WHERE id = $5
	`, rc.Status, rc.Amount, rc.PostedBy, rc.PostedAt, rc.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
