package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/db"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/sales/quotations"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

const pgUniqueViolation = "23505"

// Repository is the persistence port for sales orders.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*SalesOrder, error)
	List(ctx context.Context, status workflow.Status, limit int) ([]SalesOrder, error)
}

// TxRepository operates inside one sales order transaction.
type TxRepository interface {
	Sequences() numbering.TxRepository
	// Quotations exposes the quotation store bound to this transaction;
	// generation flips the source quotation through it.
	Quotations() quotations.TxRepository
	GetForUpdate(ctx context.Context, id int64) (*SalesOrder, error)
	FindByQuotation(ctx context.Context, quotationID int64) (*SalesOrder, error)
	Insert(ctx context.Context, o *SalesOrder) error
	Save(ctx context.Context, o *SalesOrder) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed order store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			tx:     tx,
			seqs:   numbering.NewTxRepository(tx),
			quotes: quotations.NewTxRepository(tx),
		})
	})
}

const orderColumns = `id, uuid, number, quotation_id, customer_id, service_name, origin,
	destination, currency, status, subtotal,
	confirmed_by, confirmed_at, completed_at, resolved_at,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, o *SalesOrder) error {
	return row.Scan(&o.ID, &o.UUID, &o.Number, &o.QuotationID, &o.CustomerID,
		&o.ServiceName, &o.Origin, &o.Destination, &o.Currency, &o.Status, &o.Subtotal,
		&o.ConfirmedBy, &o.ConfirmedAt, &o.CompletedAt, &o.ResolvedAt,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*SalesOrder, error) {
	var o SalesOrder
	err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM sales_orders WHERE id = $1`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.pool, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) List(ctx context.Context, status workflow.Status, limit int) ([]SalesOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + orderColumns + ` FROM sales_orders`
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

	var out []SalesOrder
	for rows.Next() {
		var o SalesOrder
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx     pgx.Tx
	seqs   numbering.TxRepository
	quotes quotations.TxRepository
}

func (t *txRepository) Sequences() numbering.TxRepository   { return t.seqs }
func (t *txRepository) Quotations() quotations.TxRepository { return t.quotes }

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*SalesOrder, error) {
	var o SalesOrder
	err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM sales_orders WHERE id = $1 FOR UPDATE`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, t.tx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *txRepository) FindByQuotation(ctx context.Context, quotationID int64) (*SalesOrder, error) {
	var o SalesOrder
	err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM sales_orders WHERE quotation_id = $1`, quotationID), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *txRepository) Insert(ctx context.Context, o *SalesOrder) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sales_orders
			(uuid, number, quotation_id, customer_id, service_name, origin,
			 destination, currency, status, subtotal, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, o.UUID, o.Number, o.QuotationID, o.CustomerID, o.ServiceName, o.Origin,
		o.Destination, o.Currency, o.Status, o.Subtotal, o.CreatedBy).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrQuotationAlreadyOrdered
		}
		return err
	}
	for i := range o.Lines {
		line := &o.Lines[i]
		err := t.tx.QueryRow(ctx, `
			INSERT INTO sales_order_lines (order_id, description, quantity, unit_price, amount)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, o.ID, line.Description, line.Quantity, line.UnitPrice, line.Amount).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) Save(ctx context.Context, o *SalesOrder) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE sales_orders
		SET status = $1, subtotal = $2,
		    confirmed_by = $3, confirmed_at = $4, completed_at = $5,
		    resolved_at = $6, updated_at = NOW()
		WHERE id = $7
	`, o.Status, o.Subtotal,
		o.ConfirmedBy, o.ConfirmedAt, o.CompletedAt, o.ResolvedAt, o.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q queryer, o *SalesOrder) error {
	rows, err := q.Query(ctx, `
		SELECT id, description, quantity, unit_price, amount
		FROM sales_order_lines
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Amount); err != nil {
			return err
		}
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}
