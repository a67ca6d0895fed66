package procurement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/db"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Repository is the persistence port for purchase orders.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*PurchaseOrder, error)
	List(ctx context.Context, status workflow.Status, limit int) ([]PurchaseOrder, error)
}

// TxRepository operates inside one purchase order transaction.
type TxRepository interface {
	Sequences() numbering.TxRepository
	GetForUpdate(ctx context.Context, id int64) (*PurchaseOrder, error)
	Insert(ctx context.Context, p *PurchaseOrder) error
	Save(ctx context.Context, p *PurchaseOrder) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed purchase order store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, seqs: numbering.NewTxRepository(tx)})
	})
}

const poColumns = `id, uuid, number, vendor_id, job_order_id, currency, status, subtotal,
	confirmed_by, confirmed_at, completed_at, resolved_at,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPO(row rowScanner, p *PurchaseOrder) error {
	return row.Scan(&p.ID, &p.UUID, &p.Number, &p.VendorID, &p.JobOrderID, &p.Currency,
		&p.Status, &p.Subtotal,
		&p.ConfirmedBy, &p.ConfirmedAt, &p.CompletedAt, &p.ResolvedAt,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*PurchaseOrder, error) {
	var p PurchaseOrder
	err := scanPO(r.pool.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.pool, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, status workflow.Status, limit int) ([]PurchaseOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + poColumns + ` FROM purchase_orders`
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

	var out []PurchaseOrder
	for rows.Next() {
		var p PurchaseOrder
		if err := scanPO(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx   pgx.Tx
	seqs numbering.TxRepository
}

func (t *txRepository) Sequences() numbering.TxRepository { return t.seqs }

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*PurchaseOrder, error) {
	var p PurchaseOrder
	err := scanPO(t.tx.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, t.tx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txRepository) Insert(ctx context.Context, p *PurchaseOrder) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO purchase_orders
			(uuid, number, vendor_id, job_order_id, currency, status, subtotal, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.UUID, p.Number, p.VendorID, p.JobOrderID, p.Currency, p.Status, p.Subtotal, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range p.Lines {
		line := &p.Lines[i]
		err := t.tx.QueryRow(ctx, `
			INSERT INTO purchase_order_lines (purchase_order_id, description, quantity, unit_price, amount)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, p.ID, line.Description, line.Quantity, line.UnitPrice, line.Amount).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) Save(ctx context.Context, p *PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE purchase_orders
		SET status = $1, subtotal = $2,
		    confirmed_by = $3, confirmed_at = $4, completed_at = $5,
		    resolved_at = $6, updated_at = NOW()
		WHERE id = $7
	`, p.Status, p.Subtotal,
		p.ConfirmedBy, p.ConfirmedAt, p.CompletedAt, p.ResolvedAt, p.ID)
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

func loadLines(ctx context.Context, q queryer, p *PurchaseOrder) error {
	rows, err := q.Query(ctx, `
		SELECT id, description, quantity, unit_price, amount
		FROM purchase_order_lines
		WHERE purchase_order_id = $1
		ORDER BY id
	`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Amount); err != nil {
			return err
		}
		p.Lines = append(p.Lines, l)
	}
	return rows.Err()
}
