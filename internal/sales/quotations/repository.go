package quotations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/db"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Repository is the persistence port for quotations.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, status workflow.Status, limit int) ([]Quotation, error)
	// ListDueForExpiry returns ids of SENT quotations whose validity date
	// is strictly before the given day.
	ListDueForExpiry(ctx context.Context, today time.Time, limit int) ([]int64, error)
}

// TxRepository operates inside one quotation transaction.
type TxRepository interface {
	// Sequences exposes the number counter store bound to this
	// transaction.
	Sequences() numbering.TxRepository
	GetForUpdate(ctx context.Context, id int64) (*Quotation, error)
	Insert(ctx context.Context, q *Quotation) error
	Save(ctx context.Context, q *Quotation) error
	// DeleteCascade removes an expired quotation together with any job
	// order that was drafted from it.
	DeleteCascade(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed quotation store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, seqs: numbering.NewTxRepository(tx)})
	})
}

const quotationColumns = `id, uuid, number, customer_id, service_name, origin, destination,
	currency, valid_until, status, subtotal,
	sent_by, sent_at, accepted_by, accepted_at, resolved_at,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuotation(row rowScanner, q *Quotation) error {
	return row.Scan(&q.ID, &q.UUID, &q.Number, &q.CustomerID, &q.ServiceName, &q.Origin,
		&q.Destination, &q.Currency, &q.ValidUntil, &q.Status, &q.Subtotal,
		&q.SentBy, &q.SentAt, &q.AcceptedBy, &q.AcceptedAt, &q.ResolvedAt,
		&q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Quotation, error) {
	var q Quotation
	err := scanQuotation(r.pool.QueryRow(ctx,
		`SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id), &q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.pool, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repository) List(ctx context.Context, status workflow.Status, limit int) ([]Quotation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + quotationColumns + ` FROM quotations`
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

	var out []Quotation
	for rows.Next() {
		var q Quotation
		if err := scanQuotation(rows, &q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repository) ListDueForExpiry(ctx context.Context, today time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM quotations
		WHERE status = $1 AND valid_until < $2
		ORDER BY id
		LIMIT $3
	`, StatusSent, today, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type txRepository struct {
	tx   pgx.Tx
	seqs numbering.TxRepository
}

// NewTxRepository binds the quotation store to an existing transaction so
// sales order generation can flip a quotation inside its own atomic unit.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, seqs: numbering.NewTxRepository(tx)}
}

func (t *txRepository) Sequences() numbering.TxRepository { return t.seqs }

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	var q Quotation
	err := scanQuotation(t.tx.QueryRow(ctx,
		`SELECT `+quotationColumns+` FROM quotations WHERE id = $1 FOR UPDATE`, id), &q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, t.tx, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (t *txRepository) Insert(ctx context.Context, q *Quotation) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO quotations
			(uuid, number, customer_id, service_name, origin, destination,
			 currency, valid_until, status, subtotal, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, q.UUID, q.Number, q.CustomerID, q.ServiceName, q.Origin, q.Destination,
		q.Currency, q.ValidUntil, q.Status, q.Subtotal, q.CreatedBy).
		Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return err
	}
	return saveLines(ctx, t.tx, q)
}

func (t *txRepository) Save(ctx context.Context, q *Quotation) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE quotations
		SET status = $1, subtotal = $2, valid_until = $3,
		    sent_by = $4, sent_at = $5, accepted_by = $6, accepted_at = $7,
		    resolved_at = $8, updated_at = NOW()
		WHERE id = $9
	`, q.Status, q.Subtotal, q.ValidUntil,
		q.SentBy, q.SentAt, q.AcceptedBy, q.AcceptedAt, q.ResolvedAt, q.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return saveLines(ctx, t.tx, q)
}

func (t *txRepository) DeleteCascade(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM job_orders WHERE quotation_id = $1 AND status = 'DRAFT'`, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
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
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadLines(ctx context.Context, q queryer, quote *Quotation) error {
	rows, err := q.Query(ctx, `
		SELECT id, description, quantity, unit_price, amount, deleted
		FROM quotation_lines
		WHERE quotation_id = $1
		ORDER BY id
	`, quote.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Amount, &l.Deleted); err != nil {
			return err
		}
		quote.Lines = append(quote.Lines, l)
	}
	return rows.Err()
}

func saveLines(ctx context.Context, tx pgx.Tx, q *Quotation) error {
	for i := range q.Lines {
		line := &q.Lines[i]
		if line.ID == 0 {
			err := tx.QueryRow(ctx, `
				INSERT INTO quotation_lines (quotation_id, description, quantity, unit_price, amount, deleted)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, q.ID, line.Description, line.Quantity, line.UnitPrice, line.Amount, line.Deleted).Scan(&line.ID)
			if err != nil {
				return err
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE quotation_lines
			SET description = $1, quantity = $2, unit_price = $3, amount = $4, deleted = $5
			WHERE id = $6 AND quotation_id = $7
		`, line.Description, line.Quantity, line.UnitPrice, line.Amount, line.Deleted, line.ID, q.ID); err != nil {
			return err
		}
	}
	return nil
}
