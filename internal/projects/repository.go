package projects

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

// Repository is the persistence port for projects.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Project, error)
	List(ctx context.Context, status workflow.Status, limit int) ([]Project, error)
}

// TxRepository operates inside one project transaction.
type TxRepository interface {
	Sequences() numbering.TxRepository
	GetForUpdate(ctx context.Context, id int64) (*Project, error)
	Insert(ctx context.Context, p *Project) error
	Save(ctx context.Context, p *Project) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed project store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, seqs: numbering.NewTxRepository(tx)})
	})
}

const projectColumns = `id, uuid, number, customer_id, name, currency, budget,
	start_date, end_date, status,
	confirmed_by, confirmed_at, completed_at, resolved_at,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner, p *Project) error {
	return row.Scan(&p.ID, &p.UUID, &p.Number, &p.CustomerID, &p.Name, &p.Currency, &p.Budget,
		&p.StartDate, &p.EndDate, &p.Status,
		&p.ConfirmedBy, &p.ConfirmedAt, &p.CompletedAt, &p.ResolvedAt,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := scanProject(r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, status workflow.Status, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + projectColumns + ` FROM projects`
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

	var out []Project
	for rows.Next() {
		var p Project
		if err := scanProject(rows, &p); err != nil {
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

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := scanProject(t.tx.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txRepository) Insert(ctx context.Context, p *Project) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO projects
			(uuid, number, customer_id, name, currency, budget, start_date, end_date, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, p.UUID, p.Number, p.CustomerID, p.Name, p.Currency, p.Budget,
		p.StartDate, p.EndDate, p.Status, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (t *txRepository) Save(ctx context.Context, p *Project) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE projects
		SET status = $1, budget = $2, start_date = $3, end_date = $4,
		    confirmed_by = $5, confirmed_at = $6, completed_at = $7,
		    resolved_at = $8, updated_at = NOW()
		WHERE id = $9
	`, p.Status, p.Budget, p.StartDate, p.EndDate,
		p.ConfirmedBy, p.ConfirmedAt, p.CompletedAt, p.ResolvedAt, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
