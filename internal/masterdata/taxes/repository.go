package taxes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
)

// Repository is the persistence port for tax master data.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Tax, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Tax, error)
	ListActive(ctx context.Context) ([]Tax, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed tax store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const taxColumns = `id, code, name, rate_percent, category, active, created_at, updated_at`

func scanTax(row pgx.Row, t *Tax) error {
	return row.Scan(&t.ID, &t.Code, &t.Name, &t.RatePercent, &t.Category, &t.Active, &t.CreatedAt, &t.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Tax, error) {
	var t Tax
	err := scanTax(r.pool.QueryRow(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id = $1`, id), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []int64) ([]Tax, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repository) ListActive(ctx context.Context) ([]Tax, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taxColumns+` FROM taxes WHERE active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Tax, error) {
	var out []Tax
	for rows.Next() {
		var t Tax
		if err := scanTax(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
