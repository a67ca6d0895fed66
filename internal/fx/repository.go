package fx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence port for exchange rates.
type Repository interface {
	// LatestBefore returns the newest active rate for currency whose
	// effective date is on or before asOf.
	LatestBefore(ctx context.Context, currency string, asOf time.Time) (*ExchangeRate, error)
	Insert(ctx context.Context, rate *ExchangeRate) error
	ListByCurrency(ctx context.Context, currency string, limit int) ([]ExchangeRate, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed rate store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) LatestBefore(ctx context.Context, currency string, asOf time.Time) (*ExchangeRate, error) {
	var rate ExchangeRate
	err := r.pool.QueryRow(ctx, `
		SELECT id, currency, rate, valid_from, active, created_at, updated_at
		FROM exchange_rates
		WHERE currency = $1 AND active AND valid_from <= $2
		ORDER BY valid_from DESC, id DESC
		LIMIT 1
	`, currency, asOf).Scan(
		&rate.ID, &rate.Currency, &rate.Rate, &rate.ValidFrom, &rate.Active,
		&rate.CreatedAt, &rate.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repository) Insert(ctx context.Context, rate *ExchangeRate) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO exchange_rates (currency, rate, valid_from, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, rate.Currency, rate.Rate, rate.ValidFrom, rate.Active).
		Scan(&rate.ID, &rate.CreatedAt, &rate.UpdatedAt)
}

func (r *repository) ListByCurrency(ctx context.Context, currency string, limit int) ([]ExchangeRate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, currency, rate, valid_from, active, created_at, updated_at
		FROM exchange_rates
		WHERE currency = $1
		ORDER BY valid_from DESC, id DESC
		LIMIT $2
	`, currency, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExchangeRate
	for rows.Next() {
		var rate ExchangeRate
		if err := rows.Scan(
			&rate.ID, &rate.Currency, &rate.Rate, &rate.ValidFrom, &rate.Active,
			&rate.CreatedAt, &rate.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}
