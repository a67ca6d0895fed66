package numbering

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-erp/samudra-erp/internal/platform/db"
)

// pgLockNotAvailable is raised by FOR UPDATE NOWAIT when another allocation
// holds the counter row.
const pgLockNotAvailable = "55P03"

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed sequence store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	db dbtx
}

// NewTxRepository binds the sequence store to an existing transaction so a
// caller (e.g. derived-document generation) can allocate inside its own
// atomic unit.
func NewTxRepository(q dbtx) TxRepository {
	return &txRepository{db: q}
}

func (t *txRepository) LockForUpdate(ctx context.Context, scope, code string, defaults Defaults, today time.Time) (*Sequence, error) {
	// Create lazily, then lock. NOWAIT keeps lock waits from stacking up
	// behind a slow allocation; the caller retries on conflict.
	_, err := t.db.Exec(ctx, `
		INSERT INTO document_sequences
			(scope, code, prefix, format, padding, reset_policy, last_number, period_year, period_month)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
		ON CONFLICT (scope, code) DO NOTHING
	`, scope, code, defaults.Prefix, defaults.Format, defaults.Padding, string(defaults.Reset), today.Year(), int(today.Month()))
	if err != nil {
		return nil, err
	}

	var seq Sequence
	var reset string
	err = t.db.QueryRow(ctx, `
		SELECT id, scope, code, prefix, format, padding, reset_policy,
		       last_number, period_year, period_month, created_at, updated_at
		FROM document_sequences
		WHERE scope = $1 AND code = $2
		FOR UPDATE NOWAIT
	`, scope, code).Scan(
		&seq.ID, &seq.Scope, &seq.Code, &seq.Prefix, &seq.Format, &seq.Padding, &reset,
		&seq.LastNumber, &seq.PeriodYear, &seq.PeriodMonth, &seq.CreatedAt, &seq.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, ErrAllocationConflict
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	seq.Reset = ResetPolicy(reset)
	return &seq, nil
}

func (t *txRepository) Save(ctx context.Context, seq *Sequence) error {
	_, err := t.db.Exec(ctx, `
		UPDATE document_sequences
		SET last_number = $1, period_year = $2, period_month = $3, updated_at = NOW()
		WHERE id = $4
	`, seq.LastNumber, seq.PeriodYear, seq.PeriodMonth, seq.ID)
	return err
}
