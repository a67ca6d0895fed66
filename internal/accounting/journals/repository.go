package journals

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/db"
)

const pgUniqueViolation = "23505"

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed journal store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, TxRepository: numbering.NewTxRepository(tx)})
	})
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Entry, error) {
	return getByID(ctx, r.pool, id)
}

func (r *repository) FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (*Entry, error) {
	return findBySource(ctx, r.pool, module, sourceID)
}

func (r *repository) List(ctx context.Context, module string, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	args := []any{}
	if module != "" {
		query += ` WHERE source_module = $1`
		args = append(args, module)
	}
	query += ` ORDER BY posted_at DESC, id DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
	numbering.TxRepository
}

func (t *txRepository) LockSource(ctx context.Context, module string, sourceID uuid.UUID) error {
	// Transaction-scoped advisory lock keyed on the source link; released
	// automatically at commit/rollback.
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`, module, sourceID.String())
	return err
}

func (t *txRepository) FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (*Entry, error) {
	return findBySource(ctx, t.tx, module, sourceID)
}

func (t *txRepository) GetByID(ctx context.Context, id int64) (*Entry, error) {
	return getByID(ctx, t.tx, id)
}

func (t *txRepository) Insert(ctx context.Context, entry *Entry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO journal_entries
			(number, source_module, source_id, description, status, posted_by, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, entry.Number, entry.SourceModule, entry.SourceID, entry.Description,
		entry.Status, entry.PostedBy, entry.PostedAt).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	for i := range entry.Lines {
		line := &entry.Lines[i]
		err := t.tx.QueryRow(ctx, `
			INSERT INTO journal_lines (entry_id, account_code, description, debit, credit)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, entry.ID, line.AccountCode, line.Description, line.Debit, line.Credit).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) MarkVoid(ctx context.Context, id int64, actorID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE journal_entries
		SET status = $1, voided_by = $2, voided_at = $3, updated_at = NOW()
		WHERE id = $4
	`, StatusVoid, actorID, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entryColumns = `id, number, source_module, source_id, description, status,
	posted_by, posted_at, voided_by, voided_at, created_at, updated_at`

func scanEntry(row pgx.Row, e *Entry) error {
	return row.Scan(&e.ID, &e.Number, &e.SourceModule, &e.SourceID, &e.Description,
		&e.Status, &e.PostedBy, &e.PostedAt, &e.VoidedBy, &e.VoidedAt,
		&e.CreatedAt, &e.UpdatedAt)
}

func getByID(ctx context.Context, q queryer, id int64) (*Entry, error) {
	var e Entry
	err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, q, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func findBySource(ctx context.Context, q queryer, module string, sourceID uuid.UUID) (*Entry, error) {
	var e Entry
	err := scanEntry(q.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE source_module = $1 AND source_id = $2
	`, module, sourceID), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, q, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func loadLines(ctx context.Context, q queryer, e *Entry) error {
	rows, err := q.Query(ctx, `
		SELECT id, account_code, description, debit, credit
		FROM journal_lines
		WHERE entry_id = $1
		ORDER BY id
	`, e.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.AccountCode, &l.Description, &l.Debit, &l.Credit); err != nil {
			return err
		}
		e.Lines = append(e.Lines, l)
	}
	return rows.Err()
}
