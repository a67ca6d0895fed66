package job

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

// Repository is the persistence port for job orders and fee periods.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*JobOrder, error)
	List(ctx context.Context, status workflow.Status, limit int) ([]JobOrder, error)
	// ListCompletedInMonth returns jobs whose completion date falls in the
	// given month.
	ListCompletedInMonth(ctx context.Context, year int, month time.Month) ([]JobOrder, error)
	GetFeePeriod(ctx context.Context, year int, month time.Month) (*FeePeriod, error)
}

// TxRepository operates inside one job transaction.
type TxRepository interface {
	Sequences() numbering.TxRepository
	GetForUpdate(ctx context.Context, id int64) (*JobOrder, error)
	Insert(ctx context.Context, j *JobOrder) error
	Save(ctx context.Context, j *JobOrder) error
	GetFeePeriodForUpdate(ctx context.Context, year int, month time.Month) (*FeePeriod, error)
	InsertFeePeriod(ctx context.Context, p *FeePeriod) error
	// SaveFeePeriod replaces the period's lines and header total.
	SaveFeePeriod(ctx context.Context, p *FeePeriod) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed job store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, seqs: numbering.NewTxRepository(tx)})
	})
}

const jobColumns = `id, uuid, number, quotation_id, customer_id, service_name,
	pickup, delivery, cargo, currency,
	contract_value, dp_percent, cost_total, sales_employee_id, fee_percent,
	status, confirmed_by, confirmed_at, completed_at, resolved_at,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner, j *JobOrder) error {
	return row.Scan(&j.ID, &j.UUID, &j.Number, &j.QuotationID, &j.CustomerID, &j.ServiceName,
		&j.Pickup, &j.Delivery, &j.Cargo, &j.Currency,
		&j.ContractValue, &j.DPPercent, &j.CostTotal, &j.SalesEmployeeID, &j.FeePercent,
		&j.Status, &j.ConfirmedBy, &j.ConfirmedAt, &j.CompletedAt, &j.ResolvedAt,
		&j.CreatedBy, &j.CreatedAt, &j.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*JobOrder, error) {
	var j JobOrder
	err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM job_orders WHERE id = $1`, id), &j)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *repository) List(ctx context.Context, status workflow.Status, limit int) ([]JobOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + ` FROM job_orders`
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
	return collectJobs(rows)
}

func (r *repository) ListCompletedInMonth(ctx context.Context, year int, month time.Month) ([]JobOrder, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM job_orders
		WHERE status = $1 AND completed_at >= $2 AND completed_at < $3
		ORDER BY id
	`, workflow.StatusCompleted, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]JobOrder, error) {
	var out []JobOrder
	for rows.Next() {
		var j JobOrder
		if err := scanJob(rows, &j); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *repository) GetFeePeriod(ctx context.Context, year int, month time.Month) (*FeePeriod, error) {
	return getFeePeriod(ctx, r.pool, year, month, false)
}

type txRepository struct {
	tx   pgx.Tx
	seqs numbering.TxRepository
}

// NewTxRepository exposes the job store over an existing transaction so
// sibling modules can read and update jobs atomically with their own writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, seqs: numbering.NewTxRepository(tx)}
}

func (t *txRepository) Sequences() numbering.TxRepository { return t.seqs }

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*JobOrder, error) {
	var j JobOrder
	err := scanJob(t.tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM job_orders WHERE id = $1 FOR UPDATE`, id), &j)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (t *txRepository) Insert(ctx context.Context, j *JobOrder) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO job_orders
			(uuid, number, quotation_id, customer_id, service_name,
			 pickup, delivery, cargo, currency,
			 contract_value, dp_percent, cost_total, sales_employee_id, fee_percent,
			 status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`, j.UUID, j.Number, j.QuotationID, j.CustomerID, j.ServiceName,
		j.Pickup, j.Delivery, j.Cargo, j.Currency,
		j.ContractValue, j.DPPercent, j.CostTotal, j.SalesEmployeeID, j.FeePercent,
		j.Status, j.CreatedBy).
		Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
}

func (t *txRepository) Save(ctx context.Context, j *JobOrder) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE job_orders
		SET status = $1, contract_value = $2, dp_percent = $3, cost_total = $4,
		    sales_employee_id = $5, fee_percent = $6,
		    confirmed_by = $7, confirmed_at = $8, completed_at = $9,
		    resolved_at = $10, updated_at = NOW()
		WHERE id = $11
	`, j.Status, j.ContractValue, j.DPPercent, j.CostTotal,
		j.SalesEmployeeID, j.FeePercent,
		j.ConfirmedBy, j.ConfirmedAt, j.CompletedAt, j.ResolvedAt, j.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (t *txRepository) GetFeePeriodForUpdate(ctx context.Context, year int, month time.Month) (*FeePeriod, error) {
	return getFeePeriod(ctx, t.tx, year, month, true)
}

func (t *txRepository) InsertFeePeriod(ctx context.Context, p *FeePeriod) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO job_fee_periods (year, month, status, total)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, p.Year, int(p.Month), p.Status, p.Total).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	return insertFeeLines(ctx, t.tx, p)
}

func (t *txRepository) SaveFeePeriod(ctx context.Context, p *FeePeriod) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE job_fee_periods
		SET status = $1, total = $2, approved_by = $3, approved_at = $4, updated_at = NOW()
		WHERE id = $5
	`, p.Status, p.Total, p.ApprovedBy, p.ApprovedAt, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM job_fee_lines WHERE period_id = $1`, p.ID); err != nil {
		return err
	}
	return insertFeeLines(ctx, t.tx, p)
}

func insertFeeLines(ctx context.Context, tx pgx.Tx, p *FeePeriod) error {
	for i := range p.Lines {
		l := &p.Lines[i]
		err := tx.QueryRow(ctx, `
			INSERT INTO job_fee_lines (period_id, job_order_id, job_number, employee_id, base, percent, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, p.ID, l.JobOrderID, l.JobNumber, l.EmployeeID, l.Base, l.Percent, l.Amount).Scan(&l.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getFeePeriod(ctx context.Context, q queryer, year int, month time.Month, forUpdate bool) (*FeePeriod, error) {
	query := `
		SELECT id, year, month, status, total, approved_by, approved_at, created_at, updated_at
		FROM job_fee_periods
		WHERE year = $1 AND month = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var p FeePeriod
	var monthNum int
	err := q.QueryRow(ctx, query, year, int(month)).Scan(
		&p.ID, &p.Year, &monthNum, &p.Status, &p.Total,
		&p.ApprovedBy, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Month = time.Month(monthNum)

	rows, err := q.Query(ctx, `
		SELECT id, job_order_id, job_number, employee_id, base, percent, amount
		FROM job_fee_lines
		WHERE period_id = $1
		ORDER BY id
	`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l FeeLine
		if err := rows.Scan(&l.ID, &l.JobOrderID, &l.JobNumber, &l.EmployeeID, &l.Base, &l.Percent, &l.Amount); err != nil {
			return nil, err
		}
		p.Lines = append(p.Lines, l)
	}
	return &p, rows.Err()
}
