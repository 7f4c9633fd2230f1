package payables

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ RepositoryPort = (*Repository)(nil)
	_ TxRepository   = (*txRepo)(nil)
)

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const payableColumns = `id, document_number, supplier_id, issue_date, due_date, original_amount, pending_amount, monthly_installment, created_at, updated_at`

func scanPayable(row pgx.Row) (Payable, error) {
	var p Payable
	err := row.Scan(&p.ID, &p.DocumentNumber, &p.SupplierID, &p.IssueDate, &p.DueDate,
		&p.OriginalAmount, &p.PendingAmount, &p.MonthlyInstallment, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) CreatePayable(ctx context.Context, p Payable) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO payables (document_number, supplier_id, issue_date, due_date, original_amount, pending_amount, monthly_installment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		p.DocumentNumber, p.SupplierID, p.IssueDate, p.DueDate, p.OriginalAmount, p.PendingAmount, p.MonthlyInstallment).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Conflictf("payable document %s already exists", p.DocumentNumber)
		}
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetPayable(ctx context.Context, id int64) (Payable, error) {
	p, err := scanPayable(r.pool.QueryRow(ctx, `SELECT `+payableColumns+` FROM payables WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payable{}, shared.NotFoundf("payable %d", id)
	}
	return p, err
}

func (r *Repository) ListPayables(ctx context.Context, req ListPayablesRequest) ([]Payable, error) {
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + payableColumns + ` FROM payables`
	args := []any{}
	if req.SupplierID != 0 {
		query += ` WHERE supplier_id = $1`
		args = append(args, req.SupplierID)
	}
	query += ` ORDER BY due_date, id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		if len(out) >= limit+req.Offset {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if req.Offset > 0 && req.Offset < len(out) {
		out = out[req.Offset:]
	} else if req.Offset >= len(out) {
		out = nil
	}
	return out, nil
}

func (r *Repository) ListOutstanding(ctx context.Context) ([]Payable, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+payableColumns+` FROM payables WHERE pending_amount > 0 ORDER BY due_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) DeletePayable(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payables WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("payable %d", id)
	}
	return nil
}

func (r *Repository) ListPayments(ctx context.Context, payableID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, payable_id, amount, paid_at, method, reference, actor_id, created_at
FROM payable_payments WHERE payable_id = $1 ORDER BY paid_at, id`, payableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.PayableID, &p.Amount, &p.PaidAt, &p.Method, &p.Reference, &p.ActorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) CountPayments(ctx context.Context, payableID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payable_payments WHERE payable_id = $1`, payableID).Scan(&count)
	return count, err
}

func (tx *txRepo) GetPayableForUpdate(ctx context.Context, id int64) (Payable, error) {
	p, err := scanPayable(tx.tx.QueryRow(ctx, `SELECT `+payableColumns+` FROM payables WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payable{}, shared.NotFoundf("payable %d", id)
	}
	return p, err
}

func (tx *txRepo) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO payable_payments (payable_id, amount, paid_at, method, reference, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id`,
		p.PayableID, p.Amount, p.PaidAt, p.Method, p.Reference, p.ActorID).Scan(&id)
	return id, err
}

func (tx *txRepo) UpdatePendingAmount(ctx context.Context, payableID int64, pending decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx, `UPDATE payables SET pending_amount = $1, updated_at = NOW() WHERE id = $2`, pending, payableID)
	return err
}
