package invoicing

import (
	"context"
	"errors"
	"fmt"

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

const invoiceColumns = `id, number, customer_id, status, subtotal, discount, tax_rate, tax, total, issued_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.Status, &inv.Subtotal,
		&inv.Discount, &inv.TaxRate, &inv.Tax, &inv.Total, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("invoice %d", id)
	}
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, line_total FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}
	if req.Status != "" {
		args = append(args, req.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if req.CustomerID != 0 {
		args = append(args, req.CustomerID)
		query += fmt.Sprintf(` AND customer_id = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY issued_at DESC, id DESC LIMIT $%d`, len(args))
	args = append(args, req.Offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, amount, discount, method, reference, actor_id, confirmed, paid_at, created_at
FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Discount, &p.Method, &p.Reference, &p.ActorID, &p.Confirmed, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetReceivable(ctx context.Context, invoiceID int64) (*Receivable, error) {
	return getReceivable(ctx, r.pool, invoiceID)
}

func (r *Repository) CollectStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.pool.QueryRow(ctx, `SELECT
COUNT(*),
COUNT(*) FILTER (WHERE status = 'PENDING'),
COUNT(*) FILTER (WHERE status = 'PARTIAL'),
COUNT(*) FILTER (WHERE status = 'PAID'),
COUNT(*) FILTER (WHERE status = 'VOID'),
COALESCE(SUM(total) FILTER (WHERE status <> 'VOID'), 0)
FROM invoices`).Scan(&stats.Invoices, &stats.Pending, &stats.Partial, &stats.Paid, &stats.Void, &stats.TotalBilled)
	if err != nil {
		return Stats{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(p.amount), 0)
FROM invoice_payments p JOIN invoices i ON p.invoice_id = i.id
WHERE p.confirmed AND i.status <> 'VOID'`).Scan(&stats.TotalCollected)
	if err != nil {
		return Stats{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(pending_amount), 0) FROM receivables WHERE status = 'PENDING'`).Scan(&stats.TotalOutstanding)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getReceivable(ctx context.Context, q querier, invoiceID int64) (*Receivable, error) {
	var rcv Receivable
	err := q.QueryRow(ctx, `SELECT id, invoice_id, pending_amount, status, created_at, updated_at FROM receivables WHERE invoice_id = $1`, invoiceID).
		Scan(&rcv.ID, &rcv.InvoiceID, &rcv.PendingAmount, &rcv.Status, &rcv.CreatedAt, &rcv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rcv, nil
}

func (tx *txRepo) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO invoices (number, customer_id, status, subtotal, discount, tax_rate, tax, total, issued_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()) RETURNING id`,
		inv.Number, inv.CustomerID, inv.Status, inv.Subtotal, inv.Discount, inv.TaxRate, inv.Tax, inv.Total, inv.IssuedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Conflictf("invoice number %s already exists", inv.Number)
		}
		return 0, err
	}
	for _, line := range inv.Lines {
		_, err := tx.tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, line_total) VALUES ($1, $2, $3, $4, $5)`,
			id, line.Description, line.Quantity, line.UnitPrice, line.LineTotal)
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (tx *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(tx.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("invoice %d", id)
	}
	return inv, err
}

func (tx *txRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

func (tx *txRepo) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO invoice_payments (invoice_id, amount, discount, method, reference, actor_id, confirmed, paid_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id`,
		p.InvoiceID, p.Amount, p.Discount, p.Method, p.Reference, p.ActorID, p.Confirmed, p.PaidAt).Scan(&id)
	return id, err
}

func (tx *txRepo) SumConfirmedPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount + discount), 0) FROM invoice_payments WHERE invoice_id = $1 AND confirmed`, invoiceID).Scan(&sum)
	return sum, err
}

func (tx *txRepo) CountPayments(ctx context.Context, invoiceID int64) (int, error) {
	var count int
	err := tx.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_payments WHERE invoice_id = $1`, invoiceID).Scan(&count)
	return count, err
}

func (tx *txRepo) CreateReceivable(ctx context.Context, rcv Receivable) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO receivables (invoice_id, pending_amount, status, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id`,
		rcv.InvoiceID, rcv.PendingAmount, rcv.Status).Scan(&id)
	return id, err
}

func (tx *txRepo) GetReceivable(ctx context.Context, invoiceID int64) (*Receivable, error) {
	return getReceivable(ctx, tx.tx, invoiceID)
}

func (tx *txRepo) UpdateReceivable(ctx context.Context, invoiceID int64, pending decimal.Decimal, status ReceivableStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE receivables SET pending_amount = $1, status = $2, updated_at = NOW() WHERE invoice_id = $3`, pending, status, invoiceID)
	return err
}
