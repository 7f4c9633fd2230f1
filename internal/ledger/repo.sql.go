package ledger

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

var _ RepositoryPort = (*Repository)(nil)

const movementColumns = `id, kind, amount, category_id, method, account_id, drawer_id, bank_account_id, payable_id, description, reference, actor_id, occurred_at, created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.Kind, &m.Amount, &m.CategoryID, &m.Method, &m.AccountID,
		&m.DrawerID, &m.BankAccountID, &m.PayableID, &m.Description, &m.Reference,
		&m.ActorID, &m.OccurredAt, &m.CreatedAt)
	return m, err
}

func (r *Repository) CreateMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO movements (kind, amount, category_id, method, account_id, drawer_id, bank_account_id, payable_id, description, reference, actor_id, occurred_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW()) RETURNING id`,
		m.Kind, m.Amount, m.CategoryID, m.Method, m.AccountID, m.DrawerID, m.BankAccountID,
		m.PayableID, m.Description, m.Reference, m.ActorID, m.OccurredAt).Scan(&id)
	return id, err
}

func (r *Repository) GetMovement(ctx context.Context, id int64) (Movement, error) {
	m, err := scanMovement(r.pool.QueryRow(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, shared.NotFoundf("movement %d", id)
	}
	return m, err
}

func (r *Repository) UpdateMovement(ctx context.Context, m Movement) error {
	tag, err := r.pool.Exec(ctx, `UPDATE movements SET kind = $1, amount = $2, category_id = $3, method = $4, account_id = $5, drawer_id = $6, bank_account_id = $7, payable_id = $8, description = $9, actor_id = $10, occurred_at = $11 WHERE id = $12`,
		m.Kind, m.Amount, m.CategoryID, m.Method, m.AccountID, m.DrawerID, m.BankAccountID,
		m.PayableID, m.Description, m.ActorID, m.OccurredAt, m.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("movement %d", m.ID)
	}
	return nil
}

func (r *Repository) DeleteMovement(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("movement %d", id)
	}
	return nil
}

func (r *Repository) ListMovements(ctx context.Context, req ListMovementsRequest) ([]Movement, error) {
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + movementColumns + ` FROM movements WHERE 1=1`
	args := []any{}
	if req.Kind != "" {
		args = append(args, req.Kind)
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if req.DrawerID != 0 {
		args = append(args, req.DrawerID)
		query += fmt.Sprintf(` AND drawer_id = $%d`, len(args))
	}
	if !req.From.IsZero() {
		args = append(args, req.From)
		query += fmt.Sprintf(` AND occurred_at >= $%d`, len(args))
	}
	if !req.To.IsZero() {
		args = append(args, req.To)
		query += fmt.Sprintf(` AND occurred_at < $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY occurred_at DESC, id DESC LIMIT $%d`, len(args))
	args = append(args, req.Offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const accountColumns = `id, code, name, category_id, opening_balance, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.CategoryID, &a.OpeningBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repository) CreateAccount(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, category_id, opening_balance, current_balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		a.Code, a.Name, a.CategoryID, a.OpeningBalance, a.CurrentBalance).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Conflictf("account code %s already exists", a.Code)
		}
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFoundf("account %d", id)
	}
	return a, err
}

func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) ListAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SumAccountMovements attributes movements to the account when they point
// at it directly, or through a drawer or bank account linked to it.
func (r *Repository) SumAccountMovements(ctx context.Context, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	var income, expense decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(m.amount) FILTER (WHERE m.kind = 'INCOME'), 0),
COALESCE(SUM(m.amount) FILTER (WHERE m.kind = 'EXPENSE'), 0)
FROM movements m
LEFT JOIN drawers d ON m.drawer_id = d.id
LEFT JOIN bank_accounts b ON m.bank_account_id = b.id
WHERE m.account_id = $1 OR d.linked_account_id = $1 OR b.linked_account_id = $1`, accountID).Scan(&income, &expense)
	return income, expense, err
}

func (r *Repository) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET current_balance = $1, updated_at = NOW() WHERE id = $2`, balance, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("account %d", accountID)
	}
	return nil
}

func (r *Repository) SetAccountOpeningBalance(ctx context.Context, accountID int64, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET opening_balance = $1, updated_at = NOW() WHERE id = $2`, amount, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("account %d", accountID)
	}
	return nil
}

func (r *Repository) CreateCategory(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO account_categories (name, kind, created_at) VALUES ($1, $2, NOW()) RETURNING id`,
		c.Name, c.Kind).Scan(&id)
	return id, err
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, kind, created_at FROM account_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.NotFoundf("category %d", id)
	}
	return c, err
}

func (r *Repository) FindDefaultCategory(ctx context.Context, kind CategoryKind) (*Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, kind, created_at FROM account_categories WHERE kind = $1 ORDER BY id LIMIT 1`, kind).
		Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, kind, created_at FROM account_categories ORDER BY kind, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
