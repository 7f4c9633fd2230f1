package treasury

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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

const drawerColumns = `id, name, kind, linked_account_id, opening_balance, current_balance, is_active, created_at, updated_at`

func scanDrawer(row pgx.Row) (Drawer, error) {
	var d Drawer
	err := row.Scan(&d.ID, &d.Name, &d.Kind, &d.LinkedAccountID, &d.OpeningBalance, &d.CurrentBalance, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *Repository) CreateDrawer(ctx context.Context, d Drawer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO drawers (name, kind, linked_account_id, opening_balance, current_balance, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4, $5, NOW(), NOW()) RETURNING id`,
		d.Name, d.Kind, d.LinkedAccountID, d.OpeningBalance, d.IsActive).Scan(&id)
	return id, err
}

func (r *Repository) GetDrawer(ctx context.Context, id int64) (Drawer, error) {
	d, err := scanDrawer(r.pool.QueryRow(ctx, `SELECT `+drawerColumns+` FROM drawers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Drawer{}, shared.NotFoundf("drawer %d", id)
	}
	return d, err
}

func (r *Repository) ListDrawers(ctx context.Context) ([]Drawer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+drawerColumns+` FROM drawers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drawers []Drawer
	for rows.Next() {
		d, err := scanDrawer(rows)
		if err != nil {
			return nil, err
		}
		drawers = append(drawers, d)
	}
	return drawers, rows.Err()
}

// FindDefaultDrawer applies the back-office naming convention: the general
// drawer is named "Caja Principal" or flagged GENERAL; the stationery
// drawer mentions "papeler" or is flagged STATIONERY. Deterministic via
// lowest id.
func (r *Repository) FindDefaultDrawer(ctx context.Context, kind DrawerKind) (*Drawer, error) {
	var query string
	switch kind {
	case DrawerStationery:
		query = `SELECT ` + drawerColumns + ` FROM drawers WHERE is_active AND (kind = 'STATIONERY' OR name ILIKE '%papeler%') ORDER BY id LIMIT 1`
	default:
		query = `SELECT ` + drawerColumns + ` FROM drawers WHERE is_active AND (kind = 'GENERAL' OR name ILIKE 'caja principal%') ORDER BY id LIMIT 1`
	}
	d, err := scanDrawer(r.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) UpdateDrawerBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE drawers SET current_balance = $1, updated_at = NOW() WHERE id = $2`, balance, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("drawer %d", id)
	}
	return nil
}

func (r *Repository) SumDrawerMovements(ctx context.Context, drawerID int64) (decimal.Decimal, decimal.Decimal, error) {
	var income, expense decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE kind = 'INCOME'), 0),
COALESCE(SUM(amount) FILTER (WHERE kind = 'EXPENSE'), 0)
FROM movements WHERE drawer_id = $1`, drawerID).Scan(&income, &expense)
	return income, expense, err
}

const bankColumns = `id, name, bank, number, linked_account_id, is_active, created_at, updated_at`

func (r *Repository) CreateBankAccount(ctx context.Context, b BankAccount) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO bank_accounts (name, bank, number, linked_account_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		b.Name, b.Bank, b.Number, b.LinkedAccountID, b.IsActive).Scan(&id)
	return id, err
}

func (r *Repository) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	var b BankAccount
	err := r.pool.QueryRow(ctx, `SELECT `+bankColumns+` FROM bank_accounts WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Bank, &b.Number, &b.LinkedAccountID, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BankAccount{}, shared.NotFoundf("bank account %d", id)
	}
	return b, err
}

func (r *Repository) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bankColumns+` FROM bank_accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []BankAccount
	for rows.Next() {
		var b BankAccount
		if err := rows.Scan(&b.ID, &b.Name, &b.Bank, &b.Number, &b.LinkedAccountID, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, b)
	}
	return accounts, rows.Err()
}

func (r *Repository) CreateApertura(ctx context.Context, a Apertura) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO drawer_aperturas (drawer_id, opening_amount, actor_id, notes, opened_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.DrawerID, a.OpeningAmount, a.ActorID, a.Notes, a.OpenedAt).Scan(&id)
	return id, err
}

func (r *Repository) CreateCierre(ctx context.Context, c Cierre) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO drawer_cierres (drawer_id, counted_amount, income_of_day, expense_of_day, variance, actor_id, notes, closed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		c.DrawerID, c.CountedAmount, c.IncomeOfDay, c.ExpenseOfDay, c.Variance, c.ActorID, c.Notes, c.ClosedAt).Scan(&id)
	return id, err
}

func (r *Repository) LatestApertura(ctx context.Context, drawerID int64) (*Apertura, error) {
	var a Apertura
	err := r.pool.QueryRow(ctx, `SELECT id, drawer_id, opening_amount, actor_id, notes, opened_at
FROM drawer_aperturas WHERE drawer_id = $1 ORDER BY opened_at DESC, id DESC LIMIT 1`, drawerID).
		Scan(&a.ID, &a.DrawerID, &a.OpeningAmount, &a.ActorID, &a.Notes, &a.OpenedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) LatestCierre(ctx context.Context, drawerID int64) (*Cierre, error) {
	var c Cierre
	err := r.pool.QueryRow(ctx, `SELECT id, drawer_id, counted_amount, income_of_day, expense_of_day, variance, actor_id, notes, closed_at
FROM drawer_cierres WHERE drawer_id = $1 ORDER BY closed_at DESC, id DESC LIMIT 1`, drawerID).
		Scan(&c.ID, &c.DrawerID, &c.CountedAmount, &c.IncomeOfDay, &c.ExpenseOfDay, &c.Variance, &c.ActorID, &c.Notes, &c.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListAperturas(ctx context.Context, drawerID int64, limit int) ([]Apertura, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, drawer_id, opening_amount, actor_id, notes, opened_at
FROM drawer_aperturas WHERE drawer_id = $1 ORDER BY opened_at DESC, id DESC LIMIT $2`, drawerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Apertura
	for rows.Next() {
		var a Apertura
		if err := rows.Scan(&a.ID, &a.DrawerID, &a.OpeningAmount, &a.ActorID, &a.Notes, &a.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) ListCierres(ctx context.Context, drawerID int64, limit int) ([]Cierre, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, drawer_id, counted_amount, income_of_day, expense_of_day, variance, actor_id, notes, closed_at
FROM drawer_cierres WHERE drawer_id = $1 ORDER BY closed_at DESC, id DESC LIMIT $2`, drawerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Cierre
	for rows.Next() {
		var c Cierre
		if err := rows.Scan(&c.ID, &c.DrawerID, &c.CountedAmount, &c.IncomeOfDay, &c.ExpenseOfDay, &c.Variance, &c.ActorID, &c.Notes, &c.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
