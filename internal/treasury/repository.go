package treasury

import (
	"context"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines data access for drawers, bank accounts and
// session records.
type RepositoryPort interface {
	CreateDrawer(ctx context.Context, d Drawer) (int64, error)
	GetDrawer(ctx context.Context, id int64) (Drawer, error)
	ListDrawers(ctx context.Context) ([]Drawer, error)
	// FindDefaultDrawer locates the conventional drawer for a kind. A nil
	// result with nil error means no match; callers treat that as a soft
	// failure, not an error.
	FindDefaultDrawer(ctx context.Context, kind DrawerKind) (*Drawer, error)
	UpdateDrawerBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	// SumDrawerMovements aggregates movements tied to a drawer, split by kind.
	SumDrawerMovements(ctx context.Context, drawerID int64) (income, expense decimal.Decimal, err error)

	CreateBankAccount(ctx context.Context, b BankAccount) (int64, error)
	GetBankAccount(ctx context.Context, id int64) (BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]BankAccount, error)

	CreateApertura(ctx context.Context, a Apertura) (int64, error)
	CreateCierre(ctx context.Context, c Cierre) (int64, error)
	LatestApertura(ctx context.Context, drawerID int64) (*Apertura, error)
	LatestCierre(ctx context.Context, drawerID int64) (*Cierre, error)
	ListAperturas(ctx context.Context, drawerID int64, limit int) ([]Apertura, error)
	ListCierres(ctx context.Context, drawerID int64, limit int) ([]Cierre, error)
}
