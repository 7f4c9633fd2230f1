package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines ledger data access.
type RepositoryPort interface {
	CreateMovement(ctx context.Context, m Movement) (int64, error)
	GetMovement(ctx context.Context, id int64) (Movement, error)
	UpdateMovement(ctx context.Context, m Movement) error
	DeleteMovement(ctx context.Context, id int64) error
	ListMovements(ctx context.Context, req ListMovementsRequest) ([]Movement, error)

	CreateAccount(ctx context.Context, a Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListAccountIDs(ctx context.Context) ([]int64, error)
	// SumAccountMovements aggregates movement amounts resolvable to the
	// account, directly or through a linked drawer/bank account.
	SumAccountMovements(ctx context.Context, accountID int64) (income, expense decimal.Decimal, err error)
	UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	SetAccountOpeningBalance(ctx context.Context, accountID int64, amount decimal.Decimal) error

	CreateCategory(ctx context.Context, c Category) (int64, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	// FindDefaultCategory returns any category of the kind, or nil when
	// none exists.
	FindDefaultCategory(ctx context.Context, kind CategoryKind) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}
