package payables

import (
	"context"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines payables data access.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	CreatePayable(ctx context.Context, p Payable) (int64, error)
	GetPayable(ctx context.Context, id int64) (Payable, error)
	ListPayables(ctx context.Context, req ListPayablesRequest) ([]Payable, error)
	ListOutstanding(ctx context.Context) ([]Payable, error)
	DeletePayable(ctx context.Context, id int64) error

	ListPayments(ctx context.Context, payableID int64) ([]Payment, error)
	CountPayments(ctx context.Context, payableID int64) (int, error)
}

// TxRepository defines operations within the ApplyPayment transaction.
type TxRepository interface {
	// GetPayableForUpdate locks the payable row for the transaction.
	GetPayableForUpdate(ctx context.Context, id int64) (Payable, error)
	CreatePayment(ctx context.Context, p Payment) (int64, error)
	UpdatePendingAmount(ctx context.Context, payableID int64, pending decimal.Decimal) error
}
