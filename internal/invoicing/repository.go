package invoicing

import (
	"context"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines invoicing data access.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	// GetReceivable returns the invoice's receivable, or nil when the
	// invoice was paid at creation and never had one.
	GetReceivable(ctx context.Context, invoiceID int64) (*Receivable, error)
	CollectStats(ctx context.Context) (Stats, error)
}

// TxRepository defines operations inside an invoice transaction.
type TxRepository interface {
	CreateInvoice(ctx context.Context, inv Invoice) (int64, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error

	CreatePayment(ctx context.Context, p Payment) (int64, error)
	SumConfirmedPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	CountPayments(ctx context.Context, invoiceID int64) (int, error)

	CreateReceivable(ctx context.Context, r Receivable) (int64, error)
	GetReceivable(ctx context.Context, invoiceID int64) (*Receivable, error)
	UpdateReceivable(ctx context.Context, invoiceID int64, pending decimal.Decimal, status ReceivableStatus) error
}
