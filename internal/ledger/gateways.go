package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/payables"
	"github.com/caoba-erp/caoba-erp/internal/shared"
	"github.com/caoba-erp/caoba-erp/internal/treasury"
)

// DrawerGateway is how movements reach the treasury module: default drawer
// resolution by convention, target lookups, and the post-write balance
// refresh. Satisfied by *treasury.Service.
type DrawerGateway interface {
	ResolveDefaultDrawer(ctx context.Context, kind treasury.DrawerKind) (*treasury.Drawer, error)
	GetDrawer(ctx context.Context, id int64) (treasury.Drawer, error)
	GetBankAccount(ctx context.Context, id int64) (treasury.BankAccount, error)
	RecomputeDrawerBalance(ctx context.Context, drawerID int64) (decimal.Decimal, error)
}

// PayableGateway lets expense movements settle supplier documents.
// Satisfied by *payables.Service.
type PayableGateway interface {
	ApplyPayment(ctx context.Context, input payables.ApplyPaymentInput) (payables.Payable, error)
}

// AuditRecorder persists audit trail rows. Satisfied by *shared.AuditLogger.
type AuditRecorder interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}
