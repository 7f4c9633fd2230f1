package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates the direction of a ledger movement. Amounts are
// always positive; the kind carries the sign.
type MovementKind string

const (
	KindIncome  MovementKind = "INCOME"
	KindExpense MovementKind = "EXPENSE"
)

// Method enumerates where the money physically moved.
type Method string

const (
	MethodDrawer           Method = "DRAWER"
	MethodBank             Method = "BANK"
	MethodStationeryDrawer Method = "STATIONERY_DRAWER"
)

// CategoryKind enumerates account-category directions.
type CategoryKind string

const (
	CategoryIncome  CategoryKind = "INCOME"
	CategoryExpense CategoryKind = "EXPENSE"
)

// Category groups movements and accounts by direction.
type Category struct {
	ID        int64
	Name      string
	Kind      CategoryKind
	CreatedAt time.Time
}

// Account is a ledger account. CurrentBalance is a cached figure derived
// from the opening balance plus all movements resolvable to the account;
// only RecomputeBalance writes it, except for the explicit opening-balance
// administrative operation which forces a recompute.
type Account struct {
	ID             int64
	Code           string
	Name           string
	CategoryID     int64
	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Movement is a single ledger entry. At most one of DrawerID/BankAccountID
// is set; a drawer-method movement may carry neither when no default drawer
// could be resolved at write time.
type Movement struct {
	ID            int64
	Kind          MovementKind
	Amount        decimal.Decimal
	CategoryID    int64
	Method        Method
	AccountID     *int64
	DrawerID      *int64
	BankAccountID *int64
	PayableID     *int64
	Description   string
	Reference     string
	ActorID       string
	OccurredAt    time.Time
	CreatedAt     time.Time
}

// SignedAmount returns the amount with the sign implied by the kind.
func (m Movement) SignedAmount() decimal.Decimal {
	if m.Kind == KindExpense {
		return m.Amount.Neg()
	}
	return m.Amount
}

// RecomputeSummary reports a bulk balance refresh.
type RecomputeSummary struct {
	Total   int `json:"total"`
	Drifted int `json:"drifted"`
	Failed  int `json:"failed"`
}
