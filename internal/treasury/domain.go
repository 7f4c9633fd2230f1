package treasury

import (
	"time"

	"github.com/shopspring/decimal"
)

// DrawerKind enumerates the cash drawer categories.
type DrawerKind string

const (
	DrawerGeneral    DrawerKind = "GENERAL"
	DrawerStationery DrawerKind = "STATIONERY"
	DrawerOther      DrawerKind = "OTHER"
)

// Drawer models a cash register (caja). CurrentBalance is a cached figure
// derived from movements; only RecomputeDrawerBalance writes it.
type Drawer struct {
	ID              int64
	Name            string
	Kind            DrawerKind
	LinkedAccountID int64
	OpeningBalance  decimal.Decimal
	CurrentBalance  decimal.Decimal
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BankAccount models a bank-held money target linked to a ledger account.
type BankAccount struct {
	ID              int64
	Name            string
	Bank            string
	Number          string
	LinkedAccountID int64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Apertura records the opening of a drawer session.
type Apertura struct {
	ID            int64
	DrawerID      int64
	OpeningAmount decimal.Decimal
	ActorID       string
	Notes         string
	OpenedAt      time.Time
}

// Cierre records the closing of a drawer session. Variance between the
// counted amount and the computed balance is reported, never auto-corrected.
type Cierre struct {
	ID            int64
	DrawerID      int64
	CountedAmount decimal.Decimal
	IncomeOfDay   decimal.Decimal
	ExpenseOfDay  decimal.Decimal
	Variance      decimal.Decimal
	ActorID       string
	Notes         string
	ClosedAt      time.Time
}

// Session pairs an apertura with its cierre, when one exists.
type Session struct {
	Apertura Apertura
	Cierre   *Cierre
}
