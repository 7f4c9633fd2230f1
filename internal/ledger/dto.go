package ledger

import "time"

type CreateMovementRequest struct {
	Kind          string     `json:"kind" validate:"required,oneof=INCOME EXPENSE"`
	Amount        string     `json:"amount" validate:"required"`
	CategoryID    int64      `json:"category_id" validate:"omitempty,gt=0"`
	Method        string     `json:"method" validate:"required,oneof=DRAWER BANK STATIONERY_DRAWER"`
	AccountID     *int64     `json:"account_id,omitempty" validate:"omitempty,gt=0"`
	DrawerID      *int64     `json:"drawer_id,omitempty" validate:"omitempty,gt=0"`
	BankAccountID *int64     `json:"bank_account_id,omitempty" validate:"omitempty,gt=0"`
	PayableID     *int64     `json:"payable_id,omitempty" validate:"omitempty,gt=0"`
	Description   string     `json:"description" validate:"required,max=240"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

type CreateAccountRequest struct {
	Code           string `json:"code" validate:"required,max=20"`
	Name           string `json:"name" validate:"required,max=120"`
	CategoryID     int64  `json:"category_id" validate:"required,gt=0"`
	OpeningBalance string `json:"opening_balance"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Kind string `json:"kind" validate:"required,oneof=INCOME EXPENSE"`
}

type SetOpeningBalanceRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type ListMovementsRequest struct {
	Kind     MovementKind
	DrawerID int64
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}
