package treasury

import "time"

type CreateDrawerRequest struct {
	Name            string `json:"name" validate:"required,max=120"`
	Kind            string `json:"kind" validate:"required,oneof=GENERAL STATIONERY OTHER"`
	LinkedAccountID int64  `json:"linked_account_id" validate:"required,gt=0"`
	OpeningBalance  string `json:"opening_balance" validate:"omitempty"`
}

type CreateBankAccountRequest struct {
	Name            string `json:"name" validate:"required,max=120"`
	Bank            string `json:"bank" validate:"required,max=120"`
	Number          string `json:"number" validate:"required,max=40"`
	LinkedAccountID int64  `json:"linked_account_id" validate:"required,gt=0"`
}

type OpenDrawerRequest struct {
	OpeningAmount string `json:"opening_amount" validate:"required"`
	Notes         string `json:"notes" validate:"max=500"`
}

type CloseDrawerRequest struct {
	CountedAmount string `json:"counted_amount" validate:"required"`
	IncomeOfDay   string `json:"income_of_day" validate:"omitempty"`
	ExpenseOfDay  string `json:"expense_of_day" validate:"omitempty"`
	Notes         string `json:"notes" validate:"max=500"`
}

type SessionResponse struct {
	DrawerID  int64      `json:"drawer_id"`
	Open      bool       `json:"open"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Apertura  *Apertura  `json:"apertura,omitempty"`
	Cierre    *Cierre    `json:"cierre,omitempty"`
}
