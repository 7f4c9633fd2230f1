package invoicing

import "time"

type InvoiceLineRequest struct {
	Description string `json:"description" validate:"required,max=240"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
}

type CreateInvoiceRequest struct {
	CustomerID    *int64               `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Lines         []InvoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount      string               `json:"discount"`
	IssuedAt      *time.Time           `json:"issued_at,omitempty"`
	PayNow        bool                 `json:"pay_now"`
	Method        string               `json:"method" validate:"required_if=PayNow true,omitempty,max=40"`
	BankAccountID *int64               `json:"bank_account_id,omitempty" validate:"omitempty,gt=0"`
}

type PayInvoiceRequest struct {
	Amount        string `json:"amount" validate:"required"`
	Discount      string `json:"discount"`
	Method        string `json:"method" validate:"required,max=40"`
	Reference     string `json:"reference" validate:"max=120"`
	BankAccountID *int64 `json:"bank_account_id,omitempty" validate:"omitempty,gt=0"`
}

type ListInvoicesRequest struct {
	Status     InvoiceStatus
	CustomerID int64
	Limit      int
	Offset     int
}
