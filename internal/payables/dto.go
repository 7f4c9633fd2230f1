package payables

import "time"

type CreatePayableRequest struct {
	DocumentNumber     string     `json:"document_number" validate:"required,max=60"`
	SupplierID         *int64     `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	IssueDate          time.Time  `json:"issue_date" validate:"required"`
	DueDate            time.Time  `json:"due_date" validate:"required"`
	OriginalAmount     string     `json:"original_amount" validate:"required"`
	MonthlyInstallment *string    `json:"monthly_installment,omitempty"`
}

type ApplyPaymentRequest struct {
	Amount    string     `json:"amount" validate:"required"`
	Date      *time.Time `json:"date,omitempty"`
	Method    string     `json:"method" validate:"required,max=40"`
	Reference string     `json:"reference" validate:"max=120"`
}

type ListPayablesRequest struct {
	Status     PayableStatus
	SupplierID int64
	Limit      int
	Offset     int
}
