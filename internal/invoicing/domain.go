package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus follows the state machine
// Pending -> Partial -> Paid, with Pending/Partial <-> Void.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceVoid    InvoiceStatus = "VOID"
)

// ReceivableStatus tracks the customer-side pending document.
type ReceivableStatus string

const (
	ReceivablePending ReceivableStatus = "PENDING"
	ReceivablePaid    ReceivableStatus = "PAID"
	ReceivableVoid    ReceivableStatus = "VOID"
)

// Invoice is a customer sales document. Totals are computed once at
// creation; payments never rewrite them.
type Invoice struct {
	ID         int64
	Number     string
	CustomerID *int64
	Status     InvoiceStatus
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	TaxRate    decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	IssuedAt   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Lines []InvoiceLine
}

// InvoiceLine is a single billed item.
type InvoiceLine struct {
	ID          int64
	InvoiceID   int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Receivable mirrors the unpaid remainder of an invoice. PendingAmount is
// always max(0, invoice.total - paid so far).
type Receivable struct {
	ID            int64
	InvoiceID     int64
	PendingAmount decimal.Decimal
	Status        ReceivableStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Payment is a confirmed customer payment against an invoice. Discount is
// credit granted at payment time; it counts toward settling the total but
// moves no money.
type Payment struct {
	ID        int64
	InvoiceID int64
	Amount    decimal.Decimal
	Discount  decimal.Decimal
	Method    string
	Reference string
	ActorID   string
	Confirmed bool
	PaidAt    time.Time
	CreatedAt time.Time
}

// Credit is the settled value of the payment.
func (p Payment) Credit() decimal.Decimal {
	return p.Amount.Add(p.Discount)
}

// Stats aggregates the invoice book.
type Stats struct {
	Invoices         int             `json:"invoices"`
	Pending          int             `json:"pending"`
	Partial          int             `json:"partial"`
	Paid             int             `json:"paid"`
	Void             int             `json:"void"`
	TotalBilled      decimal.Decimal `json:"total_billed"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}
