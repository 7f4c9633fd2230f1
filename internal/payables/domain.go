package payables

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PayableStatus enumerates payable document statuses. Status is derived
// from pending amount and due date on every read; it is never stored.
type PayableStatus string

const (
	StatusPending PayableStatus = "PENDING"
	StatusOverdue PayableStatus = "OVERDUE"
	StatusPaid    PayableStatus = "PAID"
)

// Payable models a supplier obligation (cuenta por pagar).
type Payable struct {
	ID                 int64
	DocumentNumber     string
	SupplierID         *int64
	IssueDate          time.Time
	DueDate            time.Time
	OriginalAmount     decimal.Decimal
	PendingAmount      decimal.Decimal
	MonthlyInstallment *decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Derived on read.
	Status      PayableStatus
	DaysOverdue int
}

// Payment is an append-only history row on a payable.
type Payment struct {
	ID        int64
	PayableID int64
	Amount    decimal.Decimal
	PaidAt    time.Time
	Method    string
	Reference string
	ActorID   string
	CreatedAt time.Time
}

// AgingBucket summarises pending amounts by overdue period.
type AgingBucket struct {
	Current   decimal.Decimal
	Bucket30  decimal.Decimal
	Bucket60  decimal.Decimal
	Bucket90  decimal.Decimal
	Bucket120 decimal.Decimal
}

// DaysOverdue returns the ceiling of the elapsed days past the due date.
// Negative values mean the document is not yet due; zero means it is due
// today.
func DaysOverdue(dueDate, today time.Time) int {
	diff := today.Sub(dueDate)
	return int(math.Ceil(diff.Hours() / 24))
}

// StatusOf derives the payable status from its pending amount and days
// overdue. Pure function: same inputs, same answer.
func StatusOf(pending decimal.Decimal, daysOverdue int) PayableStatus {
	if pending.LessThanOrEqual(decimal.Zero) {
		return StatusPaid
	}
	if daysOverdue > 0 {
		return StatusOverdue
	}
	return StatusPending
}

// decorate fills the derived fields as of a reference instant.
func (p *Payable) decorate(asOf time.Time) {
	p.DaysOverdue = DaysOverdue(p.DueDate, asOf)
	p.Status = StatusOf(p.PendingAmount, p.DaysOverdue)
}
