package payables

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/shared"
)

// Service handles accounts-payable business logic.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreatePayableInput for registering a supplier obligation.
type CreatePayableInput struct {
	DocumentNumber     string
	SupplierID         *int64
	IssueDate          time.Time
	DueDate            time.Time
	OriginalAmount     decimal.Decimal
	MonthlyInstallment *decimal.Decimal
}

// ApplyPaymentInput for settling part or all of a payable.
type ApplyPaymentInput struct {
	PayableID int64
	Amount    decimal.Decimal
	Date      time.Time
	Method    string
	Reference string
	ActorID   string
}

// Create registers a payable with its pending amount equal to the
// original amount.
func (s *Service) Create(ctx context.Context, input CreatePayableInput) (Payable, error) {
	if input.DocumentNumber == "" {
		return Payable{}, shared.Validationf("document number required")
	}
	if input.OriginalAmount.LessThanOrEqual(decimal.Zero) {
		return Payable{}, shared.Validationf("original amount must be positive")
	}
	if input.DueDate.IsZero() {
		return Payable{}, shared.Validationf("due date required")
	}
	issue := input.IssueDate
	if issue.IsZero() {
		issue = s.now()
	}
	p := Payable{
		DocumentNumber:     input.DocumentNumber,
		SupplierID:         input.SupplierID,
		IssueDate:          issue,
		DueDate:            input.DueDate,
		OriginalAmount:     input.OriginalAmount,
		PendingAmount:      input.OriginalAmount,
		MonthlyInstallment: input.MonthlyInstallment,
	}
	id, err := s.repo.CreatePayable(ctx, p)
	if err != nil {
		return Payable{}, err
	}
	return s.Get(ctx, id)
}

// Get returns a payable with its derived status and aging.
func (s *Service) Get(ctx context.Context, id int64) (Payable, error) {
	p, err := s.repo.GetPayable(ctx, id)
	if err != nil {
		return Payable{}, err
	}
	p.decorate(s.now())
	return p, nil
}

// List returns payables with derived status, optionally filtered by the
// derived status itself.
func (s *Service) List(ctx context.Context, req ListPayablesRequest) ([]Payable, error) {
	all, err := s.repo.ListPayables(ctx, ListPayablesRequest{SupplierID: req.SupplierID, Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		return nil, err
	}
	asOf := s.now()
	var out []Payable
	for _, p := range all {
		p.decorate(asOf)
		if req.Status != "" && p.Status != req.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ApplyPayment settles part or all of a payable in a single transaction:
// history row appended and pending amount decremented together, or not at
// all.
func (s *Service) ApplyPayment(ctx context.Context, input ApplyPaymentInput) (Payable, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return Payable{}, shared.Validationf("payment amount must be positive")
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	reference := input.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	var updated Payable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPayableForUpdate(ctx, input.PayableID)
		if err != nil {
			return err
		}
		if input.Amount.GreaterThan(p.PendingAmount) {
			return shared.Validationf("payment exceeds pending amount")
		}
		if _, err := tx.CreatePayment(ctx, Payment{
			PayableID: input.PayableID,
			Amount:    input.Amount,
			PaidAt:    date,
			Method:    input.Method,
			Reference: reference,
			ActorID:   input.ActorID,
		}); err != nil {
			return err
		}
		p.PendingAmount = p.PendingAmount.Sub(input.Amount)
		if err := tx.UpdatePendingAmount(ctx, input.PayableID, p.PendingAmount); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Payable{}, err
	}
	updated.decorate(s.now())
	return updated, nil
}

// ListPayments returns the payment history of a payable.
func (s *Service) ListPayments(ctx context.Context, payableID int64) ([]Payment, error) {
	if _, err := s.repo.GetPayable(ctx, payableID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, payableID)
}

// Delete removes a payable. Documents with payment history are kept
// forever; reversals go through payment records.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetPayable(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountPayments(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.Conflictf("payable %d has payment history", id)
	}
	return s.repo.DeletePayable(ctx, id)
}

// CalculateAging returns pending amounts grouped by overdue buckets.
func (s *Service) CalculateAging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	outstanding, err := s.repo.ListOutstanding(ctx)
	if err != nil {
		return AgingBucket{}, err
	}
	bucket := AgingBucket{
		Current:   decimal.Zero,
		Bucket30:  decimal.Zero,
		Bucket60:  decimal.Zero,
		Bucket90:  decimal.Zero,
		Bucket120: decimal.Zero,
	}
	for _, p := range outstanding {
		days := DaysOverdue(p.DueDate, asOf)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(p.PendingAmount)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(p.PendingAmount)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(p.PendingAmount)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(p.PendingAmount)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(p.PendingAmount)
		}
	}
	return bucket, nil
}
