package invoicing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/ledger"
	"github.com/caoba-erp/caoba-erp/internal/shared"
)

// LedgerGateway posts income movements for collected payments.
// Satisfied by *ledger.Service.
type LedgerGateway interface {
	CreateMovement(ctx context.Context, input ledger.CreateMovementInput) (ledger.Movement, error)
}

// Service orchestrates the invoice lifecycle. The invoice/payment/
// receivable writes of one operation share a transaction; the ledger
// posting is a best-effort cascade.
type Service struct {
	repo    RepositoryPort
	numbers NumberGenerator
	ledger  LedgerGateway
	stats   *StatsCache
	logger  *slog.Logger
	now     func() time.Time

	prefix  string
	taxRate decimal.Decimal
}

// ServiceParams groups Service dependencies. Stats may be nil.
type ServiceParams struct {
	Repo    RepositoryPort
	Numbers NumberGenerator
	Ledger  LedgerGateway
	Stats   *StatsCache
	Logger  *slog.Logger
	Prefix  string
	TaxRate decimal.Decimal
}

// NewService builds Service instance.
func NewService(params ServiceParams) *Service {
	prefix := params.Prefix
	if prefix == "" {
		prefix = "FAC"
	}
	return &Service{
		repo:    params.Repo,
		numbers: params.Numbers,
		ledger:  params.Ledger,
		stats:   params.Stats,
		logger:  params.Logger,
		now:     time.Now,
		prefix:  prefix,
		taxRate: params.TaxRate,
	}
}

// CreateInvoiceInput carries a new invoice.
type CreateInvoiceInput struct {
	CustomerID    *int64
	Lines         []InvoiceLine
	Discount      decimal.Decimal
	IssuedAt      time.Time
	PayNow        bool
	Method        string
	BankAccountID *int64
	ActorID       string
}

// PayInvoiceInput carries a customer payment.
type PayInvoiceInput struct {
	InvoiceID     int64
	Amount        decimal.Decimal
	Discount      decimal.Decimal
	Method        string
	Reference     string
	BankAccountID *int64
	ActorID       string
}

// CreateInvoice computes totals from the line items and persists the
// invoice. Unpaid invoices get a receivable for the full total; a pay-now
// invoice is settled immediately through PayInvoice, which also posts the
// income movement.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if len(input.Lines) == 0 {
		return Invoice{}, shared.Validationf("invoice requires at least one line")
	}
	subtotal := decimal.Zero
	for i := range input.Lines {
		line := &input.Lines[i]
		if line.Quantity.LessThanOrEqual(decimal.Zero) {
			return Invoice{}, shared.Validationf("line quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return Invoice{}, shared.Validationf("line unit price cannot be negative")
		}
		line.LineTotal = line.Quantity.Mul(line.UnitPrice)
		subtotal = subtotal.Add(line.LineTotal)
	}
	if input.Discount.IsNegative() || input.Discount.GreaterThan(subtotal) {
		return Invoice{}, shared.Validationf("discount must be between zero and the subtotal")
	}
	if input.PayNow && input.Method == "" {
		return Invoice{}, shared.Validationf("pay-now invoices require a payment method")
	}

	issued := input.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}
	taxable := subtotal.Sub(input.Discount)
	tax := taxable.Mul(s.taxRate).Div(decimal.NewFromInt(100))
	total := taxable.Add(tax)

	number, err := s.numbers.Next(ctx, s.prefix, issued.Year())
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{
		Number:     number,
		CustomerID: input.CustomerID,
		Status:     InvoicePending,
		Subtotal:   subtotal,
		Discount:   input.Discount,
		TaxRate:    s.taxRate,
		Tax:        tax,
		Total:      total,
		IssuedAt:   issued,
		Lines:      input.Lines,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = id
		if !input.PayNow {
			_, err = tx.CreateReceivable(ctx, Receivable{
				InvoiceID:     id,
				PendingAmount: total,
				Status:        ReceivablePending,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	if input.PayNow {
		if _, err := s.PayInvoice(ctx, PayInvoiceInput{
			InvoiceID:     inv.ID,
			Amount:        total,
			Method:        input.Method,
			BankAccountID: input.BankAccountID,
			ActorID:       input.ActorID,
		}); err != nil {
			return Invoice{}, err
		}
	}
	s.invalidateStats(ctx)
	return s.repo.GetInvoice(ctx, inv.ID)
}

// PayInvoice applies a customer payment. Payment row, status transition
// and receivable mirror commit together; the income movement is posted
// afterwards, best effort. Settled value beyond the remaining balance is
// rejected.
func (s *Service) PayInvoice(ctx context.Context, input PayInvoiceInput) (Invoice, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return Invoice{}, shared.Validationf("payment amount must be positive")
	}
	if input.Discount.IsNegative() {
		return Invoice{}, shared.Validationf("payment discount cannot be negative")
	}
	reference := input.Reference
	if reference == "" {
		reference = uuid.NewString()
	}
	paidAt := s.now()

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case InvoicePaid:
			return shared.Conflictf("invoice %s is already paid", inv.Number)
		case InvoiceVoid:
			return shared.Conflictf("invoice %s is void", inv.Number)
		}

		paidSoFar, err := tx.SumConfirmedPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		credit := input.Amount.Add(input.Discount)
		remaining := inv.Total.Sub(paidSoFar)
		if credit.GreaterThan(remaining) {
			return shared.Validationf("payment exceeds invoice balance of %s", shared.FormatDOP(remaining))
		}

		if _, err := tx.CreatePayment(ctx, Payment{
			InvoiceID: inv.ID,
			Amount:    input.Amount,
			Discount:  input.Discount,
			Method:    input.Method,
			Reference: reference,
			ActorID:   input.ActorID,
			Confirmed: true,
			PaidAt:    paidAt,
		}); err != nil {
			return err
		}

		newPaid := paidSoFar.Add(credit)
		status := InvoicePartial
		if newPaid.GreaterThanOrEqual(inv.Total) {
			status = InvoicePaid
		}
		if err := tx.UpdateInvoiceStatus(ctx, inv.ID, status); err != nil {
			return err
		}
		inv.Status = status

		rcv, err := tx.GetReceivable(ctx, inv.ID)
		if err != nil {
			return err
		}
		if rcv != nil {
			pending := inv.Total.Sub(newPaid)
			if pending.IsNegative() {
				pending = decimal.Zero
			}
			rcvStatus := ReceivablePending
			if pending.IsZero() {
				rcvStatus = ReceivablePaid
			}
			if err := tx.UpdateReceivable(ctx, inv.ID, pending, rcvStatus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.postIncomeMovement(ctx, inv, input)
	s.invalidateStats(ctx)
	return s.repo.GetInvoice(ctx, inv.ID)
}

// VoidInvoice cancels an unpaid invoice. Invoices with payments must be
// reversed through payment records, never silently voided.
func (s *Service) VoidInvoice(ctx context.Context, id int64, actorID string) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == InvoiceVoid {
			return shared.Conflictf("invoice %s is already void", inv.Number)
		}
		count, err := tx.CountPayments(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return shared.Conflictf("invoice %s has payments; reverse them first", inv.Number)
		}
		if err := tx.UpdateInvoiceStatus(ctx, id, InvoiceVoid); err != nil {
			return err
		}
		rcv, err := tx.GetReceivable(ctx, id)
		if err != nil {
			return err
		}
		if rcv != nil {
			return tx.UpdateReceivable(ctx, id, decimal.Zero, ReceivableVoid)
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidateStats(ctx)
	return s.repo.GetInvoice(ctx, id)
}

// ReactivateInvoice restores a void invoice to pending, along with its
// receivable.
func (s *Service) ReactivateInvoice(ctx context.Context, id int64, actorID string) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceVoid {
			return shared.Conflictf("invoice %s is not void", inv.Number)
		}
		if err := tx.UpdateInvoiceStatus(ctx, id, InvoicePending); err != nil {
			return err
		}
		rcv, err := tx.GetReceivable(ctx, id)
		if err != nil {
			return err
		}
		if rcv != nil {
			return tx.UpdateReceivable(ctx, id, inv.Total, ReceivablePending)
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidateStats(ctx)
	return s.repo.GetInvoice(ctx, id)
}

// GetInvoice returns an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns invoices matching the filter.
func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, req)
}

// ListPayments returns the payment history of an invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// GetReceivable returns the invoice's receivable, nil when none exists.
func (s *Service) GetReceivable(ctx context.Context, invoiceID int64) (*Receivable, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.GetReceivable(ctx, invoiceID)
}

// CollectStats aggregates the invoice book, serving from the redis cache
// when fresh.
func (s *Service) CollectStats(ctx context.Context) (Stats, error) {
	if stats, ok := s.stats.Get(ctx); ok {
		return stats, nil
	}
	stats, err := s.repo.CollectStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	if err := s.stats.Set(ctx, stats); err != nil {
		shared.LogDependencyFailure(s.logger, "stats cache set", "stats", 0, err)
	}
	return stats, nil
}

// postIncomeMovement records the collected cash in the ledger. Cash-like
// methods resolve the default drawer; an explicit bank account routes the
// movement there instead. Failures never unwind the payment.
func (s *Service) postIncomeMovement(ctx context.Context, inv Invoice, input PayInvoiceInput) {
	if s.ledger == nil {
		return
	}
	method := ledger.MethodDrawer
	if input.BankAccountID != nil {
		method = ledger.MethodBank
	}
	_, err := s.ledger.CreateMovement(ctx, ledger.CreateMovementInput{
		Kind:          ledger.KindIncome,
		Amount:        input.Amount,
		Method:        method,
		BankAccountID: input.BankAccountID,
		Description:   "Cobro factura " + inv.Number,
		ActorID:       input.ActorID,
	})
	if err != nil {
		shared.LogDependencyFailure(s.logger, "invoice ledger posting", "invoice", inv.ID, err)
	}
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.stats.Invalidate(ctx); err != nil {
		shared.LogDependencyFailure(s.logger, "stats cache invalidate", "stats", 0, err)
	}
}
