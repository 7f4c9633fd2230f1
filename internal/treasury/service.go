package treasury

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/shared"
)

// Service drives the drawer lifecycle: Closed -> Open -> Closed, cyclical.
// Open/closed state is inferred from the latest apertura/cierre pair; there
// is no status column.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// OpenDrawerInput carries an apertura request.
type OpenDrawerInput struct {
	DrawerID      int64
	OpeningAmount decimal.Decimal
	ActorID       string
	Notes         string
}

// CloseDrawerInput carries a cierre request. IncomeOfDay/ExpenseOfDay are
// informational snapshots supplied by the cashier.
type CloseDrawerInput struct {
	DrawerID      int64
	CountedAmount decimal.Decimal
	IncomeOfDay   decimal.Decimal
	ExpenseOfDay  decimal.Decimal
	ActorID       string
	Notes         string
}

// CreateDrawer registers a new drawer.
func (s *Service) CreateDrawer(ctx context.Context, d Drawer) (Drawer, error) {
	if d.Name == "" {
		return Drawer{}, shared.Validationf("drawer name required")
	}
	if d.LinkedAccountID <= 0 {
		return Drawer{}, shared.Validationf("drawer requires a linked ledger account")
	}
	if d.Kind == "" {
		d.Kind = DrawerOther
	}
	d.IsActive = true
	d.CurrentBalance = d.OpeningBalance
	id, err := s.repo.CreateDrawer(ctx, d)
	if err != nil {
		return Drawer{}, err
	}
	return s.repo.GetDrawer(ctx, id)
}

// CreateBankAccount registers a new bank account.
func (s *Service) CreateBankAccount(ctx context.Context, b BankAccount) (BankAccount, error) {
	if b.Name == "" || b.Number == "" {
		return BankAccount{}, shared.Validationf("bank account name and number required")
	}
	if b.LinkedAccountID <= 0 {
		return BankAccount{}, shared.Validationf("bank account requires a linked ledger account")
	}
	b.IsActive = true
	id, err := s.repo.CreateBankAccount(ctx, b)
	if err != nil {
		return BankAccount{}, err
	}
	return s.repo.GetBankAccount(ctx, id)
}

// GetDrawer returns a drawer by id.
func (s *Service) GetDrawer(ctx context.Context, id int64) (Drawer, error) {
	return s.repo.GetDrawer(ctx, id)
}

// ListDrawers returns all drawers.
func (s *Service) ListDrawers(ctx context.Context) ([]Drawer, error) {
	return s.repo.ListDrawers(ctx)
}

// GetBankAccount returns a bank account by id.
func (s *Service) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	return s.repo.GetBankAccount(ctx, id)
}

// ListBankAccounts returns all bank accounts.
func (s *Service) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	return s.repo.ListBankAccounts(ctx)
}

// ResolveDefaultDrawer locates the conventional drawer for a kind. A nil
// result means no active drawer matches the convention; callers decide how
// soft that failure is.
func (s *Service) ResolveDefaultDrawer(ctx context.Context, kind DrawerKind) (*Drawer, error) {
	return s.repo.FindDefaultDrawer(ctx, kind)
}

// Open starts a drawer session. Fails when the latest apertura has no
// later cierre.
func (s *Service) Open(ctx context.Context, input OpenDrawerInput) (Apertura, error) {
	if input.OpeningAmount.IsNegative() {
		return Apertura{}, shared.Validationf("opening amount cannot be negative")
	}
	if _, err := s.repo.GetDrawer(ctx, input.DrawerID); err != nil {
		return Apertura{}, err
	}
	open, _, err := s.sessionState(ctx, input.DrawerID)
	if err != nil {
		return Apertura{}, err
	}
	if open {
		return Apertura{}, shared.Conflictf("drawer %d already has an open session", input.DrawerID)
	}
	apertura := Apertura{
		DrawerID:      input.DrawerID,
		OpeningAmount: input.OpeningAmount,
		ActorID:       input.ActorID,
		Notes:         input.Notes,
		OpenedAt:      s.now(),
	}
	id, err := s.repo.CreateApertura(ctx, apertura)
	if err != nil {
		return Apertura{}, err
	}
	apertura.ID = id
	return apertura, nil
}

// Close ends the open drawer session, capturing the counted amount and the
// day's totals. The variance against the movement-derived balance is
// recorded for manual reconciliation; CurrentBalance is left untouched.
func (s *Service) Close(ctx context.Context, input CloseDrawerInput) (Cierre, error) {
	drawer, err := s.repo.GetDrawer(ctx, input.DrawerID)
	if err != nil {
		return Cierre{}, err
	}
	open, _, err := s.sessionState(ctx, input.DrawerID)
	if err != nil {
		return Cierre{}, err
	}
	if !open {
		return Cierre{}, shared.Conflictf("drawer %d has no open session", input.DrawerID)
	}

	computed, err := s.RecomputeDrawerBalance(ctx, input.DrawerID)
	if err != nil {
		computed = drawer.CurrentBalance
		shared.LogDependencyFailure(s.logger, "close drawer recompute", "drawer", input.DrawerID, err)
	}
	variance := input.CountedAmount.Sub(computed)
	if !variance.IsZero() {
		s.logger.Warn("drawer close variance",
			slog.Int64("drawer_id", input.DrawerID),
			slog.String("counted", shared.FormatDOP(input.CountedAmount)),
			slog.String("computed", shared.FormatDOP(computed)),
			slog.String("variance", shared.FormatDOP(variance)),
		)
	}

	cierre := Cierre{
		DrawerID:      input.DrawerID,
		CountedAmount: input.CountedAmount,
		IncomeOfDay:   input.IncomeOfDay,
		ExpenseOfDay:  input.ExpenseOfDay,
		Variance:      variance,
		ActorID:       input.ActorID,
		Notes:         input.Notes,
		ClosedAt:      s.now(),
	}
	id, err := s.repo.CreateCierre(ctx, cierre)
	if err != nil {
		return Cierre{}, err
	}
	cierre.ID = id
	return cierre, nil
}

// RecomputeDrawerBalance refreshes the cached balance from the drawer's
// opening balance and its movement history. Idempotent.
func (s *Service) RecomputeDrawerBalance(ctx context.Context, drawerID int64) (decimal.Decimal, error) {
	drawer, err := s.repo.GetDrawer(ctx, drawerID)
	if err != nil {
		return decimal.Zero, err
	}
	income, expense, err := s.repo.SumDrawerMovements(ctx, drawerID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := drawer.OpeningBalance.Add(income).Sub(expense)
	if err := s.repo.UpdateDrawerBalance(ctx, drawerID, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// RecomputeAll refreshes every drawer's cached balance; used by the
// reconciliation sweep. Returns drawer count and how many balances moved.
func (s *Service) RecomputeAll(ctx context.Context) (total, drifted int, err error) {
	drawers, err := s.repo.ListDrawers(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range drawers {
		balance, err := s.RecomputeDrawerBalance(ctx, d.ID)
		if err != nil {
			shared.LogDependencyFailure(s.logger, "sweep drawer recompute", "drawer", d.ID, err)
			continue
		}
		total++
		if !balance.Equal(d.CurrentBalance) {
			drifted++
		}
	}
	return total, drifted, nil
}

// CurrentSession reports the open/closed state of a drawer together with
// the latest apertura/cierre records.
func (s *Service) CurrentSession(ctx context.Context, drawerID int64) (bool, *Apertura, *Cierre, error) {
	if _, err := s.repo.GetDrawer(ctx, drawerID); err != nil {
		return false, nil, nil, err
	}
	ap, err := s.repo.LatestApertura(ctx, drawerID)
	if err != nil {
		return false, nil, nil, err
	}
	ci, err := s.repo.LatestCierre(ctx, drawerID)
	if err != nil {
		return false, nil, nil, err
	}
	open := ap != nil && (ci == nil || ci.ClosedAt.Before(ap.OpenedAt))
	return open, ap, ci, nil
}

// SessionHistory lists past aperturas and cierres for a drawer.
func (s *Service) SessionHistory(ctx context.Context, drawerID int64, limit int) ([]Apertura, []Cierre, error) {
	if _, err := s.repo.GetDrawer(ctx, drawerID); err != nil {
		return nil, nil, err
	}
	aps, err := s.repo.ListAperturas(ctx, drawerID, limit)
	if err != nil {
		return nil, nil, err
	}
	cis, err := s.repo.ListCierres(ctx, drawerID, limit)
	if err != nil {
		return nil, nil, err
	}
	return aps, cis, nil
}

func (s *Service) sessionState(ctx context.Context, drawerID int64) (bool, *Apertura, error) {
	ap, err := s.repo.LatestApertura(ctx, drawerID)
	if err != nil {
		return false, nil, err
	}
	if ap == nil {
		return false, nil, nil
	}
	ci, err := s.repo.LatestCierre(ctx, drawerID)
	if err != nil {
		return false, nil, err
	}
	if ci == nil || ci.ClosedAt.Before(ap.OpenedAt) {
		return true, ap, nil
	}
	return false, ap, nil
}
