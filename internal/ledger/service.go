package ledger

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/caoba-erp/caoba-erp/internal/payables"
	"github.com/caoba-erp/caoba-erp/internal/shared"
	"github.com/caoba-erp/caoba-erp/internal/treasury"
)

// Service is the ledger entry engine. Movement writes are the unit of
// atomicity; balance refreshes, drawer refreshes and payable settlement
// are best-effort cascades that never roll back the write.
type Service struct {
	repo     RepositoryPort
	drawers  DrawerGateway
	payables PayableGateway
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time

	recomputes singleflight.Group
	locks      accountLocks
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, drawers DrawerGateway, payableGW PayableGateway, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		drawers:  drawers,
		payables: payableGW,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateMovementInput carries a movement write.
type CreateMovementInput struct {
	Kind          MovementKind
	Amount        decimal.Decimal
	CategoryID    int64
	Method        Method
	AccountID     *int64
	DrawerID      *int64
	BankAccountID *int64
	PayableID     *int64
	Description   string
	ActorID       string
	OccurredAt    time.Time
}

// CreateMovement persists a ledger entry after resolving its category and
// money-holding target, then fires the best-effort cascades: payable
// settlement for expense movements, drawer balance refresh, account
// balance refresh, audit row. At most one movement row per call.
func (s *Service) CreateMovement(ctx context.Context, input CreateMovementInput) (Movement, error) {
	m, err := s.buildMovement(ctx, input)
	if err != nil {
		return Movement{}, err
	}
	id, err := s.repo.CreateMovement(ctx, m)
	if err != nil {
		return Movement{}, err
	}
	m.ID = id

	if m.Kind == KindExpense && m.PayableID != nil {
		if _, err := s.payables.ApplyPayment(ctx, payables.ApplyPaymentInput{
			PayableID: *m.PayableID,
			Amount:    m.Amount,
			Date:      m.OccurredAt,
			Method:    string(m.Method),
			Reference: m.Reference,
			ActorID:   m.ActorID,
		}); err != nil {
			shared.LogDependencyFailure(s.logger, "movement payable settlement", "payable", *m.PayableID, err)
		}
	}
	s.refreshTargets(ctx, m)
	s.recordAudit(ctx, m.ActorID, "ledger.movement.create", "movement", m.ID, map[string]any{
		"kind":   string(m.Kind),
		"amount": m.Amount.String(),
		"method": string(m.Method),
	})
	return s.repo.GetMovement(ctx, m.ID)
}

// UpdateMovement rewrites a movement. When the resolved target changed,
// the old drawer/account are refreshed before the new ones so the window
// where neither reflects the movement stays as small as possible.
func (s *Service) UpdateMovement(ctx context.Context, id int64, input CreateMovementInput) (Movement, error) {
	old, err := s.repo.GetMovement(ctx, id)
	if err != nil {
		return Movement{}, err
	}
	m, err := s.buildMovement(ctx, input)
	if err != nil {
		return Movement{}, err
	}
	m.ID = id
	m.Reference = old.Reference
	if err := s.repo.UpdateMovement(ctx, m); err != nil {
		return Movement{}, err
	}

	s.refreshTargets(ctx, old)
	s.refreshTargets(ctx, m)
	s.recordAudit(ctx, m.ActorID, "ledger.movement.update", "movement", id, map[string]any{
		"kind":   string(m.Kind),
		"amount": m.Amount.String(),
		"method": string(m.Method),
	})
	return s.repo.GetMovement(ctx, id)
}

// DeleteMovement removes the entry, then refreshes whatever drawer and
// account it had been attached to.
func (s *Service) DeleteMovement(ctx context.Context, id int64, actorID string) error {
	m, err := s.repo.GetMovement(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMovement(ctx, id); err != nil {
		return err
	}
	s.refreshTargets(ctx, m)
	s.recordAudit(ctx, actorID, "ledger.movement.delete", "movement", id, nil)
	return nil
}

// GetMovement returns a movement by id.
func (s *Service) GetMovement(ctx context.Context, id int64) (Movement, error) {
	return s.repo.GetMovement(ctx, id)
}

// ListMovements returns movements matching the filter.
func (s *Service) ListMovements(ctx context.Context, req ListMovementsRequest) ([]Movement, error) {
	return s.repo.ListMovements(ctx, req)
}

// CreateAccount registers a ledger account.
func (s *Service) CreateAccount(ctx context.Context, a Account) (Account, error) {
	if a.Code == "" || a.Name == "" {
		return Account{}, shared.Validationf("account code and name required")
	}
	if _, err := s.repo.GetCategory(ctx, a.CategoryID); err != nil {
		return Account{}, err
	}
	a.CurrentBalance = a.OpeningBalance
	id, err := s.repo.CreateAccount(ctx, a)
	if err != nil {
		return Account{}, err
	}
	return s.repo.GetAccount(ctx, id)
}

// GetAccount returns an account with its cached balance.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// CreateCategory registers a movement/account category.
func (s *Service) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if c.Name == "" {
		return Category{}, shared.Validationf("category name required")
	}
	if c.Kind != CategoryIncome && c.Kind != CategoryExpense {
		return Category{}, shared.Validationf("category kind must be INCOME or EXPENSE")
	}
	id, err := s.repo.CreateCategory(ctx, c)
	if err != nil {
		return Category{}, err
	}
	return s.repo.GetCategory(ctx, id)
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// buildMovement validates the input and resolves category and target.
func (s *Service) buildMovement(ctx context.Context, input CreateMovementInput) (Movement, error) {
	if input.Kind != KindIncome && input.Kind != KindExpense {
		return Movement{}, shared.Validationf("movement kind must be INCOME or EXPENSE")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return Movement{}, shared.Validationf("movement amount must be positive")
	}
	if input.Description == "" {
		return Movement{}, shared.Validationf("movement description required")
	}

	categoryID, err := s.resolveCategory(ctx, input.Kind, input.CategoryID)
	if err != nil {
		return Movement{}, err
	}

	m := Movement{
		Kind:        input.Kind,
		Amount:      input.Amount,
		CategoryID:  categoryID,
		Method:      input.Method,
		AccountID:   input.AccountID,
		PayableID:   input.PayableID,
		Description: input.Description,
		Reference:   uuid.NewString(),
		ActorID:     input.ActorID,
		OccurredAt:  input.OccurredAt,
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = s.now()
	}
	if m.ActorID == "" {
		m.ActorID = "system"
	}

	switch input.Method {
	case MethodDrawer, MethodStationeryDrawer:
		if err := s.resolveDrawerTarget(ctx, &m, input.DrawerID); err != nil {
			return Movement{}, err
		}
	case MethodBank:
		if input.BankAccountID == nil {
			return Movement{}, shared.Validationf("bank movements require a bank account")
		}
		bank, err := s.drawers.GetBankAccount(ctx, *input.BankAccountID)
		if err != nil {
			return Movement{}, err
		}
		m.BankAccountID = &bank.ID
		if m.AccountID == nil && bank.LinkedAccountID > 0 {
			linked := bank.LinkedAccountID
			m.AccountID = &linked
		}
	default:
		return Movement{}, shared.Validationf("unknown movement method %q", input.Method)
	}
	return m, nil
}

// resolveDrawerTarget picks the movement's drawer. An explicit id must
// exist; an omitted one falls back to the conventional default for the
// method, and a missing default is a soft failure: the movement is kept
// without a drawer and the gap is logged.
func (s *Service) resolveDrawerTarget(ctx context.Context, m *Movement, explicit *int64) error {
	if explicit != nil {
		drawer, err := s.drawers.GetDrawer(ctx, *explicit)
		if err != nil {
			return err
		}
		m.DrawerID = &drawer.ID
		if m.AccountID == nil && drawer.LinkedAccountID > 0 {
			linked := drawer.LinkedAccountID
			m.AccountID = &linked
		}
		return nil
	}

	kind := treasury.DrawerGeneral
	if m.Method == MethodStationeryDrawer {
		kind = treasury.DrawerStationery
	}
	drawer, err := s.drawers.ResolveDefaultDrawer(ctx, kind)
	if err != nil {
		shared.LogDependencyFailure(s.logger, "default drawer resolution", "drawer", 0, err)
		return nil
	}
	if drawer == nil {
		s.logger.Warn("no default drawer matches convention; movement recorded without drawer",
			slog.String("drawer_kind", string(kind)),
		)
		return nil
	}
	m.DrawerID = &drawer.ID
	if m.AccountID == nil && drawer.LinkedAccountID > 0 {
		linked := drawer.LinkedAccountID
		m.AccountID = &linked
	}
	return nil
}

// resolveCategory validates an explicit category or falls back to any
// category of the movement's kind.
func (s *Service) resolveCategory(ctx context.Context, kind MovementKind, categoryID int64) (int64, error) {
	if categoryID > 0 {
		category, err := s.repo.GetCategory(ctx, categoryID)
		if err != nil {
			return 0, err
		}
		if string(category.Kind) != string(kind) {
			return 0, shared.Validationf("category %d is %s, movement is %s", categoryID, category.Kind, kind)
		}
		return category.ID, nil
	}
	category, err := s.repo.FindDefaultCategory(ctx, CategoryKind(kind))
	if err != nil {
		return 0, err
	}
	if category == nil {
		return 0, shared.Validationf("no %s category configured", kind)
	}
	return category.ID, nil
}

// refreshTargets runs the drawer and account balance cascades for a
// movement. Failures are swallowed; the reconciliation sweep heals them.
func (s *Service) refreshTargets(ctx context.Context, m Movement) {
	if m.DrawerID != nil {
		if _, err := s.drawers.RecomputeDrawerBalance(ctx, *m.DrawerID); err != nil {
			shared.LogDependencyFailure(s.logger, "movement drawer recompute", "drawer", *m.DrawerID, err)
		}
	}
	if m.AccountID != nil {
		if _, err := s.RecomputeBalance(ctx, *m.AccountID); err != nil {
			shared.LogDependencyFailure(s.logger, "movement account recompute", "account", *m.AccountID, err)
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		shared.LogDependencyFailure(s.logger, "audit record", entity, entityID, err)
	}
}
