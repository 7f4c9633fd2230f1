package ledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/caoba-erp/caoba-erp/internal/payables"
	"github.com/caoba-erp/caoba-erp/internal/shared"
	"github.com/caoba-erp/caoba-erp/internal/treasury"
)

type fakeRepo struct {
	movements  map[int64]Movement
	accounts   map[int64]Account
	categories map[int64]Category
	nextID     int64

	failBalanceWrite bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		movements:  make(map[int64]Movement),
		accounts:   make(map[int64]Account),
		categories: make(map[int64]Category),
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) CreateMovement(_ context.Context, m Movement) (int64, error) {
	m.ID = f.id()
	f.movements[m.ID] = m
	return m.ID, nil
}

func (f *fakeRepo) GetMovement(_ context.Context, id int64) (Movement, error) {
	m, ok := f.movements[id]
	if !ok {
		return Movement{}, shared.NotFoundf("movement %d", id)
	}
	return m, nil
}

func (f *fakeRepo) UpdateMovement(_ context.Context, m Movement) error {
	if _, ok := f.movements[m.ID]; !ok {
		return shared.NotFoundf("movement %d", m.ID)
	}
	f.movements[m.ID] = m
	return nil
}

func (f *fakeRepo) DeleteMovement(_ context.Context, id int64) error {
	if _, ok := f.movements[id]; !ok {
		return shared.NotFoundf("movement %d", id)
	}
	delete(f.movements, id)
	return nil
}

func (f *fakeRepo) ListMovements(_ context.Context, req ListMovementsRequest) ([]Movement, error) {
	var out []Movement
	for _, m := range f.movements {
		if req.Kind != "" && m.Kind != req.Kind {
			continue
		}
		if req.DrawerID != 0 && (m.DrawerID == nil || *m.DrawerID != req.DrawerID) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) CreateAccount(_ context.Context, a Account) (int64, error) {
	a.ID = f.id()
	f.accounts[a.ID] = a
	return a.ID, nil
}

func (f *fakeRepo) GetAccount(_ context.Context, id int64) (Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return Account{}, shared.NotFoundf("account %d", id)
	}
	return a, nil
}

func (f *fakeRepo) ListAccounts(_ context.Context) ([]Account, error) {
	var out []Account
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) ListAccountIDs(_ context.Context) ([]int64, error) {
	var out []int64
	for id := range f.accounts {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeRepo) SumAccountMovements(_ context.Context, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	income, expense := decimal.Zero, decimal.Zero
	for _, m := range f.movements {
		if m.AccountID == nil || *m.AccountID != accountID {
			continue
		}
		if m.Kind == KindIncome {
			income = income.Add(m.Amount)
		} else {
			expense = expense.Add(m.Amount)
		}
	}
	return income, expense, nil
}

func (f *fakeRepo) UpdateAccountBalance(_ context.Context, accountID int64, balance decimal.Decimal) error {
	if f.failBalanceWrite {
		return errors.New("balance write failed")
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return shared.NotFoundf("account %d", accountID)
	}
	a.CurrentBalance = balance
	f.accounts[accountID] = a
	return nil
}

func (f *fakeRepo) SetAccountOpeningBalance(_ context.Context, accountID int64, amount decimal.Decimal) error {
	a, ok := f.accounts[accountID]
	if !ok {
		return shared.NotFoundf("account %d", accountID)
	}
	a.OpeningBalance = amount
	f.accounts[accountID] = a
	return nil
}

func (f *fakeRepo) CreateCategory(_ context.Context, c Category) (int64, error) {
	c.ID = f.id()
	f.categories[c.ID] = c
	return c.ID, nil
}

func (f *fakeRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return Category{}, shared.NotFoundf("category %d", id)
	}
	return c, nil
}

func (f *fakeRepo) FindDefaultCategory(_ context.Context, kind CategoryKind) (*Category, error) {
	var best *Category
	for id := range f.categories {
		c := f.categories[id]
		if c.Kind != kind {
			continue
		}
		if best == nil || c.ID < best.ID {
			copied := c
			best = &copied
		}
	}
	return best, nil
}

func (f *fakeRepo) ListCategories(_ context.Context) ([]Category, error) {
	var out []Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

type fakeDrawers struct {
	drawers map[int64]treasury.Drawer
	banks   map[int64]treasury.BankAccount

	recomputed    []int64
	failRecompute bool
}

func newFakeDrawers() *fakeDrawers {
	return &fakeDrawers{
		drawers: make(map[int64]treasury.Drawer),
		banks:   make(map[int64]treasury.BankAccount),
	}
}

func (f *fakeDrawers) ResolveDefaultDrawer(_ context.Context, kind treasury.DrawerKind) (*treasury.Drawer, error) {
	var best *treasury.Drawer
	for id := range f.drawers {
		d := f.drawers[id]
		if d.Kind != kind || !d.IsActive {
			continue
		}
		if best == nil || d.ID < best.ID {
			copied := d
			best = &copied
		}
	}
	return best, nil
}

func (f *fakeDrawers) GetDrawer(_ context.Context, id int64) (treasury.Drawer, error) {
	d, ok := f.drawers[id]
	if !ok {
		return treasury.Drawer{}, shared.NotFoundf("drawer %d", id)
	}
	return d, nil
}

func (f *fakeDrawers) GetBankAccount(_ context.Context, id int64) (treasury.BankAccount, error) {
	b, ok := f.banks[id]
	if !ok {
		return treasury.BankAccount{}, shared.NotFoundf("bank account %d", id)
	}
	return b, nil
}

func (f *fakeDrawers) RecomputeDrawerBalance(_ context.Context, drawerID int64) (decimal.Decimal, error) {
	if f.failRecompute {
		return decimal.Zero, errors.New("drawer recompute failed")
	}
	f.recomputed = append(f.recomputed, drawerID)
	return decimal.Zero, nil
}

type fakePayables struct {
	applied []payables.ApplyPaymentInput
	fail    bool
}

func (f *fakePayables) ApplyPayment(_ context.Context, input payables.ApplyPaymentInput) (payables.Payable, error) {
	if f.fail {
		return payables.Payable{}, shared.Validationf("payment exceeds pending amount")
	}
	f.applied = append(f.applied, input)
	return payables.Payable{ID: input.PayableID}, nil
}

type fakeAudit struct {
	entries []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, entry shared.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fixture struct {
	repo     *fakeRepo
	drawers  *fakeDrawers
	payables *fakePayables
	audit    *fakeAudit
	svc      *Service

	incomeCat  int64
	expenseCat int64
	accountID  int64
	drawerID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	drawers := newFakeDrawers()
	payableGW := &fakePayables{}
	audit := &fakeAudit{}
	svc := NewService(repo, drawers, payableGW, audit, slog.Default())
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	incomeCat, err := repo.CreateCategory(ctx, Category{Name: "Ventas", Kind: CategoryIncome})
	require.NoError(t, err)
	expenseCat, err := repo.CreateCategory(ctx, Category{Name: "Gastos", Kind: CategoryExpense})
	require.NoError(t, err)

	accountID, err := repo.CreateAccount(ctx, Account{Code: "CAJA", Name: "Caja General", CategoryID: incomeCat})
	require.NoError(t, err)

	drawers.drawers[1] = treasury.Drawer{ID: 1, Name: "Caja Principal", Kind: treasury.DrawerGeneral, LinkedAccountID: accountID, IsActive: true}

	return &fixture{
		repo:       repo,
		drawers:    drawers,
		payables:   payableGW,
		audit:      audit,
		svc:        svc,
		incomeCat:  incomeCat,
		expenseCat: expenseCat,
		accountID:  accountID,
		drawerID:   1,
	}
}

func TestCreateMovementResolvesDefaultDrawer(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m, err := fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.RequireFromString("150.50"),
		Method:      MethodDrawer,
		Description: "Venta mostrador",
		ActorID:     "maria",
	})
	require.NoError(t, err)
	require.NotNil(t, m.DrawerID)
	require.Equal(t, fx.drawerID, *m.DrawerID)
	require.NotNil(t, m.AccountID)
	require.Equal(t, fx.accountID, *m.AccountID)
	require.Equal(t, fx.incomeCat, m.CategoryID)

	// Drawer cascade fired.
	require.Contains(t, fx.drawers.recomputed, fx.drawerID)

	// Account balance refreshed.
	account, err := fx.repo.GetAccount(ctx, fx.accountID)
	require.NoError(t, err)
	require.True(t, account.CurrentBalance.Equal(decimal.RequireFromString("150.50")))

	// Audit row recorded.
	require.NotEmpty(t, fx.audit.entries)
	require.Equal(t, "ledger.movement.create", fx.audit.entries[0].Action)
}

func TestCreateMovementWithoutDefaultDrawerIsSoftFailure(t *testing.T) {
	fx := newFixture(t)
	delete(fx.drawers.drawers, fx.drawerID)

	m, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(100),
		Method:      MethodDrawer,
		Description: "Venta sin caja",
	})
	require.NoError(t, err)
	require.Nil(t, m.DrawerID)
	require.Nil(t, m.AccountID)
}

func TestCreateMovementValidations(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind: KindIncome, Amount: decimal.Zero, Method: MethodDrawer, Description: "x",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind: "SIDEWAYS", Amount: decimal.NewFromInt(1), Method: MethodDrawer, Description: "x",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind: KindIncome, Amount: decimal.NewFromInt(1), Method: MethodDrawer,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind: KindIncome, Amount: decimal.NewFromInt(1), Method: MethodBank, Description: "x",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind: KindIncome, Amount: decimal.NewFromInt(1), Method: "CHEQUE", Description: "x",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateMovementCategoryKindMismatch(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(10),
		CategoryID:  fx.expenseCat,
		Method:      MethodDrawer,
		Description: "categoria equivocada",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateMovementNoCategoryOfKind(t *testing.T) {
	fx := newFixture(t)
	delete(fx.repo.categories, fx.expenseCat)

	_, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindExpense,
		Amount:      decimal.NewFromInt(10),
		Method:      MethodDrawer,
		Description: "gasto sin categoria",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateMovementUnknownDrawerFails(t *testing.T) {
	fx := newFixture(t)
	missing := int64(99)

	_, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(10),
		Method:      MethodDrawer,
		DrawerID:    &missing,
		Description: "caja inexistente",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, fx.repo.movements)
}

func TestExpenseMovementSettlesPayable(t *testing.T) {
	fx := newFixture(t)
	payableID := int64(7)

	m, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindExpense,
		Amount:      decimal.RequireFromString("800"),
		Method:      MethodDrawer,
		PayableID:   &payableID,
		Description: "Pago proveedor",
		ActorID:     "maria",
	})
	require.NoError(t, err)

	require.Len(t, fx.payables.applied, 1)
	applied := fx.payables.applied[0]
	require.Equal(t, payableID, applied.PayableID)
	require.True(t, applied.Amount.Equal(m.Amount))
	require.Equal(t, "maria", applied.ActorID)
}

func TestIncomeMovementNeverSettlesPayable(t *testing.T) {
	fx := newFixture(t)
	payableID := int64(7)

	_, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(100),
		Method:      MethodDrawer,
		PayableID:   &payableID,
		Description: "Reembolso",
	})
	require.NoError(t, err)
	require.Empty(t, fx.payables.applied)
}

func TestPayableFailureDoesNotRollBackMovement(t *testing.T) {
	fx := newFixture(t)
	fx.payables.fail = true
	payableID := int64(7)

	m, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindExpense,
		Amount:      decimal.NewFromInt(500),
		Method:      MethodDrawer,
		PayableID:   &payableID,
		Description: "Pago proveedor",
	})
	require.NoError(t, err)
	_, ok := fx.repo.movements[m.ID]
	require.True(t, ok)
}

func TestDrawerRecomputeFailureDoesNotRollBackMovement(t *testing.T) {
	fx := newFixture(t)
	fx.drawers.failRecompute = true

	m, err := fx.svc.CreateMovement(context.Background(), CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(100),
		Method:      MethodDrawer,
		Description: "Venta",
	})
	require.NoError(t, err)
	_, ok := fx.repo.movements[m.ID]
	require.True(t, ok)
}

func TestUpdateMovementRecomputesBothTargets(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Second drawer linked to a second account.
	otherAccount, err := fx.repo.CreateAccount(ctx, Account{Code: "BCO", Name: "Banco", CategoryID: fx.incomeCat})
	require.NoError(t, err)
	fx.drawers.drawers[2] = treasury.Drawer{ID: 2, Name: "Caja Sucursal", Kind: treasury.DrawerOther, LinkedAccountID: otherAccount, IsActive: true}

	m, err := fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(300),
		Method:      MethodDrawer,
		Description: "Venta",
	})
	require.NoError(t, err)
	require.Equal(t, fx.accountID, *m.AccountID)

	otherDrawer := int64(2)
	updated, err := fx.svc.UpdateMovement(ctx, m.ID, CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(300),
		Method:      MethodDrawer,
		DrawerID:    &otherDrawer,
		Description: "Venta reclasificada",
	})
	require.NoError(t, err)
	require.Equal(t, otherAccount, *updated.AccountID)

	// Old account no longer carries the movement; new one does.
	oldAcc, err := fx.repo.GetAccount(ctx, fx.accountID)
	require.NoError(t, err)
	require.True(t, oldAcc.CurrentBalance.IsZero(), "got %s", oldAcc.CurrentBalance)
	newAcc, err := fx.repo.GetAccount(ctx, otherAccount)
	require.NoError(t, err)
	require.True(t, newAcc.CurrentBalance.Equal(decimal.NewFromInt(300)))

	// Both drawers were refreshed, old before new.
	require.Equal(t, []int64{1, 1, 2}, fx.drawers.recomputed)
}

func TestDeleteMovementRecomputesTarget(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m, err := fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind:        KindIncome,
		Amount:      decimal.NewFromInt(250),
		Method:      MethodDrawer,
		Description: "Venta",
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteMovement(ctx, m.ID, "maria"))

	account, err := fx.repo.GetAccount(ctx, fx.accountID)
	require.NoError(t, err)
	require.True(t, account.CurrentBalance.IsZero())

	err = fx.svc.DeleteMovement(ctx, m.ID, "maria")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBankMovementUsesLinkedAccount(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	bankAccount, err := fx.repo.CreateAccount(ctx, Account{Code: "BPD", Name: "Banco Popular", CategoryID: fx.incomeCat})
	require.NoError(t, err)
	fx.drawers.banks[5] = treasury.BankAccount{ID: 5, Name: "Cuenta Corriente", LinkedAccountID: bankAccount, IsActive: true}

	bankID := int64(5)
	m, err := fx.svc.CreateMovement(ctx, CreateMovementInput{
		Kind:          KindIncome,
		Amount:        decimal.NewFromInt(1000),
		Method:        MethodBank,
		BankAccountID: &bankID,
		Description:   "Deposito",
	})
	require.NoError(t, err)
	require.Nil(t, m.DrawerID)
	require.Equal(t, bankAccount, *m.AccountID)
}
