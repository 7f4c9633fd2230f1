package treasury

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/caoba-erp/caoba-erp/internal/shared"
)

type fakeRepo struct {
	drawers   map[int64]Drawer
	banks     map[int64]BankAccount
	aperturas []Apertura
	cierres   []Cierre
	// movement sums per drawer id
	income  map[int64]decimal.Decimal
	expense map[int64]decimal.Decimal
	nextID  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		drawers: make(map[int64]Drawer),
		banks:   make(map[int64]BankAccount),
		income:  make(map[int64]decimal.Decimal),
		expense: make(map[int64]decimal.Decimal),
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) CreateDrawer(_ context.Context, d Drawer) (int64, error) {
	d.ID = f.id()
	f.drawers[d.ID] = d
	return d.ID, nil
}

func (f *fakeRepo) GetDrawer(_ context.Context, id int64) (Drawer, error) {
	d, ok := f.drawers[id]
	if !ok {
		return Drawer{}, shared.NotFoundf("drawer %d", id)
	}
	return d, nil
}

func (f *fakeRepo) ListDrawers(_ context.Context) ([]Drawer, error) {
	var out []Drawer
	for _, d := range f.drawers {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeRepo) FindDefaultDrawer(_ context.Context, kind DrawerKind) (*Drawer, error) {
	var best *Drawer
	for id := range f.drawers {
		d := f.drawers[id]
		if !d.IsActive {
			continue
		}
		match := d.Kind == kind
		if !match && kind == DrawerGeneral && strings.HasPrefix(strings.ToLower(d.Name), "caja principal") {
			match = true
		}
		if !match && kind == DrawerStationery && strings.Contains(strings.ToLower(d.Name), "papeler") {
			match = true
		}
		if match && (best == nil || d.ID < best.ID) {
			copied := d
			best = &copied
		}
	}
	return best, nil
}

func (f *fakeRepo) UpdateDrawerBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	d, ok := f.drawers[id]
	if !ok {
		return shared.NotFoundf("drawer %d", id)
	}
	d.CurrentBalance = balance
	f.drawers[id] = d
	return nil
}

func (f *fakeRepo) SumDrawerMovements(_ context.Context, drawerID int64) (decimal.Decimal, decimal.Decimal, error) {
	in, ok := f.income[drawerID]
	if !ok {
		in = decimal.Zero
	}
	out, ok := f.expense[drawerID]
	if !ok {
		out = decimal.Zero
	}
	return in, out, nil
}

func (f *fakeRepo) CreateBankAccount(_ context.Context, b BankAccount) (int64, error) {
	b.ID = f.id()
	f.banks[b.ID] = b
	return b.ID, nil
}

func (f *fakeRepo) GetBankAccount(_ context.Context, id int64) (BankAccount, error) {
	b, ok := f.banks[id]
	if !ok {
		return BankAccount{}, shared.NotFoundf("bank account %d", id)
	}
	return b, nil
}

func (f *fakeRepo) ListBankAccounts(_ context.Context) ([]BankAccount, error) {
	var out []BankAccount
	for _, b := range f.banks {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRepo) CreateApertura(_ context.Context, a Apertura) (int64, error) {
	a.ID = f.id()
	f.aperturas = append(f.aperturas, a)
	return a.ID, nil
}

func (f *fakeRepo) CreateCierre(_ context.Context, c Cierre) (int64, error) {
	c.ID = f.id()
	f.cierres = append(f.cierres, c)
	return c.ID, nil
}

func (f *fakeRepo) LatestApertura(_ context.Context, drawerID int64) (*Apertura, error) {
	var latest *Apertura
	for i := range f.aperturas {
		a := f.aperturas[i]
		if a.DrawerID != drawerID {
			continue
		}
		if latest == nil || a.OpenedAt.After(latest.OpenedAt) {
			latest = &a
		}
	}
	return latest, nil
}

func (f *fakeRepo) LatestCierre(_ context.Context, drawerID int64) (*Cierre, error) {
	var latest *Cierre
	for i := range f.cierres {
		c := f.cierres[i]
		if c.DrawerID != drawerID {
			continue
		}
		if latest == nil || c.ClosedAt.After(latest.ClosedAt) {
			latest = &c
		}
	}
	return latest, nil
}

func (f *fakeRepo) ListAperturas(_ context.Context, drawerID int64, limit int) ([]Apertura, error) {
	var out []Apertura
	for _, a := range f.aperturas {
		if a.DrawerID == drawerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCierres(_ context.Context, drawerID int64, limit int) ([]Cierre, error) {
	var out []Cierre
	for _, c := range f.cierres {
		if c.DrawerID == drawerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo, slog.Default())
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc
}

func seedDrawer(t *testing.T, repo *fakeRepo, name string, kind DrawerKind, opening string) Drawer {
	t.Helper()
	d := Drawer{
		Name:            name,
		Kind:            kind,
		LinkedAccountID: 1,
		OpeningBalance:  decimal.RequireFromString(opening),
		CurrentBalance:  decimal.RequireFromString(opening),
		IsActive:        true,
	}
	id, err := repo.CreateDrawer(context.Background(), d)
	require.NoError(t, err)
	d.ID = id
	return d
}

func TestOpenCloseCycle(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	drawer := seedDrawer(t, repo, "Caja Principal", DrawerGeneral, "0")

	_, err := svc.Open(ctx, OpenDrawerInput{DrawerID: drawer.ID, OpeningAmount: decimal.RequireFromString("500"), ActorID: "maria"})
	require.NoError(t, err)

	open, _, _, err := svc.CurrentSession(ctx, drawer.ID)
	require.NoError(t, err)
	require.True(t, open)

	// Second open while a session is running must conflict.
	_, err = svc.Open(ctx, OpenDrawerInput{DrawerID: drawer.ID, OpeningAmount: decimal.Zero, ActorID: "maria"})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Close(ctx, CloseDrawerInput{DrawerID: drawer.ID, CountedAmount: decimal.Zero, ActorID: "maria"})
	require.NoError(t, err)

	open, _, _, err = svc.CurrentSession(ctx, drawer.ID)
	require.NoError(t, err)
	require.False(t, open)

	// Closing again without a session must conflict.
	_, err = svc.Close(ctx, CloseDrawerInput{DrawerID: drawer.ID, CountedAmount: decimal.Zero, ActorID: "maria"})
	require.ErrorIs(t, err, shared.ErrConflict)

	// The drawer can be reopened indefinitely.
	_, err = svc.Open(ctx, OpenDrawerInput{DrawerID: drawer.ID, OpeningAmount: decimal.RequireFromString("300"), ActorID: "maria"})
	require.NoError(t, err)
}

func TestRecomputeDrawerBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	drawer := seedDrawer(t, repo, "Caja Principal", DrawerGeneral, "1000")

	repo.income[drawer.ID] = decimal.RequireFromString("200")

	balance, err := svc.RecomputeDrawerBalance(ctx, drawer.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("1200")), "got %s", balance)

	got, err := svc.GetDrawer(ctx, drawer.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentBalance.Equal(decimal.RequireFromString("1200")))

	// Idempotent with no intervening movements.
	again, err := svc.RecomputeDrawerBalance(ctx, drawer.ID)
	require.NoError(t, err)
	require.True(t, again.Equal(balance))
}

func TestCloseRecordsVariance(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	drawer := seedDrawer(t, repo, "Caja Principal", DrawerGeneral, "1000")
	repo.income[drawer.ID] = decimal.RequireFromString("200")

	_, err := svc.Open(ctx, OpenDrawerInput{DrawerID: drawer.ID, OpeningAmount: decimal.RequireFromString("1000"), ActorID: "maria"})
	require.NoError(t, err)

	cierre, err := svc.Close(ctx, CloseDrawerInput{
		DrawerID:      drawer.ID,
		CountedAmount: decimal.RequireFromString("1180"),
		IncomeOfDay:   decimal.RequireFromString("200"),
		ActorID:       "maria",
	})
	require.NoError(t, err)
	require.True(t, cierre.Variance.Equal(decimal.RequireFromString("-20")), "got %s", cierre.Variance)

	// Variance is reported, never auto-corrected: the cached balance keeps
	// the movement-derived figure.
	got, err := svc.GetDrawer(ctx, drawer.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentBalance.Equal(decimal.RequireFromString("1200")))
}

func TestResolveDefaultDrawerConvention(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	seedDrawer(t, repo, "Caja Secundaria", DrawerOther, "0")
	main := seedDrawer(t, repo, "Caja Principal", DrawerOther, "0")
	stationery := seedDrawer(t, repo, "Caja Papeleria", DrawerStationery, "0")

	got, err := svc.ResolveDefaultDrawer(ctx, DrawerGeneral)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, main.ID, got.ID)

	got, err = svc.ResolveDefaultDrawer(ctx, DrawerStationery)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, stationery.ID, got.ID)
}

func TestResolveDefaultDrawerSoftMiss(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	got, err := svc.ResolveDefaultDrawer(context.Background(), DrawerGeneral)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOpenRejectsNegativeAmount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	drawer := seedDrawer(t, repo, "Caja Principal", DrawerGeneral, "0")

	_, err := svc.Open(context.Background(), OpenDrawerInput{DrawerID: drawer.ID, OpeningAmount: decimal.RequireFromString("-1")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecomputeAllCountsDrift(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	d1 := seedDrawer(t, repo, "Caja Principal", DrawerGeneral, "100")
	seedDrawer(t, repo, "Caja Papeleria", DrawerStationery, "50")
	repo.income[d1.ID] = decimal.RequireFromString("25")

	total, drifted, err := svc.RecomputeAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, 1, drifted)
}
