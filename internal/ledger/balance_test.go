package ledger

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/caoba-erp/caoba-erp/internal/shared"
)

func newBalanceFixture(t *testing.T) (*fakeRepo, *Service, int64) {
	t.Helper()
	repo := newFakeRepo()
	svc := NewService(repo, newFakeDrawers(), &fakePayables{}, nil, slog.Default())

	ctx := context.Background()
	catID, err := repo.CreateCategory(ctx, Category{Name: "Ventas", Kind: CategoryIncome})
	require.NoError(t, err)
	accountID, err := repo.CreateAccount(ctx, Account{
		Code:           "CAJA",
		Name:           "Caja General",
		CategoryID:     catID,
		OpeningBalance: decimal.RequireFromString("500"),
	})
	require.NoError(t, err)
	return repo, svc, accountID
}

func TestRecomputeBalanceDerivation(t *testing.T) {
	repo, svc, accountID := newBalanceFixture(t)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	expected := decimal.RequireFromString("500")
	for i := 0; i < 200; i++ {
		cents := rng.Int63n(1_000_000) + 1
		amount := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
		kind := KindIncome
		if rng.Intn(2) == 0 {
			kind = KindExpense
		}
		_, err := repo.CreateMovement(ctx, Movement{
			Kind:      kind,
			Amount:    amount,
			AccountID: &accountID,
		})
		require.NoError(t, err)
		if kind == KindIncome {
			expected = expected.Add(amount)
		} else {
			expected = expected.Sub(amount)
		}
	}

	balance, err := svc.RecomputeBalance(ctx, accountID)
	require.NoError(t, err)
	require.True(t, balance.Equal(expected), "want %s got %s", expected, balance)

	account, err := repo.GetAccount(ctx, accountID)
	require.NoError(t, err)
	require.True(t, account.CurrentBalance.Equal(expected))
}

func TestRecomputeBalanceIdempotent(t *testing.T) {
	repo, svc, accountID := newBalanceFixture(t)
	ctx := context.Background()

	_, err := repo.CreateMovement(ctx, Movement{Kind: KindIncome, Amount: decimal.NewFromInt(100), AccountID: &accountID})
	require.NoError(t, err)

	first, err := svc.RecomputeBalance(ctx, accountID)
	require.NoError(t, err)
	second, err := svc.RecomputeBalance(ctx, accountID)
	require.NoError(t, err)
	require.True(t, first.Equal(second))
}

func TestRecomputeBalanceUnknownAccount(t *testing.T) {
	_, svc, _ := newBalanceFixture(t)

	_, err := svc.RecomputeBalance(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecomputeBalanceConcurrent(t *testing.T) {
	repo, svc, accountID := newBalanceFixture(t)
	ctx := context.Background()

	_, err := repo.CreateMovement(ctx, Movement{Kind: KindIncome, Amount: decimal.NewFromInt(250), AccountID: &accountID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			balance, err := svc.RecomputeBalance(ctx, accountID)
			require.NoError(t, err)
			require.True(t, balance.Equal(decimal.NewFromInt(750)))
		}()
	}
	wg.Wait()

	account, err := repo.GetAccount(ctx, accountID)
	require.NoError(t, err)
	require.True(t, account.CurrentBalance.Equal(decimal.NewFromInt(750)))
}

func TestSetOpeningBalanceForcesRecompute(t *testing.T) {
	repo, svc, accountID := newBalanceFixture(t)
	ctx := context.Background()

	_, err := repo.CreateMovement(ctx, Movement{Kind: KindIncome, Amount: decimal.NewFromInt(100), AccountID: &accountID})
	require.NoError(t, err)

	account, err := svc.SetOpeningBalance(ctx, accountID, decimal.NewFromInt(1000), "admin")
	require.NoError(t, err)
	require.True(t, account.OpeningBalance.Equal(decimal.NewFromInt(1000)))
	require.True(t, account.CurrentBalance.Equal(decimal.NewFromInt(1100)))
}

func TestRecomputeAllReportsDrift(t *testing.T) {
	repo, svc, accountID := newBalanceFixture(t)
	ctx := context.Background()

	// Second account already in sync.
	catID := int64(1)
	_, err := repo.CreateAccount(ctx, Account{Code: "OTRA", Name: "Otra", CategoryID: catID})
	require.NoError(t, err)

	_, err = repo.CreateMovement(ctx, Movement{Kind: KindExpense, Amount: decimal.NewFromInt(200), AccountID: &accountID})
	require.NoError(t, err)

	summary, err := svc.RecomputeAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.Drifted)
	require.Zero(t, summary.Failed)
}
