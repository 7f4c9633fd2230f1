package payables

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/caoba-erp/caoba-erp/internal/shared"
)

type fakeRepo struct {
	payables map[int64]Payable
	payments []Payment
	nextID   int64

	failPaymentInsert bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{payables: make(map[int64]Payable)}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

// WithTx snapshots state and restores it when fn fails, mimicking a
// rollback.
func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Payable, len(f.payables))
	for k, v := range f.payables {
		snapshot[k] = v
	}
	payments := make([]Payment, len(f.payments))
	copy(payments, f.payments)

	if err := fn(ctx, (*fakeTx)(f)); err != nil {
		f.payables = snapshot
		f.payments = payments
		return err
	}
	return nil
}

func (f *fakeRepo) CreatePayable(_ context.Context, p Payable) (int64, error) {
	for _, existing := range f.payables {
		if existing.DocumentNumber == p.DocumentNumber {
			return 0, shared.Conflictf("payable document %s already exists", p.DocumentNumber)
		}
	}
	p.ID = f.id()
	f.payables[p.ID] = p
	return p.ID, nil
}

func (f *fakeRepo) GetPayable(_ context.Context, id int64) (Payable, error) {
	p, ok := f.payables[id]
	if !ok {
		return Payable{}, shared.NotFoundf("payable %d", id)
	}
	return p, nil
}

func (f *fakeRepo) ListPayables(_ context.Context, req ListPayablesRequest) ([]Payable, error) {
	var out []Payable
	for _, p := range f.payables {
		if req.SupplierID != 0 && (p.SupplierID == nil || *p.SupplierID != req.SupplierID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) ListOutstanding(_ context.Context) ([]Payable, error) {
	var out []Payable
	for _, p := range f.payables {
		if p.PendingAmount.GreaterThan(decimal.Zero) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeletePayable(_ context.Context, id int64) error {
	if _, ok := f.payables[id]; !ok {
		return shared.NotFoundf("payable %d", id)
	}
	delete(f.payables, id)
	return nil
}

func (f *fakeRepo) ListPayments(_ context.Context, payableID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range f.payments {
		if p.PayableID == payableID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountPayments(_ context.Context, payableID int64) (int, error) {
	count := 0
	for _, p := range f.payments {
		if p.PayableID == payableID {
			count++
		}
	}
	return count, nil
}

type fakeTx fakeRepo

func (f *fakeTx) GetPayableForUpdate(ctx context.Context, id int64) (Payable, error) {
	return (*fakeRepo)(f).GetPayable(ctx, id)
}

func (f *fakeTx) CreatePayment(_ context.Context, p Payment) (int64, error) {
	if f.failPaymentInsert {
		return 0, errors.New("payment insert failed")
	}
	p.ID = (*fakeRepo)(f).id()
	f.payments = append(f.payments, p)
	return p.ID, nil
}

func (f *fakeTx) UpdatePendingAmount(_ context.Context, payableID int64, pending decimal.Decimal) error {
	p, ok := f.payables[payableID]
	if !ok {
		return shared.NotFoundf("payable %d", payableID)
	}
	p.PendingAmount = pending
	f.payables[payableID] = p
	return nil
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return testNow }
	return svc
}

func seedPayable(t *testing.T, svc *Service, doc string, amount string, due time.Time) Payable {
	t.Helper()
	p, err := svc.Create(context.Background(), CreatePayableInput{
		DocumentNumber: doc,
		DueDate:        due,
		OriginalAmount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return p
}

func TestStatusOfIsPure(t *testing.T) {
	cases := []struct {
		name        string
		pending     string
		daysOverdue int
		want        PayableStatus
	}{
		{"paid when pending zero", "0", 30, StatusPaid},
		{"paid when pending negative", "-0.01", 30, StatusPaid},
		{"overdue when past due", "100", 1, StatusOverdue},
		{"pending when due today", "100", 0, StatusPending},
		{"pending when due tomorrow", "100", -1, StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StatusOf(decimal.RequireFromString(tc.pending), tc.daysOverdue)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDaysOverdue(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 10, DaysOverdue(today.AddDate(0, 0, -10), today))
	require.Equal(t, 0, DaysOverdue(today, today))
	require.Equal(t, -5, DaysOverdue(today.AddDate(0, 0, 5), today))
}

func TestOverduePayableScenario(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	p := seedPayable(t, svc, "FC-001", "5000", testNow.AddDate(0, 0, -10))
	require.Equal(t, StatusOverdue, p.Status)
	require.Equal(t, 10, p.DaysOverdue)
	require.True(t, p.PendingAmount.Equal(decimal.RequireFromString("5000")))
}

func TestApplyPaymentDecrementsPending(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	p := seedPayable(t, svc, "FC-001", "5000", testNow.AddDate(0, 0, 30))

	updated, err := svc.ApplyPayment(ctx, ApplyPaymentInput{
		PayableID: p.ID,
		Amount:    decimal.RequireFromString("2000"),
		Method:    "transferencia",
		ActorID:   "maria",
	})
	require.NoError(t, err)
	require.True(t, updated.PendingAmount.Equal(decimal.RequireFromString("3000")))
	require.Equal(t, StatusPending, updated.Status)

	updated, err = svc.ApplyPayment(ctx, ApplyPaymentInput{
		PayableID: p.ID,
		Amount:    decimal.RequireFromString("3000"),
		Method:    "transferencia",
		ActorID:   "maria",
	})
	require.NoError(t, err)
	require.True(t, updated.PendingAmount.IsZero())
	require.Equal(t, StatusPaid, updated.Status)

	history, err := svc.ListPayments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestApplyPaymentRejectsExcess(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	p := seedPayable(t, svc, "FC-001", "1000", testNow.AddDate(0, 0, 30))

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		PayableID: p.ID,
		Amount:    decimal.RequireFromString("1000.01"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorContains(t, err, "payment exceeds pending amount")

	// Nothing was written.
	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, got.PendingAmount.Equal(decimal.RequireFromString("1000")))
	count, err := repo.CountPayments(context.Background(), p.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	p := seedPayable(t, svc, "FC-001", "1000", testNow.AddDate(0, 0, 30))

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{PayableID: p.ID, Amount: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplyPaymentAtomicity(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	p := seedPayable(t, svc, "FC-001", "1000", testNow.AddDate(0, 0, 30))

	repo.failPaymentInsert = true
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		PayableID: p.ID,
		Amount:    decimal.RequireFromString("400"),
	})
	require.Error(t, err)

	// Pending amount untouched after rollback.
	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, got.PendingAmount.Equal(decimal.RequireFromString("1000")))
}

func TestDeleteRejectedWithHistory(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	p := seedPayable(t, svc, "FC-001", "1000", testNow.AddDate(0, 0, 30))

	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{PayableID: p.ID, Amount: decimal.RequireFromString("100")})
	require.NoError(t, err)

	err = svc.Delete(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	clean := seedPayable(t, svc, "FC-002", "500", testNow.AddDate(0, 0, 30))
	require.NoError(t, svc.Delete(ctx, clean.ID))
}

func TestCreateValidations(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePayableInput{DueDate: testNow, OriginalAmount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreatePayableInput{DocumentNumber: "FC-001", DueDate: testNow})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreatePayableInput{DocumentNumber: "FC-001", OriginalAmount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListFiltersByDerivedStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	seedPayable(t, svc, "FC-OLD", "100", testNow.AddDate(0, 0, -5))
	seedPayable(t, svc, "FC-NEW", "200", testNow.AddDate(0, 0, 5))

	overdue, err := svc.List(ctx, ListPayablesRequest{Status: StatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, "FC-OLD", overdue[0].DocumentNumber)
}

func TestCalculateAgingBuckets(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	seedPayable(t, svc, "FC-CUR", "100", testNow.AddDate(0, 0, 10))
	seedPayable(t, svc, "FC-30", "200", testNow.AddDate(0, 0, -15))
	seedPayable(t, svc, "FC-60", "300", testNow.AddDate(0, 0, -45))
	seedPayable(t, svc, "FC-90", "400", testNow.AddDate(0, 0, -75))
	seedPayable(t, svc, "FC-120", "500", testNow.AddDate(0, 0, -200))

	bucket, err := svc.CalculateAging(context.Background(), testNow)
	require.NoError(t, err)
	require.True(t, bucket.Current.Equal(decimal.RequireFromString("100")))
	require.True(t, bucket.Bucket30.Equal(decimal.RequireFromString("200")))
	require.True(t, bucket.Bucket60.Equal(decimal.RequireFromString("300")))
	require.True(t, bucket.Bucket90.Equal(decimal.RequireFromString("400")))
	require.True(t, bucket.Bucket120.Equal(decimal.RequireFromString("500")))
}
