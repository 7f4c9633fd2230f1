package ledger

import (
	"context"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/shared"
)

// accountLocks hands out one mutex per account id so concurrent recomputes
// of the same account serialize instead of racing on the cached balance.
type accountLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *accountLocks) get(accountID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	return m
}

// RecomputeBalance refreshes the cached balance of an account from its
// opening balance and every movement resolvable to it. Idempotent: two
// calls with no intervening movement change yield the same figure.
// Concurrent callers for the same account are deduplicated and the
// underlying aggregate-then-write is serialized per account.
func (s *Service) RecomputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	v, err, _ := s.recomputes.Do(strconv.FormatInt(accountID, 10), func() (any, error) {
		mu := s.locks.get(accountID)
		mu.Lock()
		defer mu.Unlock()

		account, err := s.repo.GetAccount(ctx, accountID)
		if err != nil {
			return decimal.Zero, err
		}
		income, expense, err := s.repo.SumAccountMovements(ctx, accountID)
		if err != nil {
			return decimal.Zero, err
		}
		balance := account.OpeningBalance.Add(income).Sub(expense)
		if err := s.repo.UpdateAccountBalance(ctx, accountID, balance); err != nil {
			return decimal.Zero, err
		}
		return balance, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// SetOpeningBalance is the one administrative path that hand-edits an
// account balance. It rewrites the opening figure and forces a recompute
// so the cached balance never disagrees with the derivation.
func (s *Service) SetOpeningBalance(ctx context.Context, accountID int64, amount decimal.Decimal, actorID string) (Account, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return Account{}, err
	}
	if err := s.repo.SetAccountOpeningBalance(ctx, accountID, amount); err != nil {
		return Account{}, err
	}
	if _, err := s.RecomputeBalance(ctx, accountID); err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, actorID, "ledger.account.set_opening_balance", "account", accountID, map[string]any{
		"amount": amount.String(),
	})
	return s.repo.GetAccount(ctx, accountID)
}

// RecomputeAll refreshes every account's cached balance; used by the
// nightly reconciliation sweep to heal drift left by swallowed dependency
// failures.
func (s *Service) RecomputeAll(ctx context.Context) (RecomputeSummary, error) {
	ids, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return RecomputeSummary{}, err
	}
	var summary RecomputeSummary
	for _, id := range ids {
		before, err := s.repo.GetAccount(ctx, id)
		if err != nil {
			summary.Failed++
			shared.LogDependencyFailure(s.logger, "sweep account load", "account", id, err)
			continue
		}
		balance, err := s.RecomputeBalance(ctx, id)
		if err != nil {
			summary.Failed++
			shared.LogDependencyFailure(s.logger, "sweep account recompute", "account", id, err)
			continue
		}
		summary.Total++
		if !balance.Equal(before.CurrentBalance) {
			summary.Drifted++
		}
	}
	return summary, nil
}
