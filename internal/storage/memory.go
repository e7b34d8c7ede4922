package storage

import (
	"context"
	"sync"

	"github.com/and161185/airtimebot/internal/errs"
	"github.com/and161185/airtimebot/internal/model"
)

// MemoryStorage is the reference store implementation. It mirrors the
// sentinel behavior of PostgresStorage and is what the tests run against.
type MemoryStorage struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{accounts: make(map[string]*model.Account)}
}

func copyAccount(acc *model.Account) model.Account {
	out := *acc
	out.Referrals = append([]string(nil), acc.Referrals...)
	out.Withdrawals = append([]model.Withdrawal(nil), acc.Withdrawals...)
	return out
}

func (s *MemoryStorage) Get(_ context.Context, id string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return model.Account{}, errs.ErrAccountNotFound
	}

	return copyAccount(acc), nil
}

func (s *MemoryStorage) Create(_ context.Context, acc model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return errs.ErrAlreadyRegistered
	}

	stored := copyAccount(&acc)
	s.accounts[acc.ID] = &stored

	return nil
}

func (s *MemoryStorage) CreditReferral(_ context.Context, referrerID, refereeID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[referrerID]
	if !ok {
		return errs.ErrAccountNotFound
	}

	if acc.HasReferral(refereeID) {
		return nil
	}

	acc.Balance += amount
	acc.Referrals = append(acc.Referrals, refereeID)

	return nil
}

func (s *MemoryStorage) CommitWithdrawal(_ context.Context, accountID string, expectedBalance int64, w model.Withdrawal) error {
	if expectedBalance < w.Amount {
		return errs.ErrInsufficientFunds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return errs.ErrAccountNotFound
	}

	if acc.Balance != expectedBalance {
		return errs.ErrBalanceConflict
	}

	acc.Balance -= w.Amount
	acc.Withdrawals = append(acc.Withdrawals, w)

	return nil
}

func (s *MemoryStorage) PendingWithdrawals(_ context.Context) ([]model.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []model.Withdrawal
	for _, acc := range s.accounts {
		for _, w := range acc.Withdrawals {
			if w.Status == model.StatusPending {
				list = append(list, w)
			}
		}
	}

	return list, nil
}

func (s *MemoryStorage) MarkWithdrawalPaid(_ context.Context, id string) (model.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		for i := range acc.Withdrawals {
			if acc.Withdrawals[i].ID != id {
				continue
			}
			if acc.Withdrawals[i].Status != model.StatusPending {
				return model.Withdrawal{}, errs.ErrWithdrawalNotPending
			}
			acc.Withdrawals[i].Status = model.StatusPaid
			return acc.Withdrawals[i], nil
		}
	}

	return model.Withdrawal{}, errs.ErrWithdrawalNotFound
}
