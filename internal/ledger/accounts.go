package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kjannette/openarb-backend/internal/models"
)

// ErrNotFound is returned when no account exists for an identity.
var ErrNotFound = errors.New("user not found")

// ErrProfitOutOfRange is returned when a profit, or the total it would
// produce, is not a finite number.
var ErrProfitOutOfRange = errors.New("profit out of range")

// AccountStore maps caller identities to their accounts.
type AccountStore struct {
	accounts map[models.Identity]*models.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[models.Identity]*models.Account)}
}

// Upsert inserts or fully replaces the account for id. Prior stats are dropped.
func (s *AccountStore) Upsert(id models.Identity, acct models.Account) {
	acct.Identity = id
	s.accounts[id] = &acct
}

func (s *AccountStore) Get(id models.Identity) (models.Account, error) {
	acct, ok := s.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return cloneAccount(acct), nil
}

// UpdateSettings replaces only the settings of an existing account.
func (s *AccountStore) UpdateSettings(id models.Identity, settings models.Settings) error {
	acct, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acct.Settings = settings
	return nil
}

// Accumulate folds one trade into the account's totals. It reports whether an
// account existed; a missing account is left untouched.
func (s *AccountStore) Accumulate(id models.Identity, profit float64) bool {
	acct, ok := s.accounts[id]
	if !ok {
		return false
	}
	acct.TotalProfit += profit
	acct.TotalTrades++
	return true
}

// CheckAccumulate reports whether Accumulate(id, profit) keeps the totals
// finite. A missing account only needs profit itself to be finite.
func (s *AccountStore) CheckAccumulate(id models.Identity, profit float64) error {
	if math.IsNaN(profit) || math.IsInf(profit, 0) {
		return fmt.Errorf("%w: %v", ErrProfitOutOfRange, profit)
	}
	acct, ok := s.accounts[id]
	if !ok {
		return nil
	}
	if total := acct.TotalProfit + profit; math.IsInf(total, 0) {
		return fmt.Errorf("%w: total profit %v + %v overflows", ErrProfitOutOfRange, acct.TotalProfit, profit)
	}
	return nil
}

func (s *AccountStore) Len() int {
	return len(s.accounts)
}

// All returns copies of every account ordered by identity.
func (s *AccountStore) All() []models.Account {
	out := make([]models.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, cloneAccount(acct))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

func cloneAccount(acct *models.Account) models.Account {
	c := *acct
	if acct.WalletType != nil {
		wt := *acct.WalletType
		c.WalletType = &wt
	}
	return c
}
