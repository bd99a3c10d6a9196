package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/kjannette/openarb-backend/internal/models"
)

// State owns the allocator, the account store and the trade ledger.
// None of it is synchronised; the owner must serialise calls.
type State struct {
	IDs      *Allocator
	Accounts *AccountStore
	Trades   *TradeLedger
}

func NewState(now func() time.Time) *State {
	ids := NewAllocator()
	accounts := NewAccountStore()
	return &State{
		IDs:      ids,
		Accounts: accounts,
		Trades:   NewTradeLedger(ids, accounts, now),
	}
}

// Snapshot is the persisted form of a State. The three parts are only
// meaningful together.
type Snapshot struct {
	NextID   uint64               `json:"nextId"`
	Accounts []models.Account     `json:"accounts"`
	Trades   []models.TradeRecord `json:"trades"`
	TakenAt  time.Time            `json:"takenAt"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		NextID:   s.IDs.Peek(),
		Accounts: s.Accounts.All(),
		Trades:   s.Trades.ListAll(),
		TakenAt:  time.Now().UTC(),
	}
}

// Restore replaces the contents of an empty State with snap.
func (s *State) Restore(snap Snapshot) error {
	if s.Trades.Len() > 0 || s.Accounts.Len() > 0 || s.IDs.Peek() != 1 {
		return fmt.Errorf("restore: state is not empty")
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	if err := s.IDs.Restore(snap.NextID); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for _, acct := range snap.Accounts {
		s.Accounts.Upsert(acct.Identity, acct)
	}
	for _, rec := range snap.Trades {
		s.Trades.insert(rec)
	}
	return nil
}

// Validate checks that every trade id is well formed, unique and below NextID,
// and that every profit figure is finite.
func (snap Snapshot) Validate() error {
	if snap.NextID == 0 {
		return fmt.Errorf("snapshot next id must be at least 1")
	}
	seen := make(map[string]struct{}, len(snap.Trades))
	for _, rec := range snap.Trades {
		n, err := ParseID(rec.ID)
		if err != nil {
			return err
		}
		if n >= snap.NextID {
			return fmt.Errorf("trade %s is not below next id %d", rec.ID, snap.NextID)
		}
		if !finite(rec.Profit) {
			return fmt.Errorf("trade %s has non-finite profit", rec.ID)
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("duplicate trade id %s", rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}
	for _, acct := range snap.Accounts {
		if acct.Identity == "" {
			return fmt.Errorf("account without identity")
		}
		if !finite(acct.TotalProfit) {
			return fmt.Errorf("account %s has non-finite total profit", acct.Identity)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
