package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/openarb-backend/internal/ledger"
	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/metrics"
	"github.com/kjannette/openarb-backend/internal/models"
)

// Listener is told about committed mutations, in commit order. Calls happen
// after the state lock is released but are serialised with each other, so a
// slow implementation delays the next mutation. Implementations must not block
// and must not call back into the service.
type Listener interface {
	WalletConnected(acct models.Account)
	TradeRecorded(owner models.Identity, rec models.TradeRecord)
}

// AccountService is the operation surface over the ledger state. Every call
// runs as one atomic step: mutations hold the write lock for their whole
// duration, reads hold the read lock and never modify state.
type AccountService struct {
	mu      sync.RWMutex
	state   *ledger.State
	version uint64

	// notifyMu is taken before mu is released so listener calls keep commit order.
	notifyMu sync.Mutex

	now       func() time.Time
	log       *logrus.Entry
	listeners []Listener
}

type Option func(*AccountService)

func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *AccountService) { s.log = logging.Component(l, "accounts") }
}

func WithListener(l Listener) Option {
	return func(s *AccountService) { s.listeners = append(s.listeners, l) }
}

func NewAccountService(opts ...Option) *AccountService {
	s := &AccountService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Component(nil, "accounts")
	}
	s.state = ledger.NewState(s.now)
	return s
}

// ConnectWallet creates the caller's account with default settings and zeroed
// stats. An existing account is replaced and its totals are discarded.
func (s *AccountService) ConnectWallet(id models.Identity, walletType string) error {
	wt := walletType
	acct := models.Account{
		Identity:        id,
		WalletConnected: true,
		WalletType:      &wt,
		Settings:        models.DefaultSettings(),
		CreatedAt:       s.now().UTC(),
	}

	s.mu.Lock()
	prev, err := s.state.Accounts.Get(id)
	replaced := err == nil
	s.state.Accounts.Upsert(id, acct)
	s.version++
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if replaced {
		metrics.WalletConnections.WithLabelValues("replaced").Inc()
		s.log.WithFields(logrus.Fields{
			"principal":      id,
			"dropped_trades": prev.TotalTrades,
			"dropped_profit": prev.TotalProfit,
		}).Warn("Wallet reconnected, account stats reset")
	} else {
		metrics.WalletConnections.WithLabelValues("created").Inc()
		s.log.WithFields(logrus.Fields{"principal": id, "wallet_type": walletType}).Info("Wallet connected")
	}

	for _, l := range s.listeners {
		l.WalletConnected(acct)
	}
	return nil
}

// SaveSettings replaces the caller's settings verbatim.
func (s *AccountService) SaveSettings(id models.Identity, settings models.Settings) error {
	s.mu.Lock()
	err := s.state.Accounts.UpdateSettings(id, settings)
	if err == nil {
		s.version++
	}
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			metrics.NotFound.WithLabelValues("save_settings").Inc()
		}
		return fmt.Errorf("save settings for %s: %w", id, err)
	}
	s.log.WithField("principal", id).Debug("Settings saved")
	return nil
}

// RecordTrade appends a completed trade to the ledger and credits the caller's
// account. It succeeds even when the caller never connected; the account
// update is skipped in that case. A profit that is not finite, or that would
// push the account total past the float64 range, is refused with
// ledger.ErrProfitOutOfRange before any state changes.
func (s *AccountService) RecordTrade(id models.Identity, tokenPair string, profit float64) (string, error) {
	s.mu.Lock()
	if err := s.state.Accounts.CheckAccumulate(id, profit); err != nil {
		s.mu.Unlock()
		metrics.TradesRejected.Inc()
		s.log.WithFields(logrus.Fields{"principal": id, "profit": profit}).WithError(err).Warn("Trade rejected")
		return "", fmt.Errorf("record trade for %s: %w", id, err)
	}
	rec, credited := s.state.Trades.Record(id, tokenPair, profit)
	s.version++
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	metrics.TradesRecorded.WithLabelValues(fmt.Sprint(credited)).Inc()
	metrics.RecordedProfit.Add(profit)

	entry := s.log.WithFields(logrus.Fields{
		"principal": id,
		"trade_id":  rec.ID,
		"pair":      tokenPair,
		"profit":    profit,
	})
	if credited {
		entry.Info("Trade recorded")
	} else {
		entry.Warn("Trade recorded for principal without account, stats not updated")
	}

	for _, l := range s.listeners {
		l.TradeRecorded(id, rec)
	}
	return rec.ID, nil
}

func (s *AccountService) GetUserData(id models.Identity) (models.Account, error) {
	s.mu.RLock()
	acct, err := s.state.Accounts.Get(id)
	s.mu.RUnlock()

	if err != nil {
		metrics.NotFound.WithLabelValues("get_user_data").Inc()
		return models.Account{}, fmt.Errorf("get user data for %s: %w", id, err)
	}
	return acct, nil
}

// GetTradeHistory returns every trade in the ledger, whoever recorded it.
func (s *AccountService) GetTradeHistory() []models.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Trades.ListAll()
}

// Stats reports store sizes for health output.
func (s *AccountService) Stats() (accounts, trades int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Accounts.Len(), s.state.Trades.Len()
}

// Version increases by one for every committed mutation.
func (s *AccountService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot captures the whole state and the version it corresponds to.
func (s *AccountService) Snapshot() (ledger.Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Snapshot(), s.version
}

// Restore loads snap into a service that has not served any mutation yet.
func (s *AccountService) Restore(snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != 0 {
		return fmt.Errorf("restore: service already has %d mutations", s.version)
	}
	fresh := ledger.NewState(s.now)
	if err := fresh.Restore(snap); err != nil {
		return err
	}
	s.state = fresh
	s.log.WithFields(logrus.Fields{
		"accounts": len(snap.Accounts),
		"trades":   len(snap.Trades),
		"next_id":  snap.NextID,
	}).Info("State restored from snapshot")
	return nil
}
