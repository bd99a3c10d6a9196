package ledger

import (
	"time"

	"github.com/kjannette/openarb-backend/internal/models"
)

// TradeLedger keeps trade records keyed by identifier, in insertion order.
// Records do not remember their owner; ownership only feeds the account totals.
type TradeLedger struct {
	ids      *Allocator
	accounts *AccountStore
	now      func() time.Time

	records map[string]models.TradeRecord
	order   []string
}

func NewTradeLedger(ids *Allocator, accounts *AccountStore, now func() time.Time) *TradeLedger {
	if now == nil {
		now = time.Now
	}
	return &TradeLedger{
		ids:      ids,
		accounts: accounts,
		now:      now,
		records:  make(map[string]models.TradeRecord),
	}
}

// Record stores a completed trade and credits its profit to owner's account.
// The returned bool is false when owner has no account; the record is kept anyway.
func (l *TradeLedger) Record(owner models.Identity, tokenPair string, profit float64) (models.TradeRecord, bool) {
	rec := models.TradeRecord{
		ID:        l.ids.Next(),
		TokenPair: tokenPair,
		Profit:    profit,
		Timestamp: l.now().UTC(),
		Status:    models.TradeStatusCompleted,
	}
	l.insert(rec)
	credited := l.accounts.Accumulate(owner, profit)
	return rec, credited
}

func (l *TradeLedger) Get(id string) (models.TradeRecord, bool) {
	rec, ok := l.records[id]
	return rec, ok
}

// ListAll returns every record regardless of owner, oldest first.
func (l *TradeLedger) ListAll() []models.TradeRecord {
	out := make([]models.TradeRecord, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.records[id])
	}
	return out
}

func (l *TradeLedger) Len() int {
	return len(l.order)
}

func (l *TradeLedger) insert(rec models.TradeRecord) {
	if _, exists := l.records[rec.ID]; !exists {
		l.order = append(l.order, rec.ID)
	}
	l.records[rec.ID] = rec
}
