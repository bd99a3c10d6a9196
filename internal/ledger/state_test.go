package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/openarb-backend/internal/models"
)

func TestState_SnapshotRoundTrip(t *testing.T) {
	src := NewState(nil)
	src.Accounts.Upsert(alice, models.Account{WalletConnected: true, Settings: models.DefaultSettings()})
	src.Trades.Record(alice, "ICP/USDC", 2.5)
	src.Trades.Record("0xbob", "ckBTC/ICP", -1)

	snap := src.Snapshot()
	assert.Equal(t, uint64(3), snap.NextID)
	require.Len(t, snap.Trades, 2)
	require.Len(t, snap.Accounts, 1)

	dst := NewState(nil)
	require.NoError(t, dst.Restore(snap))

	assert.Equal(t, src.Trades.ListAll(), dst.Trades.ListAll())
	got, err := dst.Accounts.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.TotalTrades)

	rec, _ := dst.Trades.Record(alice, "USDC/ICP", 1)
	assert.Equal(t, "trade_3", rec.ID, "allocator must continue after restore")
}

func TestState_RestoreRejectsStaleCounter(t *testing.T) {
	snap := Snapshot{
		NextID: 2,
		Trades: []models.TradeRecord{{ID: "trade_1"}, {ID: "trade_5"}},
	}
	err := NewState(nil).Restore(snap)
	assert.Error(t, err)
}

func TestState_RestoreRejectsDuplicates(t *testing.T) {
	snap := Snapshot{
		NextID: 9,
		Trades: []models.TradeRecord{{ID: "trade_1"}, {ID: "trade_1"}},
	}
	assert.Error(t, NewState(nil).Restore(snap))
}

func TestState_RestoreIntoUsedState(t *testing.T) {
	st := NewState(nil)
	st.Trades.Record(alice, "A/B", 1)
	assert.Error(t, st.Restore(Snapshot{NextID: 1}))
}

func TestSnapshot_ValidateRejectsNonFiniteProfit(t *testing.T) {
	snap := Snapshot{NextID: 2, Trades: []models.TradeRecord{{ID: "trade_1", Profit: math.NaN()}}}
	assert.Error(t, snap.Validate())

	snap = Snapshot{NextID: 1, Accounts: []models.Account{{Identity: alice, TotalProfit: math.Inf(-1)}}}
	assert.Error(t, snap.Validate())
}
