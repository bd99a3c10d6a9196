package kvstore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/openarb-backend/internal/ledger"
	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/models"
	"github.com/kjannette/openarb-backend/internal/service"
)

func TestSnapshotStore_EmptyLoad(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSnapshotStore_SaveLoadAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ts := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	st := ledger.NewState(func() time.Time { return ts })
	st.Accounts.Upsert("0xA11CE", models.Account{WalletConnected: true, Settings: models.DefaultSettings(), CreatedAt: ts})
	st.Trades.Record("0xA11CE", "ICP/USDC", 2.5)
	st.Trades.Record("0xA11CE", "ckBTC/ICP", -1)
	snap := st.Snapshot()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, snap))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap.NextID, loaded.NextID)
	assert.Equal(t, snap.Trades, loaded.Trades)
	assert.Equal(t, snap.Accounts, loaded.Accounts)

	restored := ledger.NewState(nil)
	require.NoError(t, restored.Restore(*loaded))
	acct, err := restored.Accounts.Get("0xA11CE")
	require.NoError(t, err)
	assert.Equal(t, 1.5, acct.TotalProfit)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestSnapshotStore_RejectsNonFiniteProfit(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	good := ledger.Snapshot{
		NextID:   2,
		Accounts: []models.Account{{Identity: "0xA11CE", TotalProfit: 1e308, TotalTrades: 1}},
		Trades:   []models.TradeRecord{{ID: "trade_1", TokenPair: "ICP/USDC", Profit: 1e308}},
	}
	require.NoError(t, s.Save(ctx, good))

	bad := good
	bad.Accounts = []models.Account{{Identity: "0xA11CE", TotalProfit: math.Inf(1), TotalTrades: 2}}
	err = s.Save(ctx, bad)
	require.Error(t, err)
	assert.ErrorContains(t, err, "non-finite")

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 1e308, loaded.Accounts[0].TotalProfit, "previous snapshot must survive")
}

func TestSnapshotStore_SavesAfterRefusedOverflow(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	svc := service.NewAccountService(service.WithLogger(logging.Discard()))
	require.NoError(t, svc.ConnectWallet("0xA11CE", "metamask"))
	_, err = svc.RecordTrade("0xA11CE", "ICP/USDC", 1e308)
	require.NoError(t, err)
	_, err = svc.RecordTrade("0xA11CE", "ICP/USDC", 1e308)
	require.ErrorIs(t, err, ledger.ErrProfitOutOfRange)

	snap, _ := svc.Snapshot()
	require.NoError(t, s.Save(ctx, snap))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Trades, 1)
	assert.Equal(t, uint64(2), loaded.NextID)
}
