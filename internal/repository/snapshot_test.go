package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/openarb-backend/internal/ledger"
	"github.com/kjannette/openarb-backend/internal/models"
	"github.com/kjannette/openarb-backend/internal/repository"
	"github.com/kjannette/openarb-backend/internal/testutil"
)

func TestSnapshotRepo(t *testing.T) {
	pool, _ := testutil.SetupPool(t)
	repo := repository.NewSnapshotRepo(pool)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	st := ledger.NewState(func() time.Time { return ts })
	wt := "metamask"
	st.Accounts.Upsert("0xA11CE", models.Account{
		WalletConnected: true,
		WalletType:      &wt,
		Settings:        models.DefaultSettings(),
		CreatedAt:       ts,
	})
	st.Accounts.Upsert("0xB0B", models.Account{WalletConnected: true, CreatedAt: ts})
	st.Trades.Record("0xA11CE", "ICP/USDC", 2.5)
	st.Trades.Record("0xB0B", "ckBTC/ICP", -1)
	st.Trades.Record("0xA11CE", "USDC/ICP", 0.25)

	snap := st.Snapshot()
	require.NoError(t, repo.Save(ctx, snap))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, snap.NextID, loaded.NextID)
	assert.Equal(t, snap.Trades, loaded.Trades)
	assert.Equal(t, snap.Accounts, loaded.Accounts)
	t.Logf("Loaded snapshot: next=%d accounts=%d trades=%d", loaded.NextID, len(loaded.Accounts), len(loaded.Trades))

	// A second save fully replaces the first.
	fresh := ledger.NewState(nil)
	fresh.Trades.Record("0xC", "A/B", 1)
	require.NoError(t, repo.Save(ctx, fresh.Snapshot()))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Trades, 1)
	assert.Empty(t, loaded.Accounts)
	assert.Equal(t, uint64(2), loaded.NextID)
}
