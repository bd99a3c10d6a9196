package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/openarb-backend/internal/ledger"
	"github.com/kjannette/openarb-backend/internal/models"
)

// SnapshotRepo persists the full ledger state to Postgres. Every save rewrites
// all three tables inside one transaction so a reader never sees a mix of
// two snapshots.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

func (r *SnapshotRepo) Name() string { return "postgres" }

func (r *SnapshotRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *SnapshotRepo) Save(ctx context.Context, snap ledger.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM trade_records`); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"accounts"},
		[]string{
			"principal", "wallet_connected", "wallet_type", "total_profit", "total_trades",
			"min_profit_threshold", "max_trade_size", "slippage_tolerance", "auto_trading_enabled",
			"created_at",
		},
		pgx.CopyFromSlice(len(snap.Accounts), func(i int) ([]any, error) {
			a := snap.Accounts[i]
			return []any{
				string(a.Identity), a.WalletConnected, a.WalletType, a.TotalProfit, int64(a.TotalTrades),
				a.Settings.MinProfitThreshold, a.Settings.MaxTradeSize, a.Settings.SlippageTolerance,
				a.Settings.AutoTradingEnabled, a.CreatedAt,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy accounts: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"trade_records"},
		[]string{"seq", "id", "token_pair", "profit", "timestamp", "status"},
		pgx.CopyFromSlice(len(snap.Trades), func(i int) ([]any, error) {
			t := snap.Trades[i]
			return []any{int64(i), t.ID, t.TokenPair, t.Profit, t.Timestamp, t.Status}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy trades: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_state (id, next_id, saved_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET next_id = EXCLUDED.next_id, saved_at = EXCLUDED.saved_at`,
		int64(snap.NextID), snapTime(snap),
	)
	if err != nil {
		return fmt.Errorf("upsert ledger state: %w", err)
	}

	return tx.Commit(ctx)
}

// Load returns the stored snapshot, or nil when nothing was ever saved.
func (r *SnapshotRepo) Load(ctx context.Context) (*ledger.Snapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var snap ledger.Snapshot
	var nextID int64
	err = tx.QueryRow(ctx, `SELECT next_id, saved_at FROM ledger_state WHERE id = 1`).Scan(&nextID, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	snap.NextID = uint64(nextID)

	rows, err := tx.Query(ctx,
		`SELECT principal, wallet_connected, wallet_type, total_profit, total_trades,
		        min_profit_threshold, max_trade_size, slippage_tolerance, auto_trading_enabled,
		        created_at
		 FROM accounts ORDER BY principal COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	snap.Accounts, err = collectAccounts(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}

	rows, err = tx.Query(ctx,
		`SELECT id, token_pair, profit, timestamp, status FROM trade_records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	snap.Trades, err = collectTradeRecords(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scan trades: %w", err)
	}

	return &snap, nil
}

// --- scan helpers ---

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectAccounts(rows rowsIter) ([]models.Account, error) {
	out := []models.Account{}
	for rows.Next() {
		var a models.Account
		var principal string
		var totalTrades int64
		if err := rows.Scan(
			&principal, &a.WalletConnected, &a.WalletType, &a.TotalProfit, &totalTrades,
			&a.Settings.MinProfitThreshold, &a.Settings.MaxTradeSize, &a.Settings.SlippageTolerance,
			&a.Settings.AutoTradingEnabled, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		a.Identity = models.Identity(principal)
		a.TotalTrades = uint32(totalTrades)
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func collectTradeRecords(rows rowsIter) ([]models.TradeRecord, error) {
	out := []models.TradeRecord{}
	for rows.Next() {
		var t models.TradeRecord
		if err := rows.Scan(&t.ID, &t.TokenPair, &t.Profit, &t.Timestamp, &t.Status); err != nil {
			return nil, err
		}
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func snapTime(snap ledger.Snapshot) time.Time {
	if snap.TakenAt.IsZero() {
		return time.Now().UTC()
	}
	return snap.TakenAt
}
