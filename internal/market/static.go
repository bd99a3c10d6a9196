package market

import (
	"time"

	"github.com/kjannette/openarb-backend/internal/models"
)

// StaticFeed serves fixed opportunity and price rows for the dashboard.
// It holds no state beyond the clock used to stamp prices.
type StaticFeed struct {
	now func() time.Time
}

func NewStaticFeed(now func() time.Time) *StaticFeed {
	if now == nil {
		now = time.Now
	}
	return &StaticFeed{now: now}
}

func (f *StaticFeed) Opportunities() []models.ArbitrageOpportunity {
	return []models.ArbitrageOpportunity{
		{Pair: "ICP/USDC", Route: "Sonic DEX → ICPSwap", SpreadPct: 2.34, EstProfit: 234.50},
		{Pair: "ckBTC/ICP", Route: "InfinitySwap → Sonic DEX", SpreadPct: 1.87, EstProfit: 187.30},
	}
}

// Prices stamps every row with the same instant.
func (f *StaticFeed) Prices() []models.PriceTick {
	ts := f.now().UTC()
	return []models.PriceTick{
		{Symbol: "ICP", Price: 7.234, Timestamp: ts},
		{Symbol: "ckBTC", Price: 43234.56, Timestamp: ts},
		{Symbol: "USDC", Price: 1.0, Timestamp: ts},
	}
}
