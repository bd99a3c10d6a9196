package models

import "time"

// Identity is the resolved caller principal (a checksummed wallet address).
type Identity string

func (id Identity) String() string { return string(id) }

type Settings struct {
	MinProfitThreshold float64 `json:"minProfitThreshold"`
	MaxTradeSize       float64 `json:"maxTradeSize"`
	SlippageTolerance  float64 `json:"slippageTolerance"`
	AutoTradingEnabled bool    `json:"autoTradingEnabled"`
}

// DefaultSettings are applied on every wallet connect.
func DefaultSettings() Settings {
	return Settings{
		MinProfitThreshold: 0.5,
		MaxTradeSize:       1000.0,
		SlippageTolerance:  1.0,
		AutoTradingEnabled: false,
	}
}

type Account struct {
	Identity        Identity  `json:"principal"`
	WalletConnected bool      `json:"walletConnected"`
	WalletType      *string   `json:"walletType,omitempty"`
	TotalProfit     float64   `json:"totalProfit"`
	TotalTrades     uint32    `json:"totalTrades"`
	Settings        Settings  `json:"settings"`
	CreatedAt       time.Time `json:"createdAt"`
}
