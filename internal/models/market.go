package models

import "time"

type ArbitrageOpportunity struct {
	Pair      string  `json:"pair"`
	Route     string  `json:"route"`
	SpreadPct float64 `json:"spreadPct"`
	EstProfit float64 `json:"estProfit"`
}

type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
