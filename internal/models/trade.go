package models

import "time"

const TradeStatusCompleted = "completed"

type TradeRecord struct {
	ID        string    `json:"id"`
	TokenPair string    `json:"tokenPair"`
	Profit    float64   `json:"profit"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}
