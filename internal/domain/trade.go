package domain

import "time"

// RealizedTrade is a completed buy-then-sell pair. It is appended once to the
// realized ledger and never changed afterwards.
type RealizedTrade struct {
	ID        string    `json:"id"`
	Market    string    `json:"market"`
	BuyPrice  float64   `json:"buy_price"`
	SellPrice float64   `json:"sell_price"`
	PLValue   float64   `json:"pl_value"`
	PLPercent float64   `json:"pl_percent"`
	OpenedAt  time.Time `json:"opened_at"`
	ClosedAt  time.Time `json:"closed_at"`
}
