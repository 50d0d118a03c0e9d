package domain

// OpenPosition is a simulated purchase that has not been sold yet.
type OpenPosition struct {
	ID        string  `json:"id"`
	Market    string  `json:"market"`
	BuyPrice  float64 `json:"buy_price"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}

// MarketPositions groups the open positions of one market in append order.
type MarketPositions struct {
	Market    string
	Positions []OpenPosition
}

// PositionRef identifies an open position within a market either by its
// current index in the market's sequence or by its stable ID. ID wins when set.
type PositionRef struct {
	Index int
	ID    string
}

// SignalRow is one open position valued against the current snapshot.
type SignalRow struct {
	Market       string  `json:"market"`
	BuyPrice     float64 `json:"buy_price"`
	CurrentPrice float64 `json:"current_price"`
	PLValue      float64 `json:"pl_value"`
	PLPercent    float64 `json:"pl_percent"`
	Index        int     `json:"index"`
	ID           string  `json:"id"`
	Timestamp    int64   `json:"timestamp"`
}
