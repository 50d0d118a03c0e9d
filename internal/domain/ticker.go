package domain

import "encoding/json"

// TickerSnapshot is one market's entry in the upstream ticker response. Raw
// keeps the upstream object exactly as received so it can be echoed back.
type TickerSnapshot struct {
	Market    string
	LastPrice float64
	High      float64
	Low       float64
	Raw       json.RawMessage
}

// FindTicker returns the first snapshot whose market equals market exactly.
func FindTicker(tickers []TickerSnapshot, market string) (TickerSnapshot, bool) {
	for _, t := range tickers {
		if t.Market == market {
			return t, true
		}
	}
	return TickerSnapshot{}, false
}
