package coindcx

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// APITicker is one element of the CoinDCX /exchange/ticker response. Prices
// are sent as JSON strings by CoinDCX; decimal accepts strings and numbers.
// Only the fields the desk reads are decoded; bid, ask, volume and the rest
// reach clients through Raw, so a bad value there never drops a market.
type APITicker struct {
	Market    string          `json:"market"`
	LastPrice decimal.Decimal `json:"last_price"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
}

// ToDomainTicker converts the DTO into a domain snapshot carrying raw as the
// verbatim upstream object.
func (t APITicker) ToDomainTicker(raw json.RawMessage) domain.TickerSnapshot {
	last, _ := t.LastPrice.Float64()
	high, _ := t.High.Float64()
	low, _ := t.Low.Float64()
	return domain.TickerSnapshot{
		Market:    t.Market,
		LastPrice: last,
		High:      high,
		Low:       low,
		Raw:       raw,
	}
}
