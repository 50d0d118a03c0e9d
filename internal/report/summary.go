// Package report summarizes and charts realized trades.
package report

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// Summary aggregates a set of realized trades.
type Summary struct {
	Count   int     `json:"count"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	TotalPL float64 `json:"total_pl"`
	BestPL  float64 `json:"best_pl"`
	WorstPL float64 `json:"worst_pl"`
	WinRate float64 `json:"win_rate"` // percent of trades with positive P/L
}

// Summarize totals trades. Sums use decimal arithmetic so long ledgers do
// not drift.
func Summarize(trades []domain.RealizedTrade) Summary {
	s := Summary{Count: len(trades)}
	if len(trades) == 0 {
		return s
	}

	total := decimal.Zero
	s.BestPL, s.WorstPL = trades[0].PLValue, trades[0].PLValue
	for _, t := range trades {
		total = total.Add(decimal.NewFromFloat(t.PLValue))
		switch {
		case t.PLValue > 0:
			s.Wins++
		case t.PLValue < 0:
			s.Losses++
		}
		s.BestPL = max(s.BestPL, t.PLValue)
		s.WorstPL = min(s.WorstPL, t.PLValue)
	}
	s.TotalPL = total.InexactFloat64()
	s.WinRate = decimal.NewFromInt(int64(s.Wins)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(s.Count))).
		Round(2).
		InexactFloat64()
	return s
}

// Cumulative returns the running P/L after each trade, in input order.
func Cumulative(trades []domain.RealizedTrade) []float64 {
	out := make([]float64, len(trades))
	running := decimal.Zero
	for i, t := range trades {
		running = running.Add(decimal.NewFromFloat(t.PLValue))
		out[i] = running.InexactFloat64()
	}
	return out
}
