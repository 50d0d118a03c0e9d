package domain

import (
	"context"
	"time"
)

// TickerSource returns the current upstream snapshot. Implementations never
// fail: an unreachable upstream yields an empty slice.
type TickerSource interface {
	FetchTickers(ctx context.Context) []TickerSnapshot
}

// Ledger owns open positions and realized trades.
type Ledger interface {
	RecordBuy(ctx context.Context, market string, price float64, at time.Time) (OpenPosition, error)
	RecordSell(ctx context.Context, market string, ref PositionRef, price float64, at time.Time) (RealizedTrade, error)
	Positions(ctx context.Context, market string) ([]OpenPosition, error)
	ListOpen(ctx context.Context) ([]MarketPositions, error)
	ListRealized(ctx context.Context) ([]RealizedTrade, error)
}
