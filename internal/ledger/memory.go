// Package ledger holds the in-memory position and realized-trade ledgers.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// Memory implements domain.Ledger in process memory. All methods are safe for
// concurrent use; reads return copies.
type Memory struct {
	mu sync.Mutex

	// open maps market -> positions in append order. A key exists only while
	// its slice is non-empty.
	open map[string][]domain.OpenPosition
	// order lists the keys of open in first-insertion order.
	order    []string
	realized []domain.RealizedTrade

	maxRealized int
}

// NewMemory creates an empty ledger. maxRealized caps the realized ledger,
// dropping the oldest trades once exceeded; zero means unbounded.
func NewMemory(maxRealized int) *Memory {
	if maxRealized < 0 {
		maxRealized = 0
	}
	return &Memory{
		open:        make(map[string][]domain.OpenPosition),
		maxRealized: maxRealized,
	}
}

// RecordBuy appends a new open position for market.
func (m *Memory) RecordBuy(_ context.Context, market string, price float64, at time.Time) (domain.OpenPosition, error) {
	if market == "" {
		return domain.OpenPosition{}, domain.ErrTickerRequired
	}

	pos := domain.OpenPosition{
		ID:        newPositionID(),
		Market:    market,
		BuyPrice:  price,
		Timestamp: at.Unix(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[market]; !ok {
		m.order = append(m.order, market)
	}
	m.open[market] = append(m.open[market], pos)
	return pos, nil
}

// RecordSell closes the referenced position at price and appends the
// resulting trade to the realized ledger.
func (m *Memory) RecordSell(_ context.Context, market string, ref domain.PositionRef, price float64, at time.Time) (domain.RealizedTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions := m.open[market]
	if len(positions) == 0 {
		return domain.RealizedTrade{}, domain.ErrNotInLedger
	}

	idx, err := resolve(positions, ref)
	if err != nil {
		return domain.RealizedTrade{}, err
	}

	pos := positions[idx]
	remaining := make([]domain.OpenPosition, 0, len(positions)-1)
	remaining = append(remaining, positions[:idx]...)
	remaining = append(remaining, positions[idx+1:]...)

	if len(remaining) == 0 {
		delete(m.open, market)
		m.removeOrder(market)
	} else {
		m.open[market] = remaining
	}

	value, percent := ComputePL(pos.BuyPrice, price)
	trade := domain.RealizedTrade{
		ID:        newTradeID(at),
		Market:    market,
		BuyPrice:  pos.BuyPrice,
		SellPrice: price,
		PLValue:   value,
		PLPercent: percent,
		OpenedAt:  time.Unix(pos.Timestamp, 0).UTC(),
		ClosedAt:  at.UTC(),
	}

	m.realized = append(m.realized, trade)
	if m.maxRealized > 0 && len(m.realized) > m.maxRealized {
		drop := len(m.realized) - m.maxRealized
		m.realized = append([]domain.RealizedTrade(nil), m.realized[drop:]...)
	}
	return trade, nil
}

// Positions returns the open positions for market in append order.
func (m *Memory) Positions(_ context.Context, market string) ([]domain.OpenPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.OpenPosition(nil), m.open[market]...), nil
}

// ListOpen returns every market with open positions in first-insertion order.
func (m *Memory) ListOpen(_ context.Context) ([]domain.MarketPositions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.MarketPositions, 0, len(m.order))
	for _, market := range m.order {
		out = append(out, domain.MarketPositions{
			Market:    market,
			Positions: append([]domain.OpenPosition(nil), m.open[market]...),
		})
	}
	return out, nil
}

// ListRealized returns the realized ledger in append order.
func (m *Memory) ListRealized(_ context.Context) ([]domain.RealizedTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.RealizedTrade{}, m.realized...), nil
}

// Counts reports the number of open positions and realized trades.
func (m *Memory) Counts() (open, realized int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.open {
		open += len(p)
	}
	return open, len(m.realized)
}

func (m *Memory) removeOrder(market string) {
	for i, k := range m.order {
		if k == market {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// resolve maps ref to an index within positions.
func resolve(positions []domain.OpenPosition, ref domain.PositionRef) (int, error) {
	if ref.ID != "" {
		for i, p := range positions {
			if p.ID == ref.ID {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: unknown position id %s", domain.ErrInvalidIndex, ref.ID)
	}
	if ref.Index < 0 || ref.Index >= len(positions) {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", domain.ErrInvalidIndex, ref.Index, len(positions))
	}
	return ref.Index, nil
}

// Compile-time interface check.
var _ domain.Ledger = (*Memory)(nil)
