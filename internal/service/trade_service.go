// Package service implements the business flow behind the HTTP handlers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
	"github.com/alanyoungcy/tickerdesk/internal/ledger"
)

// Notifier delivers human-facing alerts for ledger events.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// TradeService runs simulated buys and sells against the live ticker
// snapshot and reports open and realized P/L.
type TradeService struct {
	tickers domain.TickerSource
	ledger  domain.Ledger

	bus      domain.SignalBus
	audit    domain.AuditStore
	journal  domain.TradeJournal
	notifier Notifier

	now    func() time.Time
	logger *slog.Logger
}

// NewTradeService creates a TradeService with the required dependencies.
// Optional side-effect sinks are attached with the With* methods.
func NewTradeService(tickers domain.TickerSource, ledger domain.Ledger, logger *slog.Logger) *TradeService {
	return &TradeService{
		tickers: tickers,
		ledger:  ledger,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "trade_service")),
	}
}

// WithSignalBus publishes ledger events on bus.
func (s *TradeService) WithSignalBus(bus domain.SignalBus) *TradeService {
	s.bus = bus
	return s
}

// WithAuditStore records ledger events in the audit log.
func (s *TradeService) WithAuditStore(audit domain.AuditStore) *TradeService {
	s.audit = audit
	return s
}

// WithJournal persists realized trades.
func (s *TradeService) WithJournal(journal domain.TradeJournal) *TradeService {
	s.journal = journal
	return s
}

// WithNotifier sends alerts for ledger events.
func (s *TradeService) WithNotifier(n Notifier) *TradeService {
	s.notifier = n
	return s
}

// WithClock overrides the time source.
func (s *TradeService) WithClock(now func() time.Time) *TradeService {
	s.now = now
	return s
}

// Buy opens a position in market at its current last price.
func (s *TradeService) Buy(ctx context.Context, market string) (domain.OpenPosition, error) {
	t, ok := domain.FindTicker(s.tickers.FetchTickers(ctx), market)
	if !ok {
		return domain.OpenPosition{}, domain.ErrTickerNotFound
	}

	pos, err := s.ledger.RecordBuy(ctx, market, t.LastPrice, s.now())
	if err != nil {
		return domain.OpenPosition{}, fmt.Errorf("trade_service: record buy %s: %w", market, err)
	}

	detail := map[string]any{
		"position_id": pos.ID,
		"market":      pos.Market,
		"buy_price":   pos.BuyPrice,
		"timestamp":   pos.Timestamp,
	}
	s.publish(ctx, domain.ChannelPositions, "position_opened", detail)
	s.auditLog(ctx, "position_opened", detail)
	s.notify(ctx, "position_opened", "Position opened",
		fmt.Sprintf("%s bought at %s", pos.Market, formatPrice(pos.BuyPrice)))

	s.logger.InfoContext(ctx, "trade_service: position opened",
		slog.String("position_id", pos.ID),
		slog.String("market", pos.Market),
		slog.Float64("buy_price", pos.BuyPrice),
	)
	return pos, nil
}

// Sell closes the referenced open position in market at its current last
// price. The ledger is left untouched when the market has no price in the
// current snapshot.
func (s *TradeService) Sell(ctx context.Context, market string, ref domain.PositionRef) (domain.RealizedTrade, error) {
	positions, err := s.ledger.Positions(ctx, market)
	if err != nil {
		return domain.RealizedTrade{}, fmt.Errorf("trade_service: positions %s: %w", market, err)
	}
	if len(positions) == 0 {
		return domain.RealizedTrade{}, domain.ErrNotInLedger
	}
	if !refResolves(positions, ref) {
		return domain.RealizedTrade{}, domain.ErrInvalidIndex
	}

	t, ok := domain.FindTicker(s.tickers.FetchTickers(ctx), market)
	if !ok {
		return domain.RealizedTrade{}, fmt.Errorf("%w for %s", domain.ErrPriceUnavailable, market)
	}

	trade, err := s.ledger.RecordSell(ctx, market, ref, t.LastPrice, s.now())
	if err != nil {
		// A concurrent sell may have shifted or emptied the sequence.
		return domain.RealizedTrade{}, err
	}

	detail := map[string]any{
		"trade_id":   trade.ID,
		"market":     trade.Market,
		"buy_price":  trade.BuyPrice,
		"sell_price": trade.SellPrice,
		"pl_value":   trade.PLValue,
		"pl_percent": trade.PLPercent,
	}
	s.publish(ctx, domain.ChannelTrades, "position_closed", detail)
	s.auditLog(ctx, "position_closed", detail)
	if s.journal != nil {
		if err := s.journal.RecordTrade(ctx, trade); err != nil {
			s.logger.WarnContext(ctx, "trade_service: journal write failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.notify(ctx, "position_closed", "Position closed",
		fmt.Sprintf("%s sold at %s (P/L %s, %.2f%%)", trade.Market,
			formatPrice(trade.SellPrice), formatPrice(trade.PLValue), trade.PLPercent))

	s.logger.InfoContext(ctx, "trade_service: position closed",
		slog.String("trade_id", trade.ID),
		slog.String("market", trade.Market),
		slog.Float64("sell_price", trade.SellPrice),
		slog.Float64("pl_value", trade.PLValue),
	)
	return trade, nil
}

// Signals values every open position against one fresh snapshot. Markets
// missing from the snapshot are valued at zero.
func (s *TradeService) Signals(ctx context.Context) ([]domain.SignalRow, error) {
	open, err := s.ledger.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list open: %w", err)
	}
	rows := []domain.SignalRow{}
	if len(open) == 0 {
		return rows, nil
	}

	tickers := s.tickers.FetchTickers(ctx)
	for _, mp := range open {
		var current float64
		if t, ok := domain.FindTicker(tickers, mp.Market); ok {
			current = t.LastPrice
		}
		for idx, pos := range mp.Positions {
			value, percent := ledger.ComputePL(pos.BuyPrice, current)
			rows = append(rows, domain.SignalRow{
				Market:       mp.Market,
				BuyPrice:     pos.BuyPrice,
				CurrentPrice: current,
				PLValue:      value,
				PLPercent:    percent,
				Index:        idx,
				ID:           pos.ID,
				Timestamp:    pos.Timestamp,
			})
		}
	}
	return rows, nil
}

// Profits returns the realized ledger in sell order.
func (s *TradeService) Profits(ctx context.Context) ([]domain.RealizedTrade, error) {
	trades, err := s.ledger.ListRealized(ctx)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list realized: %w", err)
	}
	if trades == nil {
		trades = []domain.RealizedTrade{}
	}
	return trades, nil
}

// TickerData returns the current snapshot entry for market.
func (s *TradeService) TickerData(ctx context.Context, market string) (domain.TickerSnapshot, error) {
	if market == "" {
		return domain.TickerSnapshot{}, domain.ErrTickerRequired
	}
	t, ok := domain.FindTicker(s.tickers.FetchTickers(ctx), market)
	if !ok {
		return domain.TickerSnapshot{}, domain.ErrTickerNotFound
	}
	return t, nil
}

// Tickers returns the whole current snapshot.
func (s *TradeService) Tickers(ctx context.Context) []domain.TickerSnapshot {
	return s.tickers.FetchTickers(ctx)
}

func refResolves(positions []domain.OpenPosition, ref domain.PositionRef) bool {
	if ref.ID != "" {
		for _, p := range positions {
			if p.ID == ref.ID {
				return true
			}
		}
		return false
	}
	return ref.Index >= 0 && ref.Index < len(positions)
}

func (s *TradeService) publish(ctx context.Context, channel, event string, detail map[string]any) {
	if s.bus == nil {
		return
	}
	payload := make(map[string]any, len(detail)+1)
	for k, v := range detail {
		payload[k] = v
	}
	payload["event"] = event

	evt, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, channel, evt); err != nil {
		s.logger.WarnContext(ctx, "trade_service: publish event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "trade_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "trade_service: notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
