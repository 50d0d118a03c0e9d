package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// TradeService defines the methods that the trade handler requires.
type TradeService interface {
	Buy(ctx context.Context, market string) (domain.OpenPosition, error)
	Sell(ctx context.Context, market string, ref domain.PositionRef) (domain.RealizedTrade, error)
	Signals(ctx context.Context) ([]domain.SignalRow, error)
	Profits(ctx context.Context) ([]domain.RealizedTrade, error)
	TickerData(ctx context.Context, market string) (domain.TickerSnapshot, error)
	Tickers(ctx context.Context) []domain.TickerSnapshot
}

// TradeHandler serves the dashboard's buy, sell and reporting endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logHandler(logger, "trade"),
	}
}

type buyResponse struct {
	Market    string  `json:"market"`
	BuyPrice  float64 `json:"buy_price"`
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"`
}

type sellResponse struct {
	Market    string  `json:"market"`
	SellPrice float64 `json:"sell_price"`
	Profit    float64 `json:"profit"`
	TradeID   string  `json:"trade_id"`
}

// Buy opens a simulated position at the current last price.
// GET /buy?ticker=BTCINR
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("ticker")

	pos, err := h.trades.Buy(r.Context(), market)
	if err != nil {
		if errors.Is(err, domain.ErrTickerNotFound) {
			writeError(w, http.StatusNotFound, "Ticker not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: buy failed",
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to buy")
		return
	}

	writeJSON(w, http.StatusOK, buyResponse{
		Market:    pos.Market,
		BuyPrice:  pos.BuyPrice,
		ID:        pos.ID,
		Timestamp: pos.Timestamp,
	})
}

// Sell closes an open position at the current last price. The position is
// chosen by id when given, otherwise by index.
// GET /sell?ticker=BTCINR&index=0
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	market := q.Get("ticker")
	ref := domain.PositionRef{ID: q.Get("id")}
	if ref.ID == "" {
		ref.Index = queryIndex(r, "index")
	}

	trade, err := h.trades.Sell(r.Context(), market, ref)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotInLedger):
			writeError(w, http.StatusNotFound, "Ticker not in signal list")
		case errors.Is(err, domain.ErrInvalidIndex):
			writeError(w, http.StatusBadRequest, "Invalid index")
		case errors.Is(err, domain.ErrPriceUnavailable):
			writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("Price unavailable for %s", market))
		default:
			h.logger.ErrorContext(r.Context(), "handler: sell failed",
				slog.String("market", market),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to sell")
		}
		return
	}

	writeJSON(w, http.StatusOK, sellResponse{
		Market:    trade.Market,
		SellPrice: trade.SellPrice,
		Profit:    trade.PLValue,
		TradeID:   trade.ID,
	})
}

// Signals values every open position against the current snapshot.
// GET /signals
func (h *TradeHandler) Signals(w http.ResponseWriter, r *http.Request) {
	rows, err := h.trades.Signals(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: signals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if rows == nil {
		rows = []domain.SignalRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Profits returns the realized ledger in sell order.
// GET /profits
func (h *TradeHandler) Profits(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.Profits(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: profits failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list profits")
		return
	}
	if trades == nil {
		trades = []domain.RealizedTrade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// TickerData echoes the upstream object for one market.
// GET /ticker_data?ticker=BTCINR
func (h *TradeHandler) TickerData(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("ticker")

	t, err := h.trades.TickerData(r.Context(), market)
	switch {
	case errors.Is(err, domain.ErrTickerRequired):
		writeError(w, http.StatusBadRequest, "Ticker is required")
		return
	case errors.Is(err, domain.ErrTickerNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("No data found for %s", market))
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: ticker data failed",
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load ticker")
		return
	}

	writeJSON(w, http.StatusOK, rawTicker(t))
}

// Tickers returns the whole current snapshot. An unreachable upstream yields
// an empty list.
// GET /tickers
func (h *TradeHandler) Tickers(w http.ResponseWriter, r *http.Request) {
	tickers := h.trades.Tickers(r.Context())

	out := make([]json.RawMessage, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, rawTicker(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// rawTicker returns the upstream object as received, rebuilding a minimal one
// when the snapshot did not come from the wire.
func rawTicker(t domain.TickerSnapshot) json.RawMessage {
	if len(t.Raw) > 0 {
		return t.Raw
	}
	data, _ := json.Marshal(map[string]any{
		"market":     t.Market,
		"last_price": t.LastPrice,
		"high":       t.High,
		"low":        t.Low,
	})
	return data
}
