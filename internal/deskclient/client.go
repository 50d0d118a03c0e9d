// Package deskclient is an HTTP client for the tickerdesk API.
package deskclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// Client calls a running desk.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client for baseURL, e.g. "http://localhost:5000". apiKey may
// be empty when the desk runs without authentication.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx desk response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("desk: HTTP %d: %s", e.Status, e.Message)
}

// BuyResult is the /buy response.
type BuyResult struct {
	Market    string  `json:"market"`
	BuyPrice  float64 `json:"buy_price"`
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"`
}

// SellResult is the /sell response.
type SellResult struct {
	Market    string  `json:"market"`
	SellPrice float64 `json:"sell_price"`
	Profit    float64 `json:"profit"`
	TradeID   string  `json:"trade_id"`
}

// Signals lists open positions valued at current prices.
func (c *Client) Signals(ctx context.Context) ([]domain.SignalRow, error) {
	var rows []domain.SignalRow
	if err := c.get(ctx, "/signals", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Profits lists realized trades.
func (c *Client) Profits(ctx context.Context) ([]domain.RealizedTrade, error) {
	var trades []domain.RealizedTrade
	if err := c.get(ctx, "/profits", nil, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// Buy opens a position in market.
func (c *Client) Buy(ctx context.Context, market string) (BuyResult, error) {
	var res BuyResult
	err := c.get(ctx, "/buy", url.Values{"ticker": {market}}, &res)
	return res, err
}

// SellByID closes the position with the given stable ID.
func (c *Client) SellByID(ctx context.Context, market, id string) (SellResult, error) {
	var res SellResult
	err := c.get(ctx, "/sell", url.Values{"ticker": {market}, "id": {id}}, &res)
	return res, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("desk: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("desk: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("desk: read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("desk: decode %s: %w", path, err)
	}
	return nil
}
