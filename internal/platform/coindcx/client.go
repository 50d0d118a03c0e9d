// Package coindcx is the REST client for the CoinDCX public ticker endpoint.
package coindcx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// DefaultEndpoint is the public CoinDCX ticker endpoint.
const DefaultEndpoint = "https://api.coindcx.com/exchange/ticker"

// DefaultTimeout bounds a single ticker fetch.
const DefaultTimeout = 10 * time.Second

// Client fetches market snapshots from CoinDCX. It holds no state between
// calls.
type Client struct {
	endpoint   string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a ticker client for endpoint. A zero timeout falls back to
// DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(slog.String("component", "coindcx")),
	}
}

// WithRetries retries network failures and 5xx responses up to n more times
// with exponential backoff starting at delay. n == 0 disables retries.
func (c *Client) WithRetries(n int, delay time.Duration) *Client {
	c.retries = max(n, 0)
	c.retryDelay = delay
	return c
}

// FetchTickers returns the current snapshot. Any failure is logged and
// reported as an empty snapshot; callers never see an error.
func (c *Client) FetchTickers(ctx context.Context) []domain.TickerSnapshot {
	tickers, err := c.fetch(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "coindcx: fetch tickers failed",
			slog.String("endpoint", c.endpoint),
			slog.String("error", err.Error()),
		)
		return []domain.TickerSnapshot{}
	}
	return tickers
}

func (c *Client) fetch(ctx context.Context) ([]domain.TickerSnapshot, error) {
	policy := backoff.NewExponentialBackOff()
	if c.retryDelay > 0 {
		policy.InitialInterval = c.retryDelay
		policy.MaxInterval = c.retryDelay * 10
	}
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.doGet(ctx)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retries)+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.WarnContext(ctx, "coindcx: retrying ticker fetch",
				slog.String("error", err.Error()),
				slog.Duration("backoff", wait),
			)
		}),
	)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}

	tickers := make([]domain.TickerSnapshot, 0, len(raws))
	for _, raw := range raws {
		var t APITicker
		if err := json.Unmarshal(raw, &t); err != nil {
			c.logger.WarnContext(ctx, "coindcx: skipping malformed ticker",
				slog.String("error", err.Error()),
			)
			continue
		}
		tickers = append(tickers, t.ToDomainTicker(raw))
	}
	return tickers, nil
}

// doGet sends the unauthenticated GET and returns the body of a 200 response.
func (c *Client) doGet(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 256))
		if resp.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ domain.TickerSource = (*Client)(nil)
