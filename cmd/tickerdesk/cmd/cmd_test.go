package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerdesk/internal/config"
	"github.com/alanyoungcy/tickerdesk/internal/domain"
	"github.com/alanyoungcy/tickerdesk/internal/report"
	"github.com/alanyoungcy/tickerdesk/internal/store/sqlite"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestQuote(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"market":"BTCINR","last_price":"100.5","volume":"3"}]`))
	}))
	defer upstream.Close()
	t.Setenv("TICKERDESK_COINDCX_ENDPOINT", upstream.URL)

	out, err := execute(t, "quote", "BTCINR", "--config=")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "100.5", got["last_price"])
	assert.Equal(t, "3", got["volume"])

	_, err = execute(t, "quote", "ETHINR", "--config=")
	assert.ErrorIs(t, err, domain.ErrTickerNotFound)
}

func TestConfigInitRoundTrip(t *testing.T) {
	out, err := execute(t, "config", "init", "--output=")
	require.NoError(t, err)

	var cfg config.Config
	_, err = toml.Decode(out, &cfg)
	require.NoError(t, err)
	assert.Equal(t, config.Defaults().Server.Port, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.CoinDCX.Timeout.Duration)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	require.NoError(t, os.WriteFile(good, []byte("mode = \"monitor\"\n"), 0o600))
	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("mode = \"scrape\"\n"), 0o600))

	out, err := execute(t, "config", "validate", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "mode=monitor")

	_, err = execute(t, "config", "validate", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "scrape"`)
}

func TestJournalListSQLite(t *testing.T) {
	t.Setenv("TICKERDESK_JOURNAL_DRIVER", "sqlite")
	t.Setenv("TICKERDESK_JOURNAL_SQLITE_PATH", filepath.Join(t.TempDir(), "journal.db"))

	out, err := execute(t, "journal", "list", "--config=")
	require.NoError(t, err)
	assert.Contains(t, out, "0 trades")
}

func TestJournalRequiresDriver(t *testing.T) {
	_, err := execute(t, "journal", "today", "--config=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `journal driver is "none"`)
}

func TestFormatTrades(t *testing.T) {
	closed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, formatTrades(&buf, []domain.RealizedTrade{
		{ID: "a", Market: "BTCINR", BuyPrice: 100, SellPrice: 110, PLValue: 10, PLPercent: 10, ClosedAt: closed},
		{ID: "b", Market: "ETHINR", BuyPrice: 50, SellPrice: 45, PLValue: -5, PLPercent: -10, ClosedAt: closed},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "MARKET")
	assert.Contains(t, lines[1], "BTCINR")
	assert.Contains(t, lines[3], "2 trades")
	assert.Contains(t, lines[3], "5")
	assert.Equal(t, "wins 1, losses 1, win rate 50.00%, best 10, worst -5", lines[4])
}

func TestJournalPlot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")
	t.Setenv("TICKERDESK_JOURNAL_DRIVER", "sqlite")
	t.Setenv("TICKERDESK_JOURNAL_SQLITE_PATH", dbPath)

	out := filepath.Join(dir, "pnl.png")
	_, err := execute(t, "journal", "plot", "--config=", "--since=0", "-o", out)
	assert.ErrorIs(t, err, report.ErrNoTrades)
	assert.NoFileExists(t, out)

	j, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	closed := time.Now().Add(-time.Hour)
	for i, pl := range []float64{10, -4, 2} {
		require.NoError(t, j.RecordTrade(context.Background(), domain.RealizedTrade{
			ID: fmt.Sprintf("t%d", i), Market: "BTCINR", BuyPrice: 100, SellPrice: 100 + pl,
			PLValue: pl, PLPercent: pl, OpenedAt: closed, ClosedAt: closed.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, j.Close())

	msg, err := execute(t, "journal", "plot", "--config=", "--since=0", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, msg, "(3 trades)")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestDeskBuyAndSell(t *testing.T) {
	desk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		switch r.URL.Path {
		case "/buy":
			fmt.Fprintf(w, `{"market":%q,"buy_price":100,"id":"01ABC","timestamp":1700000000}`, r.URL.Query().Get("ticker"))
		case "/sell":
			if r.URL.Query().Get("id") != "01ABC" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"ticker not in ledger"}`))
				return
			}
			w.Write([]byte(`{"market":"BTCINR","sell_price":110,"profit":10,"trade_id":"t1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer desk.Close()

	out, err := execute(t, "desk", "buy", "BTCINR", "--url", desk.URL, "--api-key", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "01ABC"`)

	out, err = execute(t, "desk", "sell", "BTCINR", "01ABC", "--url", desk.URL, "--api-key", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, `"trade_id": "t1"`)

	_, err = execute(t, "desk", "sell", "BTCINR", "nope", "--url", desk.URL, "--api-key", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker not in ledger")
}
