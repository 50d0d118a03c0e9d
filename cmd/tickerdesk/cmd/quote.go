package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
	"github.com/alanyoungcy/tickerdesk/internal/platform/coindcx"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <market>",
	Short: "Print the current ticker object for a market",
	Long: `Quote fetches one ticker snapshot and prints the upstream object for the
given market as JSON.

Example:
  tickerdesk quote BTCINR`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.SlogLevel())
	client := coindcx.NewClient(cfg.CoinDCX.Endpoint, cfg.CoinDCX.Timeout.Duration, logger).
		WithRetries(cfg.CoinDCX.MaxRetries, cfg.CoinDCX.RetryDelay.Duration)

	return printQuote(cmd, client, args[0])
}

func printQuote(cmd *cobra.Command, src domain.TickerSource, market string) error {
	t, ok := domain.FindTicker(src.FetchTickers(cmd.Context()), market)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTickerNotFound, market)
	}
	return writeIndented(cmd.OutOrStdout(), t)
}

// writeIndented prints the upstream object when present, else the snapshot.
func writeIndented(w io.Writer, t domain.TickerSnapshot) error {
	var v any = map[string]any{
		"market":     t.Market,
		"last_price": t.LastPrice,
		"high":       t.High,
		"low":        t.Low,
	}
	if len(t.Raw) > 0 {
		if err := json.Unmarshal(t.Raw, &v); err != nil {
			return fmt.Errorf("decode ticker: %w", err)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
