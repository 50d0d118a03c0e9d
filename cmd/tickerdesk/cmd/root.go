// Package cmd holds the tickerdesk cobra commands.
package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tickerdesk/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tickerdesk",
	Short: "Simulated trading desk over the CoinDCX ticker feed",
	Long: `Tickerdesk serves a dashboard API for paper trading against live CoinDCX
ticker prices.

It provides tools for:
  - Opening and closing simulated positions at the last traded price
  - Tracking open P/L and the realized trade ledger
  - Journaling realized trades to SQLite or PostgreSQL
  - Archiving the realized ledger to S3-compatible storage`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML configuration file (defaults only when empty)")
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the JSON logger used by every command.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
