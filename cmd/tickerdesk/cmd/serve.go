package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tickerdesk/internal/app"
	"github.com/alanyoungcy/tickerdesk/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the desk HTTP and websocket API",
	Long: `Serve starts the dashboard API in the configured mode.

Modes:
  - desk: every endpoint, including /buy and /sell
  - monitor: read-only, /buy and /sell are not registered

Example:
  tickerdesk serve --config config.toml --mode monitor`,
	RunE: runServe,
}

var serveMode string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "override the configured mode (desk, monitor)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", configPath),
			slog.String("error", err.Error()),
		)
		return err
	}
	if serveMode != "" {
		cfg.Mode = serveMode
	}

	logger = newLogger(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	logger.Info("tickerdesk starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if !errors.Is(err, context.Canceled) {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("fatal: %w", err)
		}
		logger.Info("application shut down gracefully")
	}

	logger.Info("tickerdesk stopped")
	return nil
}
