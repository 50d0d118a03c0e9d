package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
	"github.com/alanyoungcy/tickerdesk/internal/server"
	"github.com/alanyoungcy/tickerdesk/internal/server/handler"
	"github.com/alanyoungcy/tickerdesk/internal/server/middleware"
	"github.com/alanyoungcy/tickerdesk/internal/server/ws"
)

// statusInterval is how often the desk status is published on the bus.
const statusInterval = 15 * time.Second

// Serve starts the HTTP server and, when a bus is configured, the websocket
// hub and status publisher. readOnly leaves the buy and sell routes out.
// It blocks until ctx is cancelled or a component fails.
func (a *App) Serve(ctx context.Context, deps *Dependencies, readOnly bool) error {
	a.logger.InfoContext(ctx, "starting desk",
		slog.Int("port", a.cfg.Server.Port),
		slog.Bool("read_only", readOnly),
	)

	proxies, err := middleware.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	status := handler.NewStatusHandler(a.cfg.Mode, deps.Ledger, time.Now())

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.DefaultChannels, status.Snapshot, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
		g.Go(func() error {
			return publishStatus(ctx, deps.SignalBus, status.Snapshot, statusInterval, a.logger)
		})
	}

	var archiver handler.ProfitArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimit:      a.cfg.Server.RateLimit,
		RateWindow:     a.cfg.Server.RateWindow.Duration,
		ReadOnly:       readOnly,
		TrustedProxies: proxies,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(a.logger, deps.HealthChecks),
		Status:  status,
		Trades:  handler.NewTradeHandler(deps.Trades, a.logger),
		Archive: handler.NewArchiveHandler(archiver, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	a.startHTTPServer(ctx, g, srv)

	if deps.Notifier != nil {
		msg := fmt.Sprintf("mode=%s port=%d", a.cfg.Mode, a.cfg.Server.Port)
		if err := deps.Notifier.NotifyAll(ctx, "tickerdesk started", msg); err != nil {
			a.logger.WarnContext(ctx, "startup notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	err = g.Wait()

	if a.cfg.S3.ArchiveOnShutdown && deps.Archiver != nil {
		a.archiveOnShutdown(deps)
	}
	return err
}

// startHTTPServer runs srv in the errgroup and shuts it down when ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, srv *server.Server) {
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	})
}

// archiveOnShutdown uploads the realized ledger once more before exit.
func (a *App) archiveOnShutdown(deps *Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := deps.Archiver.ArchiveRealized(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "shutdown archive failed",
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "shutdown archive complete",
		slog.String("path", res.Path),
		slog.Int("count", res.Count),
	)
}

// publishStatus publishes snapshot on the status channel every interval until
// ctx is cancelled. Publish failures are logged and do not stop the loop.
func publishStatus(ctx context.Context, bus domain.SignalBus, snapshot ws.StatusFunc, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			payload, err := json.Marshal(snapshot())
			if err != nil {
				return fmt.Errorf("app: marshal status: %w", err)
			}
			if err := bus.Publish(ctx, domain.ChannelStatus, payload); err != nil && !errors.Is(err, context.Canceled) {
				logger.WarnContext(ctx, "status publish failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
