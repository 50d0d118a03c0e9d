package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/tickerdesk/internal/blob/s3"
	"github.com/alanyoungcy/tickerdesk/internal/cache/redis"
	"github.com/alanyoungcy/tickerdesk/internal/config"
	"github.com/alanyoungcy/tickerdesk/internal/domain"
	"github.com/alanyoungcy/tickerdesk/internal/ledger"
	"github.com/alanyoungcy/tickerdesk/internal/notify"
	"github.com/alanyoungcy/tickerdesk/internal/platform/coindcx"
	"github.com/alanyoungcy/tickerdesk/internal/server/handler"
	"github.com/alanyoungcy/tickerdesk/internal/service"
	"github.com/alanyoungcy/tickerdesk/internal/store/postgres"
	"github.com/alanyoungcy/tickerdesk/internal/store/sqlite"
)

// Dependencies bundles everything the serving modes need. Optional
// collaborators are nil when their backend is disabled.
type Dependencies struct {
	Tickers *coindcx.Client
	Ledger  *ledger.Memory
	Trades  *service.TradeService

	// Optional backends.
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	AuditStore  domain.AuditStore
	Journal     domain.TradeJournal
	Archiver    *s3blob.Archiver
	Notifier    *notify.Notifier

	// HealthChecks pings each connected backend for /api/health.
	HealthChecks map[string]handler.CheckFunc
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Tickers: coindcx.NewClient(cfg.CoinDCX.Endpoint, cfg.CoinDCX.Timeout.Duration, logger).
			WithRetries(cfg.CoinDCX.MaxRetries, cfg.CoinDCX.RetryDelay.Duration),
		Ledger: ledger.NewMemory(cfg.Ledger.MaxRealized),

		HealthChecks: make(map[string]handler.CheckFunc),
	}

	// --- PostgreSQL (journal and audit log) ---
	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		pg = pgClient
		deps.HealthChecks["postgres"] = pg.Ping
		if cfg.Postgres.Audit {
			deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		}
		logger.Info("wire: postgres connected", slog.Bool("audit", cfg.Postgres.Audit))
	}

	// --- Trade journal ---
	switch strings.ToLower(cfg.Journal.Driver) {
	case config.JournalSQLite:
		j, err := sqlite.Open(cfg.Journal.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite journal: %w", err))
		}
		closers = append(closers, func() { _ = j.Close() })
		deps.Journal = j
		logger.Info("wire: sqlite journal opened", slog.String("path", cfg.Journal.SQLitePath))
	case config.JournalPostgres:
		if pg == nil {
			return fail(fmt.Errorf("wire: postgres journal requires postgres.enabled"))
		}
		deps.Journal = postgres.NewJournalStore(pg.Pool())
	}

	// --- Redis (event bus and rate limiting) ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.HealthChecks["redis"] = rc.Ping
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		logger.Info("wire: redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), deps.Ledger, deps.AuditStore)
		logger.Info("wire: s3 archive enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	// --- Notifications ---
	deps.Notifier = buildNotifier(cfg.Notify, logger)

	// --- Trade service ---
	deps.Trades = service.NewTradeService(deps.Tickers, deps.Ledger, logger)
	if deps.SignalBus != nil {
		deps.Trades.WithSignalBus(deps.SignalBus)
	}
	if deps.AuditStore != nil {
		deps.Trades.WithAuditStore(deps.AuditStore)
	}
	if deps.Journal != nil {
		deps.Trades.WithJournal(deps.Journal)
	}
	if deps.Notifier != nil {
		deps.Trades.WithNotifier(deps.Notifier)
	}

	return deps, cleanup, nil
}

// buildNotifier returns nil when no channel is configured.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramAPI, cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewNotifier(senders, cfg.Events, logger)
}
