// Package config defines the top-level configuration for tickerdesk and
// provides validation helpers.
package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TICKERDESK_* environment variables.
type Config struct {
	CoinDCX  CoinDCXConfig  `toml:"coindcx"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Journal  JournalConfig  `toml:"journal"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// CoinDCXConfig holds the upstream ticker endpoint.
type CoinDCXConfig struct {
	Endpoint string   `toml:"endpoint"`
	Timeout  duration `toml:"timeout"`
	// MaxRetries retries failed fetches (network errors, 5xx); 0 disables.
	MaxRetries int      `toml:"max_retries"`
	RetryDelay duration `toml:"retry_delay"`
}

// LedgerConfig bounds the in-memory ledgers.
type LedgerConfig struct {
	// MaxRealized caps the realized ledger; 0 keeps every trade.
	MaxRealized int `toml:"max_realized"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// believed for rate limiting. Empty means key on the peer address.
	TrustedProxies  []string `toml:"trusted_proxies"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// RedisConfig holds Redis connection parameters. Redis backs the event bus,
// the websocket hub and rate limiting.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	// Audit records ledger events in the audit_log table.
	Audit bool `toml:"audit"`
}

// JournalConfig selects where realized trades are persisted.
type JournalConfig struct {
	Driver     string `toml:"driver"` // none, sqlite or postgres
	SQLitePath string `toml:"sqlite_path"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled           bool   `toml:"enabled"`
	Endpoint          string `toml:"endpoint"`
	Region            string `toml:"region"`
	Bucket            string `toml:"bucket"`
	AccessKey         string `toml:"access_key"`
	SecretKey         string `toml:"secret_key"`
	UseSSL            bool   `toml:"use_ssl"`
	ForcePathStyle    bool   `toml:"force_path_style"`
	Prefix            string `toml:"prefix"`
	ArchiveOnShutdown bool   `toml:"archive_on_shutdown"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPI       string   `toml:"telegram_api"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Operating modes.
const (
	// ModeDesk serves every endpoint.
	ModeDesk = "desk"
	// ModeMonitor serves the read-only endpoints; /buy and /sell are not
	// registered.
	ModeMonitor = "monitor"
)

// Journal drivers.
const (
	JournalNone     = "none"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		CoinDCX: CoinDCXConfig{
			Endpoint:   "https://api.coindcx.com/exchange/ticker",
			Timeout:    duration{10 * time.Second},
			RetryDelay: duration{500 * time.Millisecond},
		},
		Server: ServerConfig{
			Port:            5000,
			RateLimit:       120,
			RateWindow:      duration{time.Minute},
			ShutdownTimeout: duration{5 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "tickerdesk:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tickerdesk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Journal: JournalConfig{
			Driver:     JournalNone,
			SQLitePath: "tickerdesk.db",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "tickerdesk",
			ForcePathStyle: true,
			Prefix:         "tickerdesk",
		},
		Mode:     ModeDesk,
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	ModeDesk:    true,
	ModeMonitor: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validJournalDrivers = map[string]bool{
	JournalNone:     true,
	JournalSQLite:   true,
	JournalPostgres: true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: desk, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// CoinDCX
	if u, err := url.Parse(c.CoinDCX.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("coindcx: endpoint must be an absolute URL, got %q", c.CoinDCX.Endpoint))
	}
	if c.CoinDCX.Timeout.Duration <= 0 {
		errs = append(errs, "coindcx: timeout must be > 0")
	}
	if c.CoinDCX.MaxRetries < 0 {
		errs = append(errs, "coindcx: max_retries must be >= 0")
	}

	// Ledger
	if c.Ledger.MaxRealized < 0 {
		errs = append(errs, "ledger: max_realized must be >= 0")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Sprintf("server: trusted_proxies entry %q is not an IP or CIDR", p))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}
	if c.Postgres.Audit && !c.Postgres.Enabled {
		errs = append(errs, "postgres: audit requires postgres.enabled")
	}

	// Journal
	switch driver := strings.ToLower(c.Journal.Driver); {
	case !validJournalDrivers[driver]:
		errs = append(errs, fmt.Sprintf("journal: unknown driver %q (valid: none, sqlite, postgres)", c.Journal.Driver))
	case driver == JournalSQLite && c.Journal.SQLitePath == "":
		errs = append(errs, "journal: sqlite_path must not be empty for the sqlite driver")
	case driver == JournalPostgres && !c.Postgres.Enabled:
		errs = append(errs, "journal: the postgres driver requires postgres.enabled")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if c.S3.ArchiveOnShutdown && !c.S3.Enabled {
		errs = append(errs, "s3: archive_on_shutdown requires s3.enabled")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
