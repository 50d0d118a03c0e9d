package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerdesk/internal/config"
	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishStatus(t *testing.T) {
	bus := &memBus{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- publishStatus(ctx, bus, func() map[string]any {
			return map[string]any{"mode": "desk"}
		}, 5*time.Millisecond, discardLogger())
	}()

	require.Eventually(t, func() bool { return bus.count(domain.ChannelStatus) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	bus.mu.Lock()
	var got map[string]any
	require.NoError(t, json.Unmarshal(bus.published[domain.ChannelStatus][0], &got))
	bus.mu.Unlock()
	assert.Equal(t, "desk", got["mode"])
}

func TestWireDefaults(t *testing.T) {
	cfg := config.Defaults()

	deps, cleanup, err := Wire(context.Background(), &cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Trades)
	assert.NotNil(t, deps.Ledger)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.AuditStore)
	assert.Nil(t, deps.Journal)
	assert.Nil(t, deps.Archiver)
	assert.Nil(t, deps.Notifier)
}

func TestWireSQLiteJournal(t *testing.T) {
	cfg := config.Defaults()
	cfg.Journal.Driver = config.JournalSQLite
	cfg.Journal.SQLitePath = filepath.Join(t.TempDir(), "journal.db")

	deps, cleanup, err := Wire(context.Background(), &cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.Journal)
	trades, err := deps.Journal.ListTrades(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestWireNotifier(t *testing.T) {
	cfg := config.Defaults()
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/hook"

	deps, cleanup, err := Wire(context.Background(), &cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, deps.Notifier)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "scrape"

	a := New(&cfg, discardLogger())
	defer a.Close()
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Port = 0
	cfg.Mode = config.ModeMonitor

	a := New(&cfg, discardLogger())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeRejectsBadTrustedProxy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Port = 0
	cfg.Server.TrustedProxies = []string{"lb.local"}

	a := New(&cfg, discardLogger())
	defer a.Close()
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lb.local")
}
