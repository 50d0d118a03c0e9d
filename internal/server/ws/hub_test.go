package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanBus is an in-process SignalBus.
type chanBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newChanBus() *chanBus {
	return &chanBus{subs: make(map[string][]chan []byte)}
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		ch <- payload
	}
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 16)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch, nil
}

func (b *chanBus) subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func startHub(t *testing.T) (*Hub, *chanBus, *websocket.Conn) {
	t.Helper()
	bus := newChanBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(bus, nil, func() map[string]any {
		return map[string]any{"mode": "desk", "open_positions": 2}
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		for _, ch := range DefaultChannels {
			if bus.subscribers(ch) == 0 {
				return false
			}
		}
		return hub.clientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	return hub, bus, conn
}

func TestHub_InitialStatus(t *testing.T) {
	_, _, conn := startHub(t)

	env := readEnvelope(t, conn)
	assert.Equal(t, "desk_status", env.Type)
	assert.JSONEq(t, `{"mode":"desk","open_positions":2}`, string(env.Payload))
}

func TestHub_ForwardsBusEvents(t *testing.T) {
	_, bus, conn := startHub(t)
	readEnvelope(t, conn)

	payload := []byte(`{"event":"position_opened","market":"BTCINR"}`)
	require.NoError(t, bus.Publish(context.Background(), "positions", payload))

	env := readEnvelope(t, conn)
	assert.Equal(t, "positions", env.Type)
	assert.JSONEq(t, string(payload), string(env.Payload))
}

func TestHub_Unsubscribe(t *testing.T) {
	_, bus, conn := startHub(t)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(clientMsg{Action: "unsubscribe", Channels: []string{"positions"}}))
	ack := readEnvelope(t, conn)
	assert.Equal(t, "subscriptions", ack.Type)
	assert.JSONEq(t, `{"channels":["status","trades"]}`, string(ack.Payload))

	require.NoError(t, bus.Publish(context.Background(), "positions", []byte(`{"event":"position_opened"}`)))
	require.NoError(t, bus.Publish(context.Background(), "trades", []byte(`{"event":"position_closed"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, "trades", env.Type)
}

func TestHub_ClientActions(t *testing.T) {
	_, _, conn := startHub(t)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(clientMsg{Action: "subscribe", Channels: []string{"orders", "trades"}}))
	ack := readEnvelope(t, conn)
	assert.Equal(t, "subscriptions", ack.Type)
	assert.JSONEq(t, `{"channels":["positions","status","trades"]}`, string(ack.Payload), "unknown channels are ignored")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(clientMsg{Action: "status"}))
	env := readEnvelope(t, conn)
	assert.Equal(t, "desk_status", env.Type)
	assert.JSONEq(t, `{"mode":"desk","open_positions":2}`, string(env.Payload))
}

func TestHub_StopsOnCancel(t *testing.T) {
	bus := newChanBus()
	hub := NewHub(bus, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}
