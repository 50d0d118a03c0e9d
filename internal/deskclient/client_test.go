package deskclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/signals":
			w.Write([]byte(`[{"market":"BTCINR","buy_price":100,"current_price":110,"pl_value":10,"pl_percent":10,"index":0,"id":"p1","timestamp":1}]`))
		case "/profits":
			w.Write([]byte(`[]`))
		case "/buy":
			assert.Equal(t, "BTCINR", r.URL.Query().Get("ticker"))
			w.Write([]byte(`{"market":"BTCINR","buy_price":100,"id":"p2","timestamp":2}`))
		case "/sell":
			if r.URL.Query().Get("id") != "p1" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"Invalid index"}`))
				return
			}
			w.Write([]byte(`{"market":"BTCINR","sell_price":110,"profit":10,"trade_id":"t1"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "k", time.Second)
	ctx := context.Background()

	rows, err := c.Signals(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ID)
	assert.Equal(t, 10.0, rows[0].PLValue)

	trades, err := c.Profits(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)

	bought, err := c.Buy(ctx, "BTCINR")
	require.NoError(t, err)
	assert.Equal(t, "p2", bought.ID)

	sold, err := c.SellByID(ctx, "BTCINR", "p1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, sold.Profit)
	assert.Equal(t, "t1", sold.TradeID)

	_, err = c.SellByID(ctx, "BTCINR", "nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Invalid index", apiErr.Message)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL, "", time.Second).Signals(context.Background())
	assert.Error(t, err)
}
