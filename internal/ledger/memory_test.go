package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

func TestRecordBuy_Appends(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(0)
	now := time.Unix(1700000000, 0)

	first, err := l.RecordBuy(ctx, "BTCINR", 100, now)
	require.NoError(t, err)
	second, err := l.RecordBuy(ctx, "BTCINR", 105, now.Add(time.Minute))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(1700000000), first.Timestamp)

	positions, err := l.Positions(ctx, "BTCINR")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, 100.0, positions[0].BuyPrice)
	assert.Equal(t, 105.0, positions[1].BuyPrice)
}

func TestRecordBuy_RequiresMarket(t *testing.T) {
	l := NewMemory(0)
	_, err := l.RecordBuy(context.Background(), "", 1, time.Now())
	assert.ErrorIs(t, err, domain.ErrTickerRequired)
}

func TestRecordSell(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(0)
	opened := time.Unix(1700000000, 0)
	closed := opened.Add(time.Hour)

	_, err := l.RecordBuy(ctx, "BTCINR", 100, opened)
	require.NoError(t, err)

	trade, err := l.RecordSell(ctx, "BTCINR", domain.PositionRef{Index: 0}, 110, closed)
	require.NoError(t, err)

	assert.Equal(t, "BTCINR", trade.Market)
	assert.Equal(t, 100.0, trade.BuyPrice)
	assert.Equal(t, 110.0, trade.SellPrice)
	assert.Equal(t, 10.0, trade.PLValue)
	assert.Equal(t, 10.0, trade.PLPercent)
	assert.Equal(t, opened.UTC(), trade.OpenedAt)
	assert.Equal(t, closed.UTC(), trade.ClosedAt)
	assert.NotEmpty(t, trade.ID)

	open, err := l.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "selling the last position removes the market key")

	realized, err := l.ListRealized(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RealizedTrade{trade}, realized)
}

func TestRecordSell_Errors(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(0)
	_, err := l.RecordBuy(ctx, "BTCINR", 100, time.Now())
	require.NoError(t, err)

	tbl := []struct {
		name   string
		market string
		ref    domain.PositionRef
		err    error
	}{
		{name: "unknown market", market: "ETHINR", ref: domain.PositionRef{Index: 0}, err: domain.ErrNotInLedger},
		{name: "index too large", market: "BTCINR", ref: domain.PositionRef{Index: 1}, err: domain.ErrInvalidIndex},
		{name: "negative index", market: "BTCINR", ref: domain.PositionRef{Index: -1}, err: domain.ErrInvalidIndex},
		{name: "unknown id", market: "BTCINR", ref: domain.PositionRef{ID: "nope"}, err: domain.ErrInvalidIndex},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			_, err := l.RecordSell(ctx, c.market, c.ref, 120, time.Now())
			assert.ErrorIs(t, err, c.err)

			positions, err := l.Positions(ctx, "BTCINR")
			require.NoError(t, err)
			assert.Len(t, positions, 1, "failed sell leaves the ledger unchanged")

			realized, err := l.ListRealized(ctx)
			require.NoError(t, err)
			assert.Empty(t, realized)
		})
	}
}

func TestRecordSell_ByID(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(0)
	_, err := l.RecordBuy(ctx, "BTCINR", 100, time.Now())
	require.NoError(t, err)
	second, err := l.RecordBuy(ctx, "BTCINR", 200, time.Now())
	require.NoError(t, err)

	trade, err := l.RecordSell(ctx, "BTCINR", domain.PositionRef{ID: second.ID}, 150, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 200.0, trade.BuyPrice)
	assert.Equal(t, -50.0, trade.PLValue)
	assert.Equal(t, -25.0, trade.PLPercent)

	positions, err := l.Positions(ctx, "BTCINR")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 100.0, positions[0].BuyPrice)
}

func TestListOpen_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(0)
	now := time.Now()

	for _, m := range []string{"ETHINR", "BTCINR", "XRPINR"} {
		_, err := l.RecordBuy(ctx, m, 1, now)
		require.NoError(t, err)
	}
	_, err := l.RecordSell(ctx, "ETHINR", domain.PositionRef{Index: 0}, 1, now)
	require.NoError(t, err)
	_, err = l.RecordBuy(ctx, "ETHINR", 2, now)
	require.NoError(t, err)

	open, err := l.ListOpen(ctx)
	require.NoError(t, err)

	var markets []string
	for _, mp := range open {
		markets = append(markets, mp.Market)
	}
	assert.Equal(t, []string{"BTCINR", "XRPINR", "ETHINR"}, markets)
}

func TestListRealized_SellOrderAndCap(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(2)
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := l.RecordBuy(ctx, "BTCINR", float64(100+i), now)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := l.RecordSell(ctx, "BTCINR", domain.PositionRef{Index: 0}, 200, now)
		require.NoError(t, err)
	}

	realized, err := l.ListRealized(ctx)
	require.NoError(t, err)
	require.Len(t, realized, 2)
	assert.Equal(t, 101.0, realized[0].BuyPrice)
	assert.Equal(t, 102.0, realized[1].BuyPrice)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(0)
	_, err := l.RecordBuy(ctx, "BTCINR", 100, time.Now())
	require.NoError(t, err)
	_, err = l.RecordBuy(ctx, "BTCINR", 101, time.Now())
	require.NoError(t, err)
	_, err = l.RecordSell(ctx, "BTCINR", domain.PositionRef{Index: 1}, 110, time.Now())
	require.NoError(t, err)

	positions, _ := l.Positions(ctx, "BTCINR")
	positions[0].BuyPrice = 0
	realized, _ := l.ListRealized(ctx)
	realized[0].SellPrice = 0

	positions, _ = l.Positions(ctx, "BTCINR")
	assert.Equal(t, 100.0, positions[0].BuyPrice)
	realized, _ = l.ListRealized(ctx)
	assert.Equal(t, 110.0, realized[0].SellPrice)
}

func TestConcurrentSellsOfSameIndex(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(0)
	_, err := l.RecordBuy(ctx, "BTCINR", 100, time.Now())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.RecordSell(ctx, "BTCINR", domain.PositionRef{Index: 0}, 120, time.Now())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domain.ErrNotInLedger)
		}
	}
	assert.Equal(t, 1, ok)

	open, realized := l.Counts()
	assert.Equal(t, 0, open)
	assert.Equal(t, 1, realized)
}

func TestComputePL(t *testing.T) {
	tbl := []struct {
		buy, current   float64
		value, percent float64
	}{
		{buy: 100, current: 110, value: 10, percent: 10},
		{buy: 100, current: 120, value: 20, percent: 20},
		{buy: 200, current: 150, value: -50, percent: -25},
		{buy: 0, current: 50, value: 50, percent: 0},
		{buy: 100, current: 0, value: -100, percent: -100},
	}

	for _, c := range tbl {
		value, percent := ComputePL(c.buy, c.current)
		assert.Equal(t, c.value, value)
		assert.Equal(t, c.percent, percent)
	}
}
