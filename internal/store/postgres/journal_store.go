package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// JournalStore implements domain.TradeJournal using PostgreSQL.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a new JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

const journalSelectCols = `id, market, buy_price, sell_price, pl_value, pl_percent, opened_at, closed_at`

// RecordTrade inserts a realized trade. Re-recording the same trade ID is a
// no-op.
func (s *JournalStore) RecordTrade(ctx context.Context, t domain.RealizedTrade) error {
	const query = `
		INSERT INTO realized_trades (` + journalSelectCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Market, t.BuyPrice, t.SellPrice,
		t.PLValue, t.PLPercent, t.OpenedAt, t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", t.ID, err)
	}
	return nil
}

// ListTrades returns journaled trades in close order.
func (s *JournalStore) ListTrades(ctx context.Context, opts domain.ListOpts) ([]domain.RealizedTrade, error) {
	query, args := listQuery(
		`SELECT `+journalSelectCols+` FROM realized_trades WHERE 1=1`,
		"closed_at", "closed_at ASC, id ASC", opts, nil,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RealizedTrade, error) {
		var t domain.RealizedTrade
		err := row.Scan(&t.ID, &t.Market, &t.BuyPrice, &t.SellPrice,
			&t.PLValue, &t.PLPercent, &t.OpenedAt, &t.ClosedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// Close is a no-op; the pool belongs to the Client.
func (s *JournalStore) Close() error {
	return nil
}

// Compile-time interface check.
var _ domain.TradeJournal = (*JournalStore)(nil)
