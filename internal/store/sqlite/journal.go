// Package sqlite keeps a local trade journal in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS realized_trades (
	id TEXT PRIMARY KEY,
	market TEXT NOT NULL,
	buy_price REAL NOT NULL,
	sell_price REAL NOT NULL,
	pl_value REAL NOT NULL,
	pl_percent REAL NOT NULL,
	opened_at INTEGER NOT NULL,
	closed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_realized_trades_closed_at ON realized_trades(closed_at);
`

// Journal implements domain.TradeJournal on SQLite. Times are stored as unix
// nanoseconds.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path and applies the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// database/sql would otherwise open concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// RecordTrade inserts a realized trade. Re-recording the same trade ID is a
// no-op.
func (j *Journal) RecordTrade(ctx context.Context, t domain.RealizedTrade) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO realized_trades
		(id, market, buy_price, sell_price, pl_value, pl_percent, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Market, t.BuyPrice, t.SellPrice,
		t.PLValue, t.PLPercent, t.OpenedAt.UnixNano(), t.ClosedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record trade %s: %w", t.ID, err)
	}
	return nil
}

// ListTrades returns journaled trades in close order.
func (j *Journal) ListTrades(ctx context.Context, opts domain.ListOpts) ([]domain.RealizedTrade, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT id, market, buy_price, sell_price, pl_value, pl_percent, opened_at, closed_at
		FROM realized_trades WHERE 1=1`)
	if opts.Since != nil {
		b.WriteString(" AND closed_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if opts.Until != nil {
		b.WriteString(" AND closed_at <= ?")
		args = append(args, opts.Until.UnixNano())
	}
	b.WriteString(" ORDER BY closed_at ASC, id ASC")
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, opts.Offset)
	}

	rows, err := j.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades: %w", err)
	}
	defer rows.Close()

	trades := []domain.RealizedTrade{}
	for rows.Next() {
		var (
			t              domain.RealizedTrade
			opened, closed int64
		)
		if err := rows.Scan(&t.ID, &t.Market, &t.BuyPrice, &t.SellPrice,
			&t.PLValue, &t.PLPercent, &opened, &closed); err != nil {
			return nil, fmt.Errorf("sqlite: scan trade: %w", err)
		}
		t.OpenedAt = time.Unix(0, opened).UTC()
		t.ClosedAt = time.Unix(0, closed).UTC()
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list trades rows: %w", err)
	}
	return trades, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Compile-time interface check.
var _ domain.TradeJournal = (*Journal)(nil)
