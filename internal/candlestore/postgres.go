package candlestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore reads a persisted candle table. It exists for deployments
// that back their CandleStore with real recorded history instead of the
// synthetic Generator; the schema is a single flat table keyed by
// (symbol, timeframe, ts).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns the pool's
// lifecycle (including Close).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Candles reads rows from candlesticks in ascending ts order.
func (s *PostgresStore) Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Candle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candlesticks
		WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`, symbol, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("query candlesticks: %w", err)
	}
	defer rows.Close()

	var out []Candle
	for rows.Next() {
		var ts time.Time
		var open, high, low, close, vol string
		if err := rows.Scan(&ts, &open, &high, &low, &close, &vol); err != nil {
			return nil, fmt.Errorf("scan candlestick row: %w", err)
		}
		c, err := rowToCandle(ts, open, high, low, close, vol)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candlesticks: %w", err)
	}
	return out, nil
}

func rowToCandle(ts time.Time, open, high, low, close, vol string) (Candle, error) {
	o, err := decimal.NewFromString(open)
	if err != nil {
		return Candle{}, fmt.Errorf("parse open: %w", err)
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return Candle{}, fmt.Errorf("parse high: %w", err)
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return Candle{}, fmt.Errorf("parse low: %w", err)
	}
	c, err := decimal.NewFromString(close)
	if err != nil {
		return Candle{}, fmt.Errorf("parse close: %w", err)
	}
	v, err := decimal.NewFromString(vol)
	if err != nil {
		return Candle{}, fmt.Errorf("parse volume: %w", err)
	}
	return Candle{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: v}, nil
}
