package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merco/internal/types"
)

// Candle is one OHLCV bar. Candles fed to Runner must be strictly
// increasing in Timestamp.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// TradingFees carries the maker/taker fee rates for a symbol, each a
// fractional rate (0.001 == 10bps).
type TradingFees struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// Trade is an append-only journal entry produced by a fill, either
// immediate (market) or resting-order (limit). RealizedProfit is only
// ever populated by StatisticBuilder, and only on sells.
type Trade struct {
	Timestamp      time.Time
	Type           types.TradeType
	Price          decimal.Decimal
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	RealizedProfit *decimal.Decimal
}

// Order is a resting limit order. It exists only between being placed and
// being filled or cancelled; it never persists past a single run.
type Order struct {
	ID     uuid.UUID
	Type   types.OrderType
	Price  decimal.Decimal
	Amount decimal.Decimal
	Fee    decimal.Decimal
}
