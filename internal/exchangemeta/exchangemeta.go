// Package exchangemeta provides the ExchangeMeta port: per-symbol trading
// fees and price/amount precision. It is a static table rather than a
// live exchange-info client, the way the original ccxt-backed lookup
// resolved to a handful of well-known pairs in practice.
package exchangemeta

import (
	"fmt"

	"github.com/shopspring/decimal"

	"merco/internal/backtest"
	"merco/internal/precision"
)

// Lookup is the port BacktestTask resolves a symbol's fees and precision
// through before constructing a StrategyContext.
type Lookup interface {
	Fees(exchange, symbol string) (backtest.TradingFees, error)
	Precision(exchange, symbol string) (precision.Precision, error)
}

type entry struct {
	fees backtest.TradingFees
	prec precision.Precision
}

// StaticTable is a Lookup backed by a fixed in-process table, keyed by
// "exchange:symbol".
type StaticTable struct {
	entries map[string]entry
}

// NewStaticTable builds the default table covering the symbols the
// sample strategies and tests trade.
func NewStaticTable() *StaticTable {
	t := &StaticTable{entries: make(map[string]entry)}
	t.set("binance", "BTCUSDT", "0.001", "0.001", "0.01", "0.000001")
	t.set("binance", "ETHUSDT", "0.001", "0.001", "0.01", "0.0001")
	t.set("binance", "XAUUSD", "0.0005", "0.0005", "0.01", "0.001")
	t.set("binance", "EURUSD", "0.0002", "0.0002", "0.00001", "0.01")
	return t
}

func (t *StaticTable) set(exchange, symbol, maker, taker, priceStep, amountStep string) {
	t.entries[key(exchange, symbol)] = entry{
		fees: backtest.TradingFees{Maker: dec(maker), Taker: dec(taker)},
		prec: precision.Precision{PriceStep: dec(priceStep), AmountStep: dec(amountStep)},
	}
}

func key(exchange, symbol string) string { return exchange + ":" + symbol }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("exchangemeta: invalid literal %q: %v", s, err))
	}
	return d
}

// Fees returns the maker/taker fee rates for exchange:symbol, or
// ErrUnknownSymbol if no entry exists.
func (t *StaticTable) Fees(exchange, symbol string) (backtest.TradingFees, error) {
	e, ok := t.entries[key(exchange, symbol)]
	if !ok {
		return backtest.TradingFees{}, ErrUnknownSymbol
	}
	return e.fees, nil
}

// Precision returns the price/amount rounding steps for exchange:symbol,
// or ErrUnknownSymbol if no entry exists.
func (t *StaticTable) Precision(exchange, symbol string) (precision.Precision, error) {
	e, ok := t.entries[key(exchange, symbol)]
	if !ok {
		return precision.Precision{}, ErrUnknownSymbol
	}
	return e.prec, nil
}
