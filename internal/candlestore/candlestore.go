// Package candlestore provides the CandleStore port a backtest run reads
// its candle series from. The in-memory Store generates a deterministic
// synthetic OHLCV series per symbol/timeframe so a backtest is exactly
// reproducible across runs without any external market-data dependency;
// an optional Postgres-backed Store serves the same interface from a
// persisted candle table when one is configured.
package candlestore

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the port BacktestTask reads its candle series through. Symbol
// and timeframe together select a series; from/to bound it inclusively.
// Candle is field-for-field identical to backtest.Candle, so callers
// convert a returned slice with a plain per-element struct copy.
type Store interface {
	Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Candle, error)
}

type symbolProfile struct {
	base decimal.Decimal
	vol  float64
	prec int32
}

var defaultProfiles = map[string]symbolProfile{
	"BTCUSDT": {base: decimal.NewFromInt(68500), vol: 0.015, prec: 2},
	"ETHUSDT": {base: decimal.NewFromInt(3400), vol: 0.018, prec: 2},
	"XAUUSD":  {base: decimal.NewFromInt(2710), vol: 0.008, prec: 2},
	"EURUSD":  {base: decimal.NewFromFloat(1.085), vol: 0.004, prec: 5},
}

func profileFor(symbol string) symbolProfile {
	if p, ok := defaultProfiles[symbol]; ok {
		return p
	}
	return symbolProfile{base: decimal.NewFromInt(100), vol: 0.01, prec: 4}
}

// Generator is an in-memory Store that synthesizes an OHLCV series
// deterministically from (symbol, timeframe, timestamp): the same
// request always returns the same candles, so a backtest run is
// reproducible without persisting anything.
type Generator struct{}

// NewGenerator constructs a deterministic synthetic candle source.
func NewGenerator() *Generator { return &Generator{} }

// Candles synthesizes a candle series covering [from, to] at the given
// timeframe ("1m", "5m", "15m", "1h", "4h", "1d"). It returns ErrInvalidTimeframe if
// timeframe is not recognized, and ErrInvalidRange if to is not after from.
func (g *Generator) Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Candle, error) {
	step, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, ErrInvalidRange
	}

	profile := profileFor(symbol)
	stepSec := int64(step.Seconds())
	if stepSec < 1 {
		stepSec = 1
	}

	startTick := from.Unix() - (from.Unix() % stepSec)
	endTick := to.Unix() - (to.Unix() % stepSec)
	if endTick < startTick {
		endTick = startTick
	}
	count := int((endTick-startTick)/stepSec) + 1

	seed := hashString(symbol + "|" + timeframe)
	prevClose := profile.base

	candles := make([]Candle, count)
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		t := startTick + int64(i)*stepSec
		candleSeed := seed + t

		open := prevClose
		high, low, closePx := open, open, open

		const ticksPerCandle = 4
		for k := 1; k <= ticksPerCandle; k++ {
			change := randNorm(candleSeed+int64(k)*13) * (profile.vol * 0.1)
			closePx = mulExp(closePx, change)
			if closePx.GreaterThan(high) {
				high = closePx
			}
			if closePx.LessThan(low) {
				low = closePx
			}
		}

		candles[i] = Candle{
			Timestamp: time.Unix(t, 0).UTC(),
			Open:      open.Round(profile.prec),
			High:      high.Round(profile.prec),
			Low:       low.Round(profile.prec),
			Close:     closePx.Round(profile.prec),
			Volume:    decimal.NewFromInt(1000),
		}
		prevClose = closePx
	}
	return candles, nil
}

// Candle is the wire shape this package hands back; it is field-for-field
// identical to backtest.Candle by construction so callers can convert
// with a plain struct literal copy.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// ParseTimeframe maps a timeframe string to its bucket duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, ErrInvalidTimeframe
	}
}

func mulExp(v decimal.Decimal, change float64) decimal.Decimal {
	f, _ := v.Float64()
	return decimal.NewFromFloat(f * math.Exp(change))
}

func randNorm(seed int64) float64 {
	u1 := rand01(seed)
	u2 := rand01(seed ^ 0x5DEECE66D)
	if u1 < 1e-9 {
		u1 = 1e-9
	}
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

func rand01(seed int64) float64 {
	x := uint64(seed)
	x = (x << 13) ^ x
	x = (x*(x*x*15731+789221) + 1376312589)
	return float64(x&0x7fffffff) / 2147483648.0
}

func hashString(s string) int64 {
	h := int64(5381)
	for i := 0; i < len(s); i++ {
		h = ((h << 5) + h) + int64(s[i])
	}
	return h
}
