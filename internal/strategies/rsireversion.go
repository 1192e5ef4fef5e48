package strategies

import (
	"github.com/shopspring/decimal"

	"merco/internal/backtest"
)

// RSIReversion buys when the RSI over period candles (simple-average form,
// see wilderRSI) drops below
// oversold and sells the full position when it rises above overbought.
// It holds at most one position at a time.
func RSIReversion(period int, oversold, overbought float64) backtest.StrategyHandle {
	if period <= 1 {
		panic("strategies: RSIReversion requires period > 1")
	}

	return backtest.StrategyHandleFunc(func(ctx *backtest.StrategyContext) error {
		candles := ctx.Candles()
		if len(candles) < period+1 {
			return nil
		}

		rsi := wilderRSI(candles, period)
		position := ctx.Position()

		switch {
		case rsi < oversold && position.IsZero():
			candle := candles[len(candles)-1]
			if candle.Close.IsZero() {
				return nil
			}
			amount := ctx.Balance().Div(candle.Close).Mul(decimal.NewFromFloat(0.99))
			if amount.Sign() <= 0 {
				return nil
			}
			return ctx.MarketBuy(amount)
		case rsi > overbought && position.Sign() > 0:
			return ctx.MarketSell(position)
		}
		return nil
	})
}

// wilderRSI computes the RSI over the most recent period candle-to-candle
// changes using a simple (not Wilder-smoothed) average of gains/losses;
// this is the standard first-pass approximation and is close enough for
// backtest signal generation.
func wilderRSI(candles []backtest.Candle, period int) float64 {
	start := len(candles) - period - 1
	window := candles[start:]

	var gainSum, lossSum float64
	for i := 1; i < len(window); i++ {
		prev, _ := window[i-1].Close.Float64()
		cur, _ := window[i].Close.Float64()
		change := cur - prev
		if change > 0 {
			gainSum += change
		} else {
			lossSum += -change
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
