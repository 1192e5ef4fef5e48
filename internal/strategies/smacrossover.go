package strategies

import (
	"github.com/shopspring/decimal"

	"merco/internal/backtest"
)

// SMACrossover goes long when the fast simple moving average crosses
// above the slow one, and flattens when it crosses back below. It holds
// at most one position at a time and never rests limit orders.
func SMACrossover(fastPeriod, slowPeriod int) backtest.StrategyHandle {
	if fastPeriod <= 0 || slowPeriod <= 0 || fastPeriod >= slowPeriod {
		panic("strategies: SMACrossover requires 0 < fastPeriod < slowPeriod")
	}

	var wasAbove bool
	var haveCrossState bool

	return backtest.StrategyHandleFunc(func(ctx *backtest.StrategyContext) error {
		candles := ctx.Candles()
		if len(candles) < slowPeriod {
			return nil
		}

		fast := simpleMovingAverage(candles, fastPeriod)
		slow := simpleMovingAverage(candles, slowPeriod)
		isAbove := fast.GreaterThan(slow)

		if !haveCrossState {
			wasAbove = isAbove
			haveCrossState = true
			return nil
		}

		crossedUp := isAbove && !wasAbove
		crossedDown := !isAbove && wasAbove
		wasAbove = isAbove

		position := ctx.Position()
		switch {
		case crossedUp && position.IsZero():
			candle := candles[len(candles)-1]
			if candle.Close.IsZero() {
				return nil
			}
			amount := ctx.Balance().Div(candle.Close).Mul(decimal.NewFromFloat(0.99))
			if amount.Sign() <= 0 {
				return nil
			}
			return ctx.MarketBuy(amount)
		case crossedDown && position.Sign() > 0:
			return ctx.MarketSell(position)
		}
		return nil
	})
}

func simpleMovingAverage(candles []backtest.Candle, period int) decimal.Decimal {
	sum := decimal.Zero
	start := len(candles) - period
	for _, c := range candles[start:] {
		sum = sum.Add(c.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}
