package strategies

import (
	"github.com/shopspring/decimal"

	"merco/internal/backtest"
)

// BuyAndHold market-buys, on the first candle, an amount worth 99% of the
// starting balance at that candle's close, and never trades again. It exists mainly as a baseline to compare other
// strategies' Sharpe ratio and drawdown against.
func BuyAndHold() backtest.StrategyHandle {
	bought := false
	return backtest.StrategyHandleFunc(func(ctx *backtest.StrategyContext) error {
		if bought {
			return nil
		}
		candles := ctx.Candles()
		candle := candles[len(candles)-1]
		if candle.Close.IsZero() {
			return nil
		}
		amount := ctx.Balance().Div(candle.Close).Mul(decimal.NewFromFloat(0.99))
		if amount.Sign() <= 0 {
			return nil
		}
		bought = true
		return ctx.MarketBuy(amount)
	})
}
