package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// BacktestStatistic is the P&L/risk summary StatisticBuilder derives from
// a completed run's candle series and trade journal.
type BacktestStatistic struct {
	InitialCapital decimal.Decimal
	FinalBalance   decimal.Decimal
	FinalPosition  decimal.Decimal
	NetProfit      decimal.Decimal
	ReturnPercent  float32
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float32
	AverageWin     decimal.Decimal
	AverageLoss    decimal.Decimal
	LargestWin     decimal.Decimal
	LargestLoss    decimal.Decimal
	ProfitFactor   float32
	// MaxDrawdown is the largest absolute equity drop (max_equity - low_equity)
	// observed over the run; MaxDrawdownPercent expresses the same drop as a
	// percentage of max_equity at the time.
	MaxDrawdown        decimal.Decimal
	MaxDrawdownPercent float32
	SharpeRatio        float32
	// TotalCost is the average-cost basis still carried in the open
	// position when the run ended (zero if flat).
	TotalCost decimal.Decimal
	// Trades is the journal with RealizedProfit populated on every sell.
	Trades []Trade
}

// StatisticBuilder derives a BacktestStatistic from a run's candles and
// trade journal in two passes: the first walks candles in lockstep with
// trades to attribute realized profit and track drawdown; the second
// aggregates the per-trade results and computes the Sharpe ratio.
type StatisticBuilder struct {
	initialCapital decimal.Decimal
}

// NewStatisticBuilder constructs a builder for a run seeded with
// initialCapital.
func NewStatisticBuilder(initialCapital decimal.Decimal) *StatisticBuilder {
	return &StatisticBuilder{initialCapital: initialCapital}
}

// Build computes the full statistic for a completed run. candles and
// trades must both be in ascending timestamp order; trades is typically
// ctx.Trades() after Runner.Run has returned.
func (b *StatisticBuilder) Build(candles []Candle, finalBalance, finalPosition decimal.Decimal, trades []Trade) BacktestStatistic {
	journal := make([]Trade, len(trades))
	copy(journal, trades)

	var (
		balance            = b.initialCapital
		position           = decimal.Zero
		totalCost          = decimal.Zero
		maxEquity          = b.initialCapital
		maxDrawdown        = decimal.Zero
		maxDrawdownPercent float32
		largestWin         = decimal.Zero
		largestLoss        = decimal.Zero
		buyTrades          = 0
		sellTrades         = 0
		tradeIdx           = 0
	)

	for _, candle := range candles {
		for tradeIdx < len(journal) && !journal[tradeIdx].Timestamp.After(candle.Timestamp) {
			t := &journal[tradeIdx]
			if t.Type.IsBuy() {
				buyTrades++
				cost := t.Price.Mul(t.Amount).Add(t.Fee)
				totalCost = totalCost.Add(cost)
				balance = balance.Sub(cost)
				position = position.Add(t.Amount)
			} else {
				sellTrades++
				var avgCost decimal.Decimal
				if position.Sign() > 0 {
					avgCost = totalCost.Div(position)
				}
				proceeds := t.Price.Mul(t.Amount)
				revenue := proceeds.Sub(t.Fee)
				profit := revenue.Sub(avgCost.Mul(t.Amount))
				t.RealizedProfit = &profit

				if profit.GreaterThan(largestWin) {
					largestWin = profit
				}
				if profit.LessThan(largestLoss) {
					largestLoss = profit
				}

				position = position.Sub(t.Amount)
				balance = balance.Add(revenue)
				if position.Sign() <= 0 {
					position = decimal.Zero
					totalCost = decimal.Zero
				} else {
					totalCost = totalCost.Sub(avgCost.Mul(t.Amount))
				}
			}
			tradeIdx++
		}

		// Mark equity against the candle's intrabar extremes: the high
		// drives max_equity, the low drives the drawdown trough.
		highEquity := position.Mul(candle.High).Add(balance)
		lowEquity := position.Mul(candle.Low).Add(balance)
		if highEquity.GreaterThan(maxEquity) {
			maxEquity = highEquity
		}
		drawdown := maxEquity.Sub(lowEquity)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
			if maxEquity.Sign() != 0 {
				pct, _ := drawdown.Div(maxEquity).Mul(decimal.NewFromInt(100)).Float64()
				maxDrawdownPercent = float32(pct)
			}
		}
	}

	var (
		winning, losing     int
		sumWin, sumLoss     = decimal.Zero, decimal.Zero
		grossWin, grossLoss = decimal.Zero, decimal.Zero
	)
	for _, t := range journal {
		if t.RealizedProfit == nil {
			continue
		}
		p := *t.RealizedProfit
		switch {
		case p.Sign() > 0:
			winning++
			sumWin = sumWin.Add(p)
			grossWin = grossWin.Add(p)
		case p.Sign() < 0:
			losing++
			sumLoss = sumLoss.Add(p)
			grossLoss = grossLoss.Add(p.Abs())
		}
	}

	var winRate, profitFactor float32
	avgWin, avgLoss := decimal.Zero, decimal.Zero
	if sellTrades > 0 {
		winRate = 100 * float32(winning) / float32(sellTrades)
	}
	if winning > 0 {
		avgWin = sumWin.Div(decimal.NewFromInt(int64(winning))).Round(2)
	}
	if losing > 0 {
		avgLoss = sumLoss.Div(decimal.NewFromInt(int64(losing))).Round(2)
	}
	if grossLoss.Sign() > 0 {
		pf, _ := grossWin.Div(grossLoss).Float64()
		profitFactor = float32(pf)
	} else if grossWin.Sign() > 0 {
		profitFactor = float32(math.Inf(1))
	}

	netProfit := finalBalance.Sub(b.initialCapital)
	var returnPercent float32
	if b.initialCapital.Sign() > 0 {
		rp, _ := netProfit.Div(b.initialCapital).Mul(decimal.NewFromInt(100)).Float64()
		returnPercent = float32(rp)
	}

	return BacktestStatistic{
		InitialCapital:     b.initialCapital,
		FinalBalance:       finalBalance,
		FinalPosition:      finalPosition,
		NetProfit:          netProfit,
		ReturnPercent:      returnPercent,
		TotalTrades:        buyTrades + sellTrades,
		WinningTrades:      winning,
		LosingTrades:       losing,
		WinRate:            winRate,
		AverageWin:         avgWin,
		AverageLoss:        avgLoss,
		LargestWin:         largestWin,
		LargestLoss:        largestLoss,
		ProfitFactor:       profitFactor,
		MaxDrawdown:        maxDrawdown,
		MaxDrawdownPercent: maxDrawdownPercent,
		SharpeRatio:        b.sharpeRatio(journal),
		TotalCost:          totalCost,
		Trades:             journal,
	}
}

// sharpeRatio computes the Sharpe ratio over per-trade returns (realized
// profit divided by initial capital), treating each closed trade as one
// observation. An empty sample is 0; a single sample is +Inf (zero
// variance, nonzero mean by construction); a zero-variance multi-sample
// set is also +Inf.
func (b *StatisticBuilder) sharpeRatio(journal []Trade) float32 {
	var returns []float64
	for _, t := range journal {
		if t.RealizedProfit == nil || t.RealizedProfit.IsZero() {
			continue
		}
		r, _ := t.RealizedProfit.Div(b.initialCapital).Float64()
		returns = append(returns, r)
	}

	switch len(returns) {
	case 0:
		return 0
	case 1:
		return float32(math.Inf(1))
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	if variance == 0 {
		return float32(math.Inf(1))
	}
	return float32(mean / math.Sqrt(variance))
}
