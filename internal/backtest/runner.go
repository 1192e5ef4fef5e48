package backtest

import (
	"context"
	"fmt"
)

// BroadcastInterval is how often, in candles, Runner reports progress.
// Every 100th candle (by index) triggers a progress callback, matching the
// cadence the original implementation used for its task broadcast.
const BroadcastInterval = 100

// Progress is reported to the optional progress callback as a run steps
// through candles.
type Progress struct {
	CandleIndex int
	CandleCount int
}

// Fraction returns how far through the run this progress report is, in
// [0, 1]. It returns 0 if CandleCount is 0.
func (p Progress) Fraction() float64 {
	if p.CandleCount == 0 {
		return 0
	}
	return float64(p.CandleIndex+1) / float64(p.CandleCount)
}

// Runner steps a StrategyContext through a fixed candle series, calling a
// strategy once per candle after resting-order fills have been matched
// and before resting-order cancellation settles at the end of the run.
type Runner struct {
	candles    []Candle
	strategy   StrategyHandle
	ctx        *StrategyContext
	onProgress func(Progress)
}

// NewRunner builds a Runner over candles, driving strategy against ctx.
// onProgress may be nil; it is called every BroadcastInterval candles and
// once more after the final candle, unless the final candle's index already
// triggered a report.
func NewRunner(candles []Candle, strategy StrategyHandle, ctx *StrategyContext, onProgress func(Progress)) *Runner {
	return &Runner{
		candles:    candles,
		strategy:   strategy,
		ctx:        ctx,
		onProgress: onProgress,
	}
}

// Run executes the full candle series. It returns ErrNoData if no candles
// were supplied, and wraps any strategy error with ErrStrategy. The
// context passed to NewRunner is mutated in place and remains valid, and
// populated with the full trade journal, after Run returns (even on
// error) — callers that want partial-run statistics on failure can still
// read ctx.Trades().
//
// Candles must be strictly increasing in Timestamp; Run does not verify
// this itself.
func (r *Runner) Run(parent context.Context) error {
	if len(r.candles) == 0 {
		return ErrNoData
	}

	count := len(r.candles)
	for i, candle := range r.candles {
		select {
		case <-parent.Done():
			return parent.Err()
		default:
		}

		r.ctx.appendCandle(candle)

		if err := r.ctx.before(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}

		if err := r.strategy.Tick(r.ctx); err != nil {
			return fmt.Errorf("candle %d: %w: %v", i, ErrStrategy, err)
		}

		if err := r.ctx.after(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}

		if r.onProgress != nil && i%BroadcastInterval == 0 {
			r.onProgress(Progress{CandleIndex: i, CandleCount: count})
		}
	}

	if err := r.ctx.end(); err != nil {
		return fmt.Errorf("end: %w", err)
	}

	if r.onProgress != nil && (count-1)%BroadcastInterval != 0 {
		r.onProgress(Progress{CandleIndex: count - 1, CandleCount: count})
	}
	return nil
}
