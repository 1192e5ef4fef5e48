package backtest

// StrategyHandle is the opaque strategy contract Runner drives: given the
// context as of the most recently appended candle (with resting-order
// fills already journalled), decide what to do this step. A non-nil error
// aborts the run and is wrapped in ErrStrategy.
type StrategyHandle interface {
	Tick(ctx *StrategyContext) error
}

// StrategyHandleFunc adapts a plain function to StrategyHandle, the way a
// single-method interface usually gets a func adapter in this codebase.
type StrategyHandleFunc func(ctx *StrategyContext) error

// Tick calls f.
func (f StrategyHandleFunc) Tick(ctx *StrategyContext) error {
	return f(ctx)
}
