package backtest

import "errors"

// Sentinel errors surfaced by the core. Wrap with fmt.Errorf("...: %w", ...)
// where extra context helps; callers should match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrNoData            = errors.New("no candle data for this backtest window")
	ErrNoCandle          = errors.New("no candle available yet")
	ErrInvalidAmount     = errors.New("amount must be positive after rounding")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientPos   = errors.New("insufficient position")
	ErrNegativeRevenue   = errors.New("revenue cannot be negative")
	ErrStrategy          = errors.New("strategy error")
	ErrInternal          = errors.New("internal error")
)
