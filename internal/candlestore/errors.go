package candlestore

import "errors"

var (
	ErrInvalidTimeframe = errors.New("unrecognized timeframe")
	ErrInvalidRange     = errors.New("to must be after from")
)
