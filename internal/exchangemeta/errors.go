package exchangemeta

import "errors"

var ErrUnknownSymbol = errors.New("no fee/precision entry for this exchange and symbol")
