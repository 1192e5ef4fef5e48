// Package precision quantizes prices and amounts to the tick/step sizes an
// exchange mandates for a symbol. It is the only source of rounding in the
// backtest core; every other package rounds by calling into here.
package precision

import (
	"github.com/shopspring/decimal"

	"merco/internal/types"
)

// Precision holds the minimum quantization step for price and amount on a
// given symbol. A zero step disables rounding for that field.
type Precision struct {
	PriceStep  decimal.Decimal
	AmountStep decimal.Decimal
}

// RoundPrice rounds v to the nearest PriceStep in the given direction. A
// zero PriceStep leaves v unrounded.
func (p Precision) RoundPrice(v decimal.Decimal, mode types.RoundingMode) decimal.Decimal {
	return round(v, p.PriceStep, mode)
}

// RoundAmount rounds v to the nearest AmountStep in the given direction. A
// zero AmountStep leaves v unrounded.
func (p Precision) RoundAmount(v decimal.Decimal, mode types.RoundingMode) decimal.Decimal {
	return round(v, p.AmountStep, mode)
}

func round(v, step decimal.Decimal, mode types.RoundingMode) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	quotient := v.Div(step)
	var scaled decimal.Decimal
	switch mode {
	case types.RoundUp:
		scaled = quotient.RoundUp(0)
	default:
		scaled = quotient.RoundDown(0)
	}
	return scaled.Mul(step)
}
