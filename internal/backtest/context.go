package backtest

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merco/internal/precision"
	"merco/internal/types"
)

// StrategyContext is the per-run state machine a strategy trades against:
// cash balance, base-asset position, resting limit orders, and an
// append-only trade journal. It is constructed once per backtest run,
// mutated exclusively by Runner (which also delegates to the strategy
// callback), and discarded once StatisticBuilder has consumed it.
type StrategyContext struct {
	candles   []Candle
	balance   decimal.Decimal
	position  decimal.Decimal
	trades    []Trade
	orders    []Order
	fees      TradingFees
	precision precision.Precision
}

// NewStrategyContext seeds a context with initial capital, fees, and the
// symbol's price/amount precision.
func NewStrategyContext(initialCapital decimal.Decimal, fees TradingFees, prec precision.Precision) *StrategyContext {
	return &StrategyContext{
		balance:   initialCapital,
		position:  decimal.Zero,
		fees:      fees,
		precision: prec,
	}
}

// Candles returns the candles appended so far, in append order.
func (c *StrategyContext) Candles() []Candle { return c.candles }

// Balance returns the current cash balance.
func (c *StrategyContext) Balance() decimal.Decimal { return c.balance }

// Position returns the current base-asset position.
func (c *StrategyContext) Position() decimal.Decimal { return c.position }

// Trades returns the trade journal recorded so far, in append order.
func (c *StrategyContext) Trades() []Trade { return c.trades }

// Orders returns the currently resting orders, in insertion order.
func (c *StrategyContext) Orders() []Order { return c.orders }

// Precision returns the symbol's rounding steps.
func (c *StrategyContext) Precision() precision.Precision { return c.precision }

// lastCandle returns the most recently appended candle, or ErrNoCandle if
// none has been appended yet.
func (c *StrategyContext) lastCandle() (Candle, error) {
	if len(c.candles) == 0 {
		return Candle{}, ErrNoCandle
	}
	return c.candles[len(c.candles)-1], nil
}

// appendCandle is called by Runner once per step, before before()/tick()/after().
func (c *StrategyContext) appendCandle(candle Candle) {
	c.candles = append(c.candles, candle)
}

// MarketBuy spends quote currency at the last candle's close, taker fee
// included, crediting the base position immediately.
func (c *StrategyContext) MarketBuy(amount decimal.Decimal) error {
	amount = c.precision.RoundAmount(amount, types.RoundDown)
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	candle, err := c.lastCandle()
	if err != nil {
		return err
	}

	price := candle.Close
	cost := price.Mul(amount)
	fee := c.precision.RoundAmount(cost.Mul(c.fees.Taker), types.RoundUp)
	total := cost.Add(fee)

	if total.GreaterThan(c.balance) {
		return ErrInsufficientFunds
	}

	c.balance = c.balance.Sub(total)
	c.position = c.position.Add(amount)
	c.trades = append(c.trades, Trade{
		Timestamp: candle.Timestamp,
		Type:      types.TradeMarketBuy,
		Price:     price,
		Amount:    amount,
		Fee:       fee,
	})
	return nil
}

// MarketSell liquidates base position at the last candle's close, taker
// fee included, crediting the balance immediately.
func (c *StrategyContext) MarketSell(amount decimal.Decimal) error {
	amount = c.precision.RoundAmount(amount, types.RoundDown)
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(c.position) {
		return ErrInsufficientPos
	}
	candle, err := c.lastCandle()
	if err != nil {
		return err
	}

	price := candle.Close
	proceeds := price.Mul(amount)
	fee := c.precision.RoundAmount(proceeds.Mul(c.fees.Taker), types.RoundUp)
	revenue := proceeds.Sub(fee)
	if revenue.Sign() < 0 {
		return ErrNegativeRevenue
	}

	c.position = c.position.Sub(amount)
	c.balance = c.balance.Add(revenue)
	c.trades = append(c.trades, Trade{
		Timestamp: candle.Timestamp,
		Type:      types.TradeMarketSell,
		Price:     price,
		Amount:    amount,
		Fee:       fee,
	})
	return nil
}

// LimitBuy rests a buy order at price for amount, reserving cost+fee from
// balance immediately. If price already crosses the market (price >= last
// close) it degrades to MarketBuy instead and returns (uuid.Nil, false, err).
//
// Note: price is quantized using the *amount* step, not the price step —
// this mirrors the original implementation's behavior and is preserved
// deliberately rather than "fixed".
func (c *StrategyContext) LimitBuy(price, amount decimal.Decimal) (uuid.UUID, bool, error) {
	price = c.precision.RoundAmount(price, types.RoundDown)
	amount = c.precision.RoundAmount(amount, types.RoundDown)
	if amount.Sign() <= 0 {
		return uuid.Nil, false, ErrInvalidAmount
	}

	candle, err := c.lastCandle()
	if err != nil {
		return uuid.Nil, false, err
	}

	if price.GreaterThanOrEqual(candle.Close) {
		if err := c.MarketBuy(amount); err != nil {
			return uuid.Nil, false, err
		}
		return uuid.Nil, false, nil
	}

	cost := price.Mul(amount)
	fee := c.precision.RoundAmount(cost.Mul(c.fees.Maker), types.RoundUp)
	total := cost.Add(fee)
	if total.GreaterThan(c.balance) {
		return uuid.Nil, false, ErrInsufficientFunds
	}

	c.balance = c.balance.Sub(total)
	id := uuid.New()
	c.orders = append(c.orders, Order{
		ID:     id,
		Type:   types.OrderLimitBuy,
		Price:  price,
		Amount: amount,
		Fee:    fee,
	})
	return id, true, nil
}

// LimitSell rests a sell order at price for amount, reserving the base
// amount and the maker fee immediately. If price already crosses the
// market (price <= last close) it degrades to MarketSell instead and
// returns (uuid.Nil, false, err).
func (c *StrategyContext) LimitSell(price, amount decimal.Decimal) (uuid.UUID, bool, error) {
	price = c.precision.RoundAmount(price, types.RoundDown)
	amount = c.precision.RoundAmount(amount, types.RoundDown)
	if amount.Sign() <= 0 {
		return uuid.Nil, false, ErrInvalidAmount
	}
	if amount.GreaterThan(c.position) {
		return uuid.Nil, false, ErrInsufficientPos
	}

	candle, err := c.lastCandle()
	if err != nil {
		return uuid.Nil, false, err
	}

	if price.LessThanOrEqual(candle.Close) {
		if err := c.MarketSell(amount); err != nil {
			return uuid.Nil, false, err
		}
		return uuid.Nil, false, nil
	}

	proceeds := price.Mul(amount)
	fee := c.precision.RoundAmount(proceeds.Mul(c.fees.Maker), types.RoundUp)
	if fee.GreaterThan(c.balance) {
		return uuid.Nil, false, fmt.Errorf("%w: cannot cover maker fee", ErrInsufficientFunds)
	}

	c.position = c.position.Sub(amount)
	c.balance = c.balance.Sub(fee)
	id := uuid.New()
	c.orders = append(c.orders, Order{
		ID:     id,
		Type:   types.OrderLimitSell,
		Price:  price,
		Amount: amount,
		Fee:    fee,
	})
	return id, true, nil
}

// CancelOrder is an idempotent lookup-and-remove: if id is resting, its
// reservation is refunded in full and it is removed. If id is absent this
// is a no-op.
func (c *StrategyContext) CancelOrder(id uuid.UUID) {
	for i, o := range c.orders {
		if o.ID != id {
			continue
		}
		switch o.Type {
		case types.OrderLimitBuy:
			refund := o.Price.Mul(o.Amount).Add(o.Fee)
			c.balance = c.balance.Add(refund)
		case types.OrderLimitSell:
			c.position = c.position.Add(o.Amount)
			c.balance = c.balance.Add(o.Fee)
		}
		c.orders = append(c.orders[:i], c.orders[i+1:]...)
		return
	}
}

// before matches resting orders against the current candle's high/low
// range, in insertion order, before the strategy callback runs. A resting
// LimitBuy fills when its price is at or above the candle's low; a resting
// LimitSell fills when its price is at or below the candle's high. Fills
// are journalled here, strictly before any trade the strategy callback
// produces this candle.
func (c *StrategyContext) before() error {
	candle, err := c.lastCandle()
	if err != nil {
		return err
	}

	var toFill []Order
	for _, o := range c.orders {
		switch o.Type {
		case types.OrderLimitBuy:
			if o.Price.GreaterThanOrEqual(candle.Low) {
				toFill = append(toFill, o)
			}
		case types.OrderLimitSell:
			if o.Price.LessThanOrEqual(candle.High) {
				toFill = append(toFill, o)
			}
		}
	}

	for _, o := range toFill {
		switch o.Type {
		case types.OrderLimitBuy:
			c.fillLimitBuy(candle, o)
		case types.OrderLimitSell:
			c.fillLimitSell(candle, o)
		}
		c.removeOrder(o.ID)
	}
	return nil
}

// after is reserved for future end-of-tick bookkeeping; it currently does
// nothing.
func (c *StrategyContext) after() error {
	return nil
}

// end is called once after the final candle: every order still resting is
// cancelled, restoring its reservation.
func (c *StrategyContext) end() error {
	ids := make([]uuid.UUID, len(c.orders))
	for i, o := range c.orders {
		ids[i] = o.ID
	}
	for _, id := range ids {
		c.CancelOrder(id)
	}
	return nil
}

func (c *StrategyContext) removeOrder(id uuid.UUID) {
	for i, o := range c.orders {
		if o.ID == id {
			c.orders = append(c.orders[:i], c.orders[i+1:]...)
			return
		}
	}
}

// fillLimitBuy credits the base position; the quote cost and fee were
// already debited from balance when the order was placed.
func (c *StrategyContext) fillLimitBuy(candle Candle, o Order) {
	c.position = c.position.Add(o.Amount)
	c.trades = append(c.trades, Trade{
		Timestamp: candle.Timestamp,
		Type:      types.TradeLimitBuy,
		Price:     o.Price,
		Amount:    o.Amount,
		Fee:       o.Fee,
	})
}

// fillLimitSell credits the proceeds to balance; the base amount and maker
// fee were already debited from position/balance when the order was placed.
func (c *StrategyContext) fillLimitSell(candle Candle, o Order) {
	proceeds := o.Price.Mul(o.Amount)
	c.balance = c.balance.Add(proceeds)
	c.trades = append(c.trades, Trade{
		Timestamp: candle.Timestamp,
		Type:      types.TradeLimitSell,
		Price:     o.Price,
		Amount:    o.Amount,
		Fee:       o.Fee,
	})
}
