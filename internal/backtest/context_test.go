package backtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merco/internal/precision"
	"merco/internal/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testPrecision() precision.Precision {
	return precision.Precision{
		PriceStep:  dec("0.01"),
		AmountStep: dec("0.0001"),
	}
}

func testFees() TradingFees {
	return TradingFees{Maker: dec("0.001"), Taker: dec("0.002")}
}

func candleAt(n int, o, h, l, c string) Candle {
	return Candle{
		Timestamp: time.Unix(int64(n)*60, 0).UTC(),
		Open:      dec(o),
		High:      dec(h),
		Low:       dec(l),
		Close:     dec(c),
		Volume:    dec("100"),
	}
}

func newCtx(capital string) *StrategyContext {
	return NewStrategyContext(dec(capital), testFees(), testPrecision())
}

func TestMarketBuyDebitsBalanceCreditsPosition(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))

	if err := ctx.MarketBuy(dec("10")); err != nil {
		t.Fatalf("MarketBuy: %v", err)
	}

	if !ctx.Position().Equal(dec("10")) {
		t.Fatalf("position = %s, want 10", ctx.Position())
	}
	cost := dec("1000")
	fee := dec("2") // 1000 * 0.002
	want := dec("10000").Sub(cost).Sub(fee)
	if !ctx.Balance().Equal(want) {
		t.Fatalf("balance = %s, want %s", ctx.Balance(), want)
	}
	if len(ctx.Trades()) != 1 || ctx.Trades()[0].Type != types.TradeMarketBuy {
		t.Fatalf("expected one market_buy trade, got %+v", ctx.Trades())
	}
}

func TestMarketBuyInsufficientFunds(t *testing.T) {
	ctx := newCtx("100")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))

	if err := ctx.MarketBuy(dec("10")); err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if !ctx.Balance().Equal(dec("100")) {
		t.Fatalf("balance mutated on failed buy: %s", ctx.Balance())
	}
}

func TestMarketSellInsufficientPosition(t *testing.T) {
	ctx := newCtx("1000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))

	if err := ctx.MarketSell(dec("1")); err == nil {
		t.Fatal("expected insufficient position error")
	}
}

func TestLimitBuyRestsAndReservesBalance(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))

	id, rested, err := ctx.LimitBuy(dec("90"), dec("10"))
	if err != nil {
		t.Fatalf("LimitBuy: %v", err)
	}
	if !rested {
		t.Fatal("expected order to rest, price below close")
	}
	if len(ctx.Orders()) != 1 || ctx.Orders()[0].ID != id {
		t.Fatalf("expected resting order with id %s, got %+v", id, ctx.Orders())
	}

	cost := dec("900")
	fee := dec("0.9") // 900 * 0.001 maker
	want := dec("10000").Sub(cost).Sub(fee)
	if !ctx.Balance().Equal(want) {
		t.Fatalf("balance = %s, want %s", ctx.Balance(), want)
	}
}

func TestLimitBuyDegradesToMarketWhenCrossed(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))

	id, rested, err := ctx.LimitBuy(dec("150"), dec("10"))
	if err != nil {
		t.Fatalf("LimitBuy: %v", err)
	}
	if rested {
		t.Fatal("expected immediate market fallback, price crosses close")
	}
	if id != uuid.Nil {
		t.Fatalf("expected nil id on fallback, got %s", id)
	}
	if len(ctx.Orders()) != 0 {
		t.Fatalf("expected no resting orders, got %+v", ctx.Orders())
	}
	if len(ctx.Trades()) != 1 || ctx.Trades()[0].Type != types.TradeMarketBuy {
		t.Fatalf("expected one market_buy trade from fallback, got %+v", ctx.Trades())
	}
}

// TestLimitBuyRoundsPriceWithAmountStep pins a deliberately preserved quirk:
// LimitBuy (and LimitSell) quantize their price argument using the amount
// step, not the price step. This test would fail if that were "fixed".
func TestLimitBuyRoundsPriceWithAmountStep(t *testing.T) {
	prec := precision.Precision{
		PriceStep:  dec("1"),    // would round 90.37 -> 90 if used
		AmountStep: dec("0.01"), // instead rounds 90.37 -> 90.37 (already aligned) or 90.376 -> 90.37
	}
	ctx := NewStrategyContext(dec("10000"), testFees(), prec)
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))

	_, rested, err := ctx.LimitBuy(dec("90.376"), dec("1"))
	if err != nil {
		t.Fatalf("LimitBuy: %v", err)
	}
	if !rested {
		t.Fatal("expected order to rest")
	}
	if !ctx.Orders()[0].Price.Equal(dec("90.37")) {
		t.Fatalf("price = %s, want 90.37 (rounded by amount step, not price step)", ctx.Orders()[0].Price)
	}
}

func TestCancelOrderRefundsLimitBuy(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))

	id, _, err := ctx.LimitBuy(dec("90"), dec("10"))
	if err != nil {
		t.Fatalf("LimitBuy: %v", err)
	}
	before := ctx.Balance()
	ctx.CancelOrder(id)
	if len(ctx.Orders()) != 0 {
		t.Fatal("expected order removed after cancel")
	}
	if !ctx.Balance().Equal(dec("10000")) {
		t.Fatalf("balance not fully refunded: have %s before-cancel %s", ctx.Balance(), before)
	}
}

func TestCancelOrderUnknownIDIsNoop(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))
	before := ctx.Balance()
	ctx.CancelOrder(uuid.Nil)
	if !ctx.Balance().Equal(before) {
		t.Fatal("cancel of unknown id mutated balance")
	}
}

func TestBeforeFillsLimitBuyWhenLowTouchesPrice(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))
	if _, _, err := ctx.LimitBuy(dec("90"), dec("10")); err != nil {
		t.Fatalf("LimitBuy: %v", err)
	}

	ctx.appendCandle(candleAt(1, "95", "96", "85", "90"))
	if err := ctx.before(); err != nil {
		t.Fatalf("before: %v", err)
	}

	if len(ctx.Orders()) != 0 {
		t.Fatal("expected order filled and removed")
	}
	if !ctx.Position().Equal(dec("10")) {
		t.Fatalf("position after fill = %s, want 10", ctx.Position())
	}
	if len(ctx.Trades()) != 1 || ctx.Trades()[0].Type != types.TradeLimitBuy {
		t.Fatalf("expected one limit_buy trade, got %+v", ctx.Trades())
	}
}

func TestBeforeDoesNotFillWhenLowAbovePrice(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))
	if _, _, err := ctx.LimitBuy(dec("80"), dec("10")); err != nil {
		t.Fatalf("LimitBuy: %v", err)
	}

	ctx.appendCandle(candleAt(1, "95", "96", "85", "90"))
	if err := ctx.before(); err != nil {
		t.Fatalf("before: %v", err)
	}
	if len(ctx.Orders()) != 1 {
		t.Fatal("expected order still resting, low never reached price")
	}
}

func TestEndCancelsAllRestingOrders(t *testing.T) {
	ctx := newCtx("10000")
	ctx.appendCandle(candleAt(0, "100", "105", "95", "100"))
	if _, _, err := ctx.LimitBuy(dec("80"), dec("10")); err != nil {
		t.Fatalf("LimitBuy: %v", err)
	}
	if err := ctx.end(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(ctx.Orders()) != 0 {
		t.Fatal("expected all orders cancelled at end")
	}
	if !ctx.Balance().Equal(dec("10000")) {
		t.Fatalf("balance not restored after end: %s", ctx.Balance())
	}
}
