package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/charges"
	"github.com/adarshjiiidev/Kagazi/market"
)

var (
	now  = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	calc = charges.NewCalculator(charges.DefaultRates())
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func executed(side broker.Side, symbol string, qty int64, price string) broker.Trade {
	px := d(price)
	value := px.Mul(decimal.NewFromInt(qty))
	return broker.Trade{
		ID:               "T-" + string(side),
		AccountID:        "acc",
		Symbol:           symbol,
		Side:             side,
		Kind:             broker.Market,
		Quantity:         qty,
		Price:            px,
		Status:           broker.StatusExecuted,
		ExecutedQuantity: qty,
		ExecutedPrice:    px,
		TotalValue:       value,
		Charges:          calc.Compute(value, side),
		ExecutedAt:       now,
	}
}

func quote(symbol, price string) market.Quote {
	return market.Quote{Symbol: symbol, Price: d(price), State: market.StateRegular, Time: now}
}

func fresh() *Portfolio {
	return New("acc", d("1000000"), now)
}

func TestBuyScenario(t *testing.T) {
	t.Parallel()

	p := fresh()
	next, err := Apply(p, executed(broker.Buy, "X", 10, "100"), quote("X", "100"))
	require.NoError(t, err)

	assert.Equal(t, "998999.46", next.Cash.String())
	h, ok := next.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, int64(10), h.Quantity)
	assert.Equal(t, "100.054", h.AvgPrice.String())
	assert.Equal(t, "1000.54", h.InvestedValue.String())
	assert.Equal(t, "1000", h.CurrentValue.String())
	assert.Equal(t, "-0.54", h.PnL.String())
	assert.Equal(t, "-0.05", h.PnLPct.String())

	assert.Equal(t, "1000.54", next.TotalInvested.String())
	assert.Equal(t, "1000", next.CurrentValue.String())
	assert.Equal(t, "-0.54", next.TotalPnL.String())

	// Input untouched.
	assert.Equal(t, "1000000", p.Cash.String())
	assert.Empty(t, p.Holdings)
}

func TestSellAllRemovesHolding(t *testing.T) {
	t.Parallel()

	p, err := Apply(fresh(), executed(broker.Buy, "X", 10, "100"), quote("X", "100"))
	require.NoError(t, err)

	sell := executed(broker.Sell, "X", 10, "110")
	realized := RealizedPnL(p, sell)
	require.True(t, realized.Valid)
	assert.Equal(t, "97.92", realized.Decimal.String())

	next, err := Apply(p, sell, quote("X", "110"))
	require.NoError(t, err)

	_, ok := next.Holdings["X"]
	assert.False(t, ok)
	assert.Equal(t, "1000097.92", next.Cash.String())
	assert.True(t, next.TotalInvested.IsZero())
	assert.True(t, next.CurrentValue.IsZero())
	assert.True(t, next.TotalPnLPct.IsZero())
	assert.True(t, next.DayPnLPct.IsZero())
}

func TestRoundTripCostsBothChargeTotals(t *testing.T) {
	t.Parallel()

	buy := executed(broker.Buy, "X", 10, "100")
	sell := executed(broker.Sell, "X", 10, "100")

	p, err := Apply(fresh(), buy, quote("X", "100"))
	require.NoError(t, err)
	p, err = Apply(p, sell, quote("X", "100"))
	require.NoError(t, err)

	want := d("1000000").Sub(buy.Charges.Total).Sub(sell.Charges.Total)
	assert.True(t, p.Cash.Equal(want), "cash %s want %s", p.Cash, want)
	assert.Equal(t, "999998.07", p.Cash.String())
	assert.Empty(t, p.Holdings)
}

func TestWeightedAverageAndPartialSell(t *testing.T) {
	t.Parallel()

	p, err := Apply(fresh(), executed(broker.Buy, "X", 10, "100"), quote("X", "100"))
	require.NoError(t, err)
	p, err = Apply(p, executed(broker.Buy, "X", 10, "120"), quote("X", "120"))
	require.NoError(t, err)

	h, _ := p.Lookup("X")
	assert.Equal(t, int64(20), h.Quantity)
	assert.Equal(t, "110.0595", h.AvgPrice.String())
	assert.Equal(t, "2201.19", h.InvestedValue.String())
	assert.Equal(t, "2400", h.CurrentValue.String())

	p, err = Apply(p, executed(broker.Sell, "X", 5, "130"), quote("X", "130"))
	require.NoError(t, err)

	h, _ = p.Lookup("X")
	assert.Equal(t, int64(15), h.Quantity)
	assert.Equal(t, "110.0595", h.AvgPrice.String())
	assert.Equal(t, "1650.8925", h.InvestedValue.String())
	assert.Equal(t, "1950", h.CurrentValue.String())
}

func TestDayPnLAggregates(t *testing.T) {
	t.Parallel()

	q := quote("X", "100")
	q.PrevClose = d("95")

	p, err := Apply(fresh(), executed(broker.Buy, "X", 10, "100"), q)
	require.NoError(t, err)

	h, _ := p.Lookup("X")
	assert.Equal(t, "5", h.DayChange.String())
	assert.Equal(t, "50", p.DayPnL.String())
	assert.Equal(t, "5", p.DayPnLPct.String())
}

func TestApplyWithQuoteForOtherSymbolUsesExecutedPrice(t *testing.T) {
	t.Parallel()

	p, err := Apply(fresh(), executed(broker.Buy, "X", 2, "50"), quote("Y", "999"))
	require.NoError(t, err)
	h, _ := p.Lookup("X")
	assert.Equal(t, "50", h.CurrentPrice.String())
}

func TestApplyRejectsUnexecuted(t *testing.T) {
	t.Parallel()

	tr := executed(broker.Buy, "X", 1, "10")
	tr.Status = broker.StatusPending
	_, err := Apply(fresh(), tr, quote("X", "10"))
	assert.ErrorIs(t, err, ErrNotExecuted)

	tr = executed(broker.Buy, "X", 1, "10")
	tr.ExecutedQuantity = 0
	_, err = Apply(fresh(), tr, quote("X", "10"))
	assert.ErrorIs(t, err, ErrEmptyExecution)
}

func TestOversellPanics(t *testing.T) {
	t.Parallel()

	p, err := Apply(fresh(), executed(broker.Buy, "X", 1, "10"), quote("X", "10"))
	require.NoError(t, err)

	assert.PanicsWithError(t,
		"ledger integrity violated for account acc symbol X: holding quantity would be -1",
		func() { _, _ = Apply(p, executed(broker.Sell, "X", 2, "10"), quote("X", "10")) })

	assert.Panics(t, func() { _, _ = Apply(fresh(), executed(broker.Sell, "Y", 1, "10"), quote("Y", "10")) })
}

func TestNegativeCashPanics(t *testing.T) {
	t.Parallel()

	p := New("acc", d("10"), now)
	assert.Panics(t, func() { _, _ = Apply(p, executed(broker.Buy, "X", 1, "100"), quote("X", "100")) })
}

func TestRevalue(t *testing.T) {
	t.Parallel()

	p, err := Apply(fresh(), executed(broker.Buy, "X", 10, "100"), quote("X", "100"))
	require.NoError(t, err)

	q := quote("x", "110")
	q.PrevClose = d("100")
	q.Time = now.Add(time.Hour)
	require.True(t, p.Revalue(q))

	h, _ := p.Lookup("X")
	assert.Equal(t, "1100", h.CurrentValue.String())
	assert.Equal(t, "99.46", h.PnL.String())
	assert.Equal(t, "100", p.DayPnL.String())
	assert.True(t, p.UpdatedAt.Equal(now.Add(time.Hour)))

	assert.False(t, p.Revalue(quote("Z", "1")))
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	p, err := Apply(fresh(), executed(broker.Buy, "X", 10, "100"), quote("X", "100"))
	require.NoError(t, err)

	c := p.Clone()
	c.Holdings["X"].Quantity = 1
	c.Cash = decimal.Zero

	h, _ := p.Lookup("X")
	assert.Equal(t, int64(10), h.Quantity)
	assert.False(t, p.Cash.IsZero())
	assert.Equal(t, []string{"X"}, p.Symbols())
	assert.Equal(t, p.Cash.Add(p.CurrentValue).String(), p.NetWorth().String())
}
