package sim

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/adarshjiiidev/Kagazi/broker"
)

type fixedSlippage struct{ f decimal.Decimal }

func (s fixedSlippage) Fraction() decimal.Decimal { return s.f }

func TestExecuteMarketSlippageDirection(t *testing.T) {
	t.Parallel()

	x := NewExecutor(fixedSlippage{d("0.001")})
	buy := x.Execute(broker.OrderRequest{Side: broker.Buy, Kind: broker.Market, Quantity: 10}, d("100"))
	assert.Equal(t, broker.StatusExecuted, buy.Status)
	assert.Equal(t, int64(10), buy.Quantity)
	assert.True(t, buy.Price.Equal(d("100.1")), buy.Price.String())

	sell := x.Execute(broker.OrderRequest{Side: broker.Sell, Kind: broker.Market, Quantity: 3}, d("100"))
	assert.True(t, sell.Price.Equal(d("99.9")), sell.Price.String())

	// Rounded to 2 dp.
	odd := x.Execute(broker.OrderRequest{Side: broker.Buy, Kind: broker.Market, Quantity: 1}, d("123.45"))
	assert.True(t, odd.Price.Equal(d("123.57")), odd.Price.String())
}

func TestExecuteNonMarketStaysPending(t *testing.T) {
	t.Parallel()

	x := NewExecutor(nil)
	for _, k := range []broker.OrderKind{broker.Limit, broker.Stop, broker.StopLimit} {
		e := x.Execute(broker.OrderRequest{Side: broker.Buy, Kind: k, Quantity: 5, LimitPrice: d("1"), StopPrice: d("1")}, d("100"))
		assert.Equal(t, broker.StatusPending, e.Status, k)
		assert.Zero(t, e.Quantity)
		assert.True(t, e.Price.IsZero())
	}
}

func TestRandomSlippageBounds(t *testing.T) {
	t.Parallel()

	max := d("0.001")
	s := NewRandomSlippage(max, 42)
	for i := 0; i < 1000; i++ {
		f := s.Fraction()
		assert.False(t, f.IsNegative())
		assert.True(t, f.LessThan(max), f.String())
	}

	x := NewExecutor(NewRandomSlippage(max, 7))
	for i := 0; i < 200; i++ {
		e := x.Execute(broker.OrderRequest{Side: broker.Buy, Kind: broker.Market, Quantity: 1}, d("100"))
		assert.True(t, e.Price.GreaterThanOrEqual(d("100")))
		assert.True(t, e.Price.LessThanOrEqual(d("100.1")))
	}
}

func TestShouldExecute(t *testing.T) {
	t.Parallel()

	buy := broker.OrderRequest{Side: broker.Buy, Kind: broker.Limit, Quantity: 1, LimitPrice: d("95")}
	sell := broker.OrderRequest{Side: broker.Sell, Kind: broker.Limit, Quantity: 1, LimitPrice: d("110")}

	assert.False(t, ShouldExecute(buy, d("95.01")))
	assert.True(t, ShouldExecute(buy, d("95")))
	assert.True(t, ShouldExecute(buy, d("90")))

	assert.False(t, ShouldExecute(sell, d("109.99")))
	assert.True(t, ShouldExecute(sell, d("110")))
	assert.True(t, ShouldExecute(sell, d("120")))

	stop := broker.OrderRequest{Side: broker.Buy, Kind: broker.Stop, Quantity: 1, StopPrice: d("90")}
	assert.False(t, ShouldExecute(stop, d("80")))
	assert.False(t, ShouldExecute(buy, decimal.Zero))
}

func TestFillUsesLimitPrice(t *testing.T) {
	t.Parallel()

	e := NewExecutor(fixedSlippage{d("0.5")}).Fill(broker.OrderRequest{Side: broker.Buy, Kind: broker.Limit, Quantity: 4, LimitPrice: d("95")})
	assert.Equal(t, broker.StatusExecuted, e.Status)
	assert.Equal(t, int64(4), e.Quantity)
	assert.True(t, e.Price.Equal(d("95")))
}
