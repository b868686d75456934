package charges

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adarshjiiidev/Kagazi/broker"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeComponents(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(DefaultRates())

	tests := []struct {
		name                                                  string
		value                                                 string
		side                                                  broker.Side
		brokerage, stt, exchange, gst, stamp, regulator, total string
	}{
		{"small buy", "1000", broker.Buy, "0.3", "0", "0.03", "0.06", "0.15", "0", "0.54"},
		{"small sell", "1000", broker.Sell, "0.3", "1", "0.03", "0.06", "0", "0", "1.39"},
		{"capped buy", "100000", broker.Buy, "20", "0", "3.45", "4.24", "15", "0.1", "42.79"},
		{"capped sell", "100000", broker.Sell, "20", "100", "3.45", "4.24", "0", "0.1", "127.79"},
		{"zero", "0", broker.Buy, "0", "0", "0", "0", "0", "0", "0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch := calc.Compute(d(tt.value), tt.side)
			assert.True(t, ch.Brokerage.Equal(d(tt.brokerage)), "brokerage %s", ch.Brokerage)
			assert.True(t, ch.TransactionTax.Equal(d(tt.stt)), "stt %s", ch.TransactionTax)
			assert.True(t, ch.ExchangeFee.Equal(d(tt.exchange)), "exchange %s", ch.ExchangeFee)
			assert.True(t, ch.ConsumptionTax.Equal(d(tt.gst)), "gst %s", ch.ConsumptionTax)
			assert.True(t, ch.StampDuty.Equal(d(tt.stamp)), "stamp %s", ch.StampDuty)
			assert.True(t, ch.RegulatorFee.Equal(d(tt.regulator)), "regulator %s", ch.RegulatorFee)
			assert.True(t, ch.Total.Equal(d(tt.total)), "total %s", ch.Total)
		})
	}
}

func TestSidesSwapTaxAndStamp(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(DefaultRates())
	buy := calc.Compute(d("100000"), broker.Buy)
	sell := calc.Compute(d("100000"), broker.Sell)

	assert.True(t, buy.StampDuty.IsPositive())
	assert.True(t, buy.TransactionTax.IsZero())
	assert.True(t, sell.TransactionTax.IsPositive())
	assert.True(t, sell.StampDuty.IsZero())

	// Everything but STT and stamp duty is side independent.
	diff := sell.Total.Sub(buy.Total)
	assert.True(t, diff.Equal(sell.TransactionTax.Sub(buy.StampDuty)))
}

func TestTotalIsSumOfRoundedComponents(t *testing.T) {
	t.Parallel()

	// 0.3333 brokerage style values where rounding each part differs from
	// rounding the sum.
	r := Rates{
		BrokerageRate:      d("0.00333"),
		ExchangeFeeRate:    d("0.00333"),
		RegulatorFeeRate:   d("0.00333"),
		ConsumptionTaxRate: decimal.Zero,
	}
	ch := NewCalculator(r).Compute(d("1"), broker.Buy)
	assert.True(t, ch.Total.Equal(decimal.Zero), "each 0.00333 rounds to 0, got %s", ch.Total)

	ch = NewCalculator(r).Compute(d("100"), broker.Buy)
	// 0.333 -> 0.33 three times.
	assert.True(t, ch.Total.Equal(d("0.99")), "total %s", ch.Total)
}

func TestUncappedBrokerage(t *testing.T) {
	t.Parallel()

	r := DefaultRates()
	r.BrokerageCap = decimal.Zero
	ch := NewCalculator(r).Compute(d("1000000"), broker.Sell)
	assert.True(t, ch.Brokerage.Equal(d("300")))
}

func TestRatesValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultRates().Validate())

	r := DefaultRates()
	r.StampDutyRate = d("-0.1")
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stamp duty rate")
}
