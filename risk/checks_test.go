package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/charges"
	"github.com/adarshjiiidev/Kagazi/portfolio"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newValidator() *Validator {
	return NewValidator(DefaultLimits(), charges.NewCalculator(charges.DefaultRates()))
}

func holdingPortfolio(cash string, symbol string, qty int64) *portfolio.Portfolio {
	p := portfolio.New("acc", d(cash), time.Now())
	if qty > 0 {
		p.Holdings[symbol] = &portfolio.Holding{Symbol: symbol, Quantity: qty, AvgPrice: d("100")}
	}
	return p
}

func containsText(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		order    broker.OrderRequest
		p        *portfolio.Portfolio
		current  string
		valid    bool
		errs     []string
		warnings []string
	}{
		{
			name:    "market buy within cash",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Buy, Kind: broker.Market, Quantity: 10},
			p:       holdingPortfolio("1000000", "", 0),
			current: "100",
			valid:   true,
		},
		{
			name:    "buy exceeding cash by the charges",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Buy, Kind: broker.Market, Quantity: 10},
			p:       holdingPortfolio("1000.50", "", 0),
			current: "100",
			errs:    []string{"insufficient funds for X: required 1000.54, available 1000.50"},
		},
		{
			name:    "limit buy checks funds at the limit price",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Buy, Kind: broker.Limit, Quantity: 10, LimitPrice: d("95")},
			p:       holdingPortfolio("951", "", 0),
			current: "100",
			valid:   true,
		},
		{
			name:    "sell without holding",
			order:   broker.OrderRequest{Symbol: "INFY", Side: broker.Sell, Kind: broker.Market, Quantity: 1},
			p:       holdingPortfolio("1000", "", 0),
			current: "100",
			errs:    []string{"no holding in INFY"},
		},
		{
			name:    "sell more than held",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Sell, Kind: broker.Market, Quantity: 11},
			p:       holdingPortfolio("0", "X", 10),
			current: "100",
			errs:    []string{"insufficient shares of X: held 10, requested 11"},
		},
		{
			name:    "errors accumulate",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Sell, Kind: broker.StopLimit, Quantity: 0},
			p:       holdingPortfolio("0", "", 0),
			current: "100",
			errs: []string{
				"quantity must be a positive integer",
				"STOP_LIMIT orders require a limit price",
				"STOP_LIMIT orders require a stop price",
				"no holding in X",
			},
		},
		{
			name:    "stop requires stop price",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Buy, Kind: broker.Stop, Quantity: 1},
			p:       holdingPortfolio("1000", "", 0),
			current: "100",
			errs:    []string{"STOP orders require a stop price"},
		},
		{
			name:    "unknown side and kind",
			order:   broker.OrderRequest{Symbol: "X", Side: "HOLD", Kind: "ICEBERG", Quantity: 1},
			p:       holdingPortfolio("1000", "", 0),
			current: "100",
			errs:    []string{`unknown side "HOLD"`, `unknown order kind "ICEBERG"`},
		},
		{
			name:    "missing current price",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Buy, Kind: broker.Market, Quantity: 1},
			p:       holdingPortfolio("1000", "", 0),
			current: "0",
			errs:    []string{"no current price for X"},
		},
		{
			name:     "large order and far limit warn only",
			order:    broker.OrderRequest{Symbol: "X", Side: broker.Buy, Kind: broker.Limit, Quantity: 20000, LimitPrice: d("1")},
			p:        holdingPortfolio("1000000", "", 0),
			current:  "2",
			valid:    true,
			warnings: []string{"large order: 20000 shares of X", "limit price 1 is 50.0% away"},
		},
		{
			name:     "far stop price warns",
			order:    broker.OrderRequest{Symbol: "X", Side: broker.Sell, Kind: broker.Stop, Quantity: 5, StopPrice: d("80")},
			p:        holdingPortfolio("0", "X", 10),
			current:  "100",
			valid:    true,
			warnings: []string{"stop price 80 is 20.0% away"},
		},
		{
			name:    "lowercase sell without holding",
			order:   broker.OrderRequest{Symbol: "X", Side: "sell", Kind: "market", Quantity: 10},
			p:       holdingPortfolio("1000000", "", 0),
			current: "100",
			errs:    []string{"no holding in X"},
		},
		{
			name:    "lowercase limit buy beyond cash",
			order:   broker.OrderRequest{Symbol: "X", Side: "buy", Kind: "limit", Quantity: 1000000, LimitPrice: d("100")},
			p:       holdingPortfolio("1000000", "", 0),
			current: "100",
			errs:    []string{"insufficient funds for X"},
		},
		{
			name:    "lowercase limit without price",
			order:   broker.OrderRequest{Symbol: "X", Side: "Buy", Kind: "limit", Quantity: 1},
			p:       holdingPortfolio("1000", "", 0),
			current: "100",
			errs:    []string{"LIMIT orders require a limit price"},
		},
		{
			name:    "nil portfolio",
			order:   broker.OrderRequest{Symbol: "X", Side: broker.Buy, Kind: broker.Market, Quantity: 1},
			p:       nil,
			current: "100",
			errs:    []string{"insufficient funds"},
		},
	}

	v := newValidator()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dec := v.Validate(tt.order, tt.p, d(tt.current))

			if len(tt.errs) == 0 {
				assert.Equal(t, tt.valid, dec.Valid, "errors: %v", dec.Errors)
				assert.Empty(t, dec.Errors)
			} else {
				assert.False(t, dec.Valid)
				assert.Len(t, dec.Errors, len(tt.errs), "errors: %v", dec.Errors)
				for _, e := range tt.errs {
					assert.True(t, containsText(dec.Errors, e), "missing error %q in %v", e, dec.Errors)
				}
			}
			for _, w := range tt.warnings {
				assert.True(t, containsText(dec.Warnings, w), "missing warning %q in %v", w, dec.Warnings)
			}
		})
	}
}

func TestSellWithoutHoldingMentionsSymbol(t *testing.T) {
	t.Parallel()

	v := newValidator()
	for _, sym := range []string{"A", "TCS", "RELIANCE"} {
		dec := v.Validate(broker.OrderRequest{Symbol: sym, Side: broker.Sell, Kind: broker.Market, Quantity: 1},
			holdingPortfolio("100", "OTHER", 5), d("10"))
		require.False(t, dec.Valid)
		assert.True(t, containsText(dec.Errors, sym))
	}
}

func TestMaxBuyQuantity(t *testing.T) {
	t.Parallel()

	v := newValidator()
	// 10 shares at 100 cost 1000.54 with charges.
	assert.Equal(t, int64(9), v.MaxBuyQuantity(d("1000.50"), d("100")))
	assert.Equal(t, int64(10), v.MaxBuyQuantity(d("1000.54"), d("100")))
	assert.Equal(t, int64(0), v.MaxBuyQuantity(d("50"), d("100")))
	assert.Equal(t, int64(0), v.MaxBuyQuantity(d("50"), decimal.Zero))
}

func TestMaxBuyQuantityLargeCashSubUnitPrice(t *testing.T) {
	t.Parallel()

	v := newValidator()
	cases := []struct{ cash, price string }{
		{"100000000", "0.01"},
		{"1000000", "0.05"},
		{"123456.78", "3.21"},
	}
	for _, c := range cases {
		cash, price := d(c.cash), d(c.price)
		start := time.Now()
		qty := v.MaxBuyQuantity(cash, price)
		assert.Less(t, time.Since(start), time.Second, "%s at %s", c.cash, c.price)

		require.Positive(t, qty)
		assert.True(t, v.affordable(cash, price, qty), "%d should fit %s", qty, c.cash)
		assert.False(t, v.affordable(cash, price, qty+1), "%d should not fit %s", qty+1, c.cash)
	}
}

func TestLimitsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultLimits().Validate())
	assert.Error(t, Limits{LargeOrderQuantity: -1}.Validate())
	assert.Error(t, Limits{PriceBand: d("-0.1")}.Validate())
}
