package risk

import (
	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/broker"
)

// MaxBuyQuantity is the largest whole quantity of shares at price that cash
// covers once buy-side charges are added. It returns 0 when price is not
// positive or cash is short of a single share.
func (v *Validator) MaxBuyQuantity(cash, price decimal.Decimal) int64 {
	if !price.IsPositive() || !cash.IsPositive() {
		return 0
	}
	// Cost only grows with quantity, so search [0, cash/price].
	lo, hi := int64(0), cash.Div(price).IntPart()
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if v.affordable(cash, price, mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func (v *Validator) affordable(cash, price decimal.Decimal, qty int64) bool {
	notional := price.Mul(decimal.NewFromInt(qty))
	return notional.Add(v.calc.Compute(notional, broker.Buy).Total).LessThanOrEqual(cash)
}
