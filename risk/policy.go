package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Limits are the market constraints the validator checks besides cash and
// holdings.
type Limits struct {
	// LargeOrderQuantity warns on BUY orders above this many shares. Zero disables.
	LargeOrderQuantity int64
	// PriceBand warns when a limit or stop price is further than this
	// fraction from the current price (0.10 = 10%). Zero disables.
	PriceBand decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		LargeOrderQuantity: 10000,
		PriceBand:          decimal.RequireFromString("0.10"),
	}
}

func (l Limits) Validate() error {
	if l.LargeOrderQuantity < 0 {
		return fmt.Errorf("large order quantity must not be negative, got %d", l.LargeOrderQuantity)
	}
	if l.PriceBand.IsNegative() {
		return fmt.Errorf("price band must not be negative, got %s", l.PriceBand)
	}
	return nil
}
