package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one fixed-width OHLCV bar. Start is aligned to Width.
// Volume is the latest cumulative day volume seen inside the bucket.
type Candle struct {
	Symbol string
	Start  time.Time
	Width  time.Duration

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume int64
}

// End is the exclusive end of the bucket.
func (c Candle) End() time.Time {
	return c.Start.Add(c.Width)
}

// Valid reports whether high/low bracket both open and close.
func (c Candle) Valid() bool {
	if c.Low.GreaterThan(decimal.Min(c.Open, c.Close)) {
		return false
	}
	if c.High.LessThan(decimal.Max(c.Open, c.Close)) {
		return false
	}
	return true
}
