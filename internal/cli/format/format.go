// Package format renders ledger values for the terminal.
package format

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money renders d in currency's notation, falling back to a plain two
// decimal amount for unknown codes.
func Money(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return d.StringFixed(2) + " " + currency
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}

// Signed is Money with an explicit sign; zero renders as "-".
func Signed(d decimal.Decimal, currency string) string {
	switch {
	case d.IsZero():
		return "-"
	case d.IsPositive():
		return "+" + Money(d, currency)
	default:
		return Money(d, currency)
	}
}

// Pct renders a percentage already scaled to 100.
func Pct(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// Price renders a per-share price with two decimals.
func Price(d decimal.Decimal) string {
	return d.StringFixed(2)
}
