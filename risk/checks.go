// Package risk checks proposed orders against account state and market
// constraints before anything is executed.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/charges"
	"github.com/adarshjiiidev/Kagazi/portfolio"
)

// Decision is the outcome of one validation pass. Every violated rule is
// listed in Errors; Warnings never make an order invalid.
type Decision struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (d *Decision) add(format string, args ...any) {
	d.Errors = append(d.Errors, fmt.Sprintf(format, args...))
	d.Valid = false
}

func (d *Decision) warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

type Validator struct {
	limits Limits
	calc   *charges.Calculator
}

func NewValidator(limits Limits, calc *charges.Calculator) *Validator {
	return &Validator{limits: limits, calc: calc}
}

// Validate runs every rule against order. p may be nil for an account with
// nothing in it. current is the latest quoted price of order.Symbol. Side
// and kind are matched case-insensitively.
func (v *Validator) Validate(order broker.OrderRequest, p *portfolio.Portfolio, current decimal.Decimal) Decision {
	d := Decision{Valid: true}
	sym := order.Symbol

	if strings.TrimSpace(sym) == "" {
		d.add("symbol is required")
	}
	if order.Quantity <= 0 {
		d.add("quantity must be a positive integer, got %d", order.Quantity)
	}
	if side, err := broker.ParseSide(string(order.Side)); err != nil {
		d.add("%v", err)
	} else {
		order.Side = side
	}
	if kind, err := broker.ParseOrderKind(string(order.Kind)); err != nil {
		d.add("%v", err)
	} else {
		order.Kind = kind
	}
	if order.Kind.NeedsLimit() && !order.LimitPrice.IsPositive() {
		d.add("%s orders require a limit price greater than 0", order.Kind)
	}
	if order.Kind.NeedsStop() && !order.StopPrice.IsPositive() {
		d.add("%s orders require a stop price greater than 0", order.Kind)
	}
	if !current.IsPositive() {
		d.add("no current price for %s", sym)
	}

	switch order.Side {
	case broker.Buy:
		v.checkFunds(&d, order, p, current)
		if v.limits.LargeOrderQuantity > 0 && order.Quantity > v.limits.LargeOrderQuantity {
			d.warn("large order: %d shares of %s exceeds %d", order.Quantity, sym, v.limits.LargeOrderQuantity)
		}
	case broker.Sell:
		v.checkShares(&d, order, p)
	}

	if current.IsPositive() && v.limits.PriceBand.IsPositive() {
		if order.LimitPrice.IsPositive() {
			v.checkBand(&d, "limit", order.LimitPrice, current)
		}
		if order.StopPrice.IsPositive() {
			v.checkBand(&d, "stop", order.StopPrice, current)
		}
	}
	return d
}

// checkFunds needs a usable price and quantity; it is skipped when an
// earlier rule already reported them missing.
func (v *Validator) checkFunds(d *Decision, order broker.OrderRequest, p *portfolio.Portfolio, current decimal.Decimal) {
	price := current
	if order.Kind == broker.Limit {
		price = order.LimitPrice
	}
	if !price.IsPositive() || order.Quantity <= 0 {
		return
	}

	notional := price.Mul(decimal.NewFromInt(order.Quantity))
	required := notional.Add(v.calc.Compute(notional, broker.Buy).Total)
	cash := decimal.Zero
	if p != nil {
		cash = p.Cash
	}
	if required.GreaterThan(cash) {
		d.add("insufficient funds for %s: required %s, available %s", order.Symbol, required.StringFixed(2), cash.StringFixed(2))
	}
}

func (v *Validator) checkShares(d *Decision, order broker.OrderRequest, p *portfolio.Portfolio) {
	var (
		h  portfolio.Holding
		ok bool
	)
	if p != nil {
		h, ok = p.Lookup(order.Symbol)
	}
	if !ok {
		d.add("no holding in %s to sell", order.Symbol)
		return
	}
	if order.Quantity > 0 && h.Quantity < order.Quantity {
		d.add("insufficient shares of %s: held %d, requested %d", order.Symbol, h.Quantity, order.Quantity)
	}
}

func (v *Validator) checkBand(d *Decision, label string, price, current decimal.Decimal) {
	dev := price.Sub(current).Abs().Div(current)
	if dev.GreaterThan(v.limits.PriceBand) {
		d.warn("%s price %s is %s%% away from current price %s",
			label, price.String(), dev.Mul(decimal.NewFromInt(100)).StringFixed(1), current.String())
	}
}
