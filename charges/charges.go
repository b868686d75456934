// Package charges computes the itemized regulatory and broker costs of a trade.
package charges

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/broker"
)

// Rates holds every rate and cap the calculator applies. A BrokerageCap of
// zero disables the cap.
type Rates struct {
	BrokerageRate      decimal.Decimal // on order value
	BrokerageCap       decimal.Decimal // absolute, per order
	TransactionTaxRate decimal.Decimal // SELL side only
	ExchangeFeeRate    decimal.Decimal
	StampDutyRate      decimal.Decimal // BUY side only
	RegulatorFeeRate   decimal.Decimal
	ConsumptionTaxRate decimal.Decimal // on brokerage + exchange + regulator fees
}

// DefaultRates are equity delivery rates: 0.03% brokerage capped at 20,
// 0.1% STT, 0.00345% exchange, 0.015% stamp duty, 0.0001% SEBI and 18% GST.
func DefaultRates() Rates {
	return Rates{
		BrokerageRate:      decimal.RequireFromString("0.0003"),
		BrokerageCap:       decimal.NewFromInt(20),
		TransactionTaxRate: decimal.RequireFromString("0.001"),
		ExchangeFeeRate:    decimal.RequireFromString("0.0000345"),
		StampDutyRate:      decimal.RequireFromString("0.00015"),
		RegulatorFeeRate:   decimal.RequireFromString("0.000001"),
		ConsumptionTaxRate: decimal.RequireFromString("0.18"),
	}
}

func (r Rates) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"brokerage rate":       r.BrokerageRate,
		"brokerage cap":        r.BrokerageCap,
		"transaction tax rate": r.TransactionTaxRate,
		"exchange fee rate":    r.ExchangeFeeRate,
		"stamp duty rate":      r.StampDutyRate,
		"regulator fee rate":   r.RegulatorFeeRate,
		"consumption tax rate": r.ConsumptionTaxRate,
	} {
		if v.IsNegative() {
			return fmt.Errorf("charges: %s must not be negative, got %s", name, v)
		}
	}
	return nil
}

type Calculator struct {
	rates Rates
}

func NewCalculator(r Rates) *Calculator {
	return &Calculator{rates: r}
}

func (c *Calculator) Rates() Rates { return c.rates }

// Compute returns the charges on an order of the given notional value.
// Each component is rounded to 2 dp on its own, consumption tax is taken on
// the rounded fees, and Total is the sum of the rounded components.
func (c *Calculator) Compute(value decimal.Decimal, side broker.Side) broker.Charges {
	r := c.rates

	brokerage := value.Mul(r.BrokerageRate)
	if r.BrokerageCap.IsPositive() {
		brokerage = decimal.Min(brokerage, r.BrokerageCap)
	}

	ch := broker.Charges{
		Brokerage:      round(brokerage),
		ExchangeFee:    round(value.Mul(r.ExchangeFeeRate)),
		RegulatorFee:   round(value.Mul(r.RegulatorFeeRate)),
		TransactionTax: decimal.Zero,
		StampDuty:      decimal.Zero,
	}
	switch side {
	case broker.Sell:
		ch.TransactionTax = round(value.Mul(r.TransactionTaxRate))
	case broker.Buy:
		ch.StampDuty = round(value.Mul(r.StampDutyRate))
	}

	fees := ch.Brokerage.Add(ch.ExchangeFee).Add(ch.RegulatorFee)
	ch.ConsumptionTax = round(fees.Mul(r.ConsumptionTaxRate))

	ch.Total = ch.Brokerage.
		Add(ch.TransactionTax).
		Add(ch.ExchangeFee).
		Add(ch.ConsumptionTax).
		Add(ch.StampDuty).
		Add(ch.RegulatorFee)
	return ch
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
