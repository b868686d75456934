package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/market"
)

// IntegrityError is the panic value for ledger states that validation must
// have made unreachable, such as a negative holding or negative cash.
type IntegrityError struct {
	AccountID string
	Symbol    string
	Reason    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violated for account %s symbol %s: %s", e.AccountID, e.Symbol, e.Reason)
}

var (
	ErrNotExecuted    = errors.New("trade is not executed")
	ErrEmptyExecution = errors.New("trade has no executed quantity")
)

// Apply books an executed trade against p and returns the updated copy.
// p itself is never modified, so a caller that fails to persist the result
// can drop it without undoing anything. quote marks the holding to market;
// when it is for another symbol the executed price is used instead.
func Apply(p *Portfolio, t broker.Trade, quote market.Quote) (*Portfolio, error) {
	if t.Status != broker.StatusExecuted {
		return nil, fmt.Errorf("apply %s: %w (status %s)", t.ID, ErrNotExecuted, t.Status)
	}
	if t.ExecutedQuantity <= 0 {
		return nil, fmt.Errorf("apply %s: %w", t.ID, ErrEmptyExecution)
	}

	next := p.Clone()
	mark := t.ExecutedPrice
	if market.NormalizeSymbol(quote.Symbol) == t.Symbol && quote.Price.IsPositive() {
		mark = quote.Price
	}

	switch t.Side {
	case broker.Buy:
		applyBuy(next, t)
	case broker.Sell:
		applySell(next, t)
	default:
		return nil, fmt.Errorf("apply %s: unknown side %q", t.ID, t.Side)
	}

	if next.Cash.IsNegative() {
		panic(&IntegrityError{AccountID: p.AccountID, Symbol: t.Symbol, Reason: "cash went negative: " + next.Cash.String()})
	}

	if h, ok := next.Holdings[t.Symbol]; ok {
		h.refresh(mark)
		if market.NormalizeSymbol(quote.Symbol) == t.Symbol {
			h.DayChange = quote.DayChange()
			h.DayChangePct = quote.DayChangePct()
		}
		h.UpdatedAt = t.ExecutedAt
	}
	next.UpdatedAt = t.ExecutedAt
	next.Recompute()
	return next, nil
}

func applyBuy(p *Portfolio, t broker.Trade) {
	cost := t.TotalValue.Add(t.Charges.Total)
	p.Cash = p.Cash.Sub(cost)

	qty := decimal.NewFromInt(t.ExecutedQuantity)
	h, ok := p.Holdings[t.Symbol]
	if !ok {
		p.Holdings[t.Symbol] = &Holding{
			Symbol:        t.Symbol,
			Quantity:      t.ExecutedQuantity,
			AvgPrice:      cost.Div(qty),
			InvestedValue: cost,
			DayChange:     decimal.Zero,
			DayChangePct:  decimal.Zero,
		}
		return
	}

	oldQty := decimal.NewFromInt(h.Quantity)
	total := h.AvgPrice.Mul(oldQty).
		Add(t.ExecutedPrice.Mul(qty)).
		Add(t.Charges.Total)
	h.Quantity += t.ExecutedQuantity
	h.AvgPrice = total.Div(decimal.NewFromInt(h.Quantity))
	h.InvestedValue = h.InvestedValue.Add(cost)
}

func applySell(p *Portfolio, t broker.Trade) {
	h, ok := p.Holdings[t.Symbol]
	if !ok {
		panic(&IntegrityError{AccountID: p.AccountID, Symbol: t.Symbol, Reason: "sell without a holding"})
	}
	remaining := h.Quantity - t.ExecutedQuantity
	if remaining < 0 {
		panic(&IntegrityError{
			AccountID: p.AccountID,
			Symbol:    t.Symbol,
			Reason:    fmt.Sprintf("holding quantity would be %d", remaining),
		})
	}

	p.Cash = p.Cash.Add(t.TotalValue.Sub(t.Charges.Total))
	if remaining == 0 {
		delete(p.Holdings, t.Symbol)
		return
	}
	h.Quantity = remaining
	h.InvestedValue = h.AvgPrice.Mul(decimal.NewFromInt(remaining))
}

// RealizedPnL is the gain booked by selling t against p's cost basis, net
// of the trade's charges. It is null for buys and unknown symbols.
func RealizedPnL(p *Portfolio, t broker.Trade) decimal.NullDecimal {
	if t.Side != broker.Sell {
		return decimal.NullDecimal{}
	}
	h, ok := p.Holdings[t.Symbol]
	if !ok {
		return decimal.NullDecimal{}
	}
	gain := t.ExecutedPrice.Sub(h.AvgPrice).
		Mul(decimal.NewFromInt(t.ExecutedQuantity)).
		Sub(t.Charges.Total).
		Round(2)
	return decimal.NewNullDecimal(gain)
}

// Revalue marks the holding for q's symbol to q's price and refreshes the
// totals. It reports false when p does not hold the symbol.
func (p *Portfolio) Revalue(q market.Quote) bool {
	h, ok := p.Holdings[market.NormalizeSymbol(q.Symbol)]
	if !ok || !q.Price.IsPositive() {
		return false
	}
	h.refresh(q.Price)
	h.DayChange = q.DayChange()
	h.DayChangePct = q.DayChangePct()
	h.UpdatedAt = q.Time
	if q.Time.After(p.UpdatedAt) {
		p.UpdatedAt = q.Time
	}
	p.Recompute()
	return true
}
