// Package portfolio is the per-account ledger: cash plus holdings, and the
// running totals derived from them.
package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Holding is an account's position in one symbol.
type Holding struct {
	Symbol        string
	Quantity      int64
	AvgPrice      decimal.Decimal // cost basis per share, charges included
	CurrentPrice  decimal.Decimal
	InvestedValue decimal.Decimal
	CurrentValue  decimal.Decimal
	PnL           decimal.Decimal
	PnLPct        decimal.Decimal
	DayChange     decimal.Decimal // per share
	DayChangePct  decimal.Decimal
	UpdatedAt     time.Time
}

// Portfolio is the aggregate root of one account. Cash and Holdings only
// change together, through Apply.
type Portfolio struct {
	AccountID     string
	Cash          decimal.Decimal
	TotalInvested decimal.Decimal
	CurrentValue  decimal.Decimal
	TotalPnL      decimal.Decimal
	TotalPnLPct   decimal.Decimal
	DayPnL        decimal.Decimal
	DayPnLPct     decimal.Decimal
	Holdings      map[string]*Holding

	// Version is bumped by the store on every successful save.
	Version   int64
	UpdatedAt time.Time
}

// New returns an empty portfolio holding only cash.
func New(accountID string, cash decimal.Decimal, now time.Time) *Portfolio {
	return &Portfolio{
		AccountID:     accountID,
		Cash:          cash,
		TotalInvested: decimal.Zero,
		CurrentValue:  decimal.Zero,
		TotalPnL:      decimal.Zero,
		TotalPnLPct:   decimal.Zero,
		DayPnL:        decimal.Zero,
		DayPnLPct:     decimal.Zero,
		Holdings:      make(map[string]*Holding),
		UpdatedAt:     now,
	}
}

// Clone is a deep copy; mutating it never affects p.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.Holdings = make(map[string]*Holding, len(p.Holdings))
	for sym, h := range p.Holdings {
		hc := *h
		c.Holdings[sym] = &hc
	}
	return &c
}

// Lookup returns the holding for symbol, if any.
func (p *Portfolio) Lookup(symbol string) (Holding, bool) {
	h, ok := p.Holdings[symbol]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// Symbols lists held symbols in sorted order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Holdings))
	for sym := range p.Holdings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// NetWorth is cash plus the market value of all holdings.
func (p *Portfolio) NetWorth() decimal.Decimal {
	return p.Cash.Add(p.CurrentValue)
}

// Recompute rebuilds the portfolio totals from its holdings.
func (p *Portfolio) Recompute() {
	invested := decimal.Zero
	current := decimal.Zero
	day := decimal.Zero
	for _, h := range p.Holdings {
		invested = invested.Add(h.InvestedValue)
		current = current.Add(h.CurrentValue)
		day = day.Add(h.DayChange.Mul(decimal.NewFromInt(h.Quantity)))
	}
	p.TotalInvested = invested
	p.CurrentValue = current
	p.TotalPnL = current.Sub(invested)
	p.TotalPnLPct = pct(p.TotalPnL, invested)
	p.DayPnL = day
	p.DayPnLPct = pct(day, current)
}

// refresh recomputes a holding's market-derived fields at price.
func (h *Holding) refresh(price decimal.Decimal) {
	qty := decimal.NewFromInt(h.Quantity)
	h.CurrentPrice = price
	h.CurrentValue = price.Mul(qty)
	h.PnL = h.CurrentValue.Sub(h.InvestedValue)
	h.PnLPct = pct(h.PnL, h.InvestedValue)
}

// pct is num/den*100 rounded to 2 dp, or zero when den is zero.
func pct(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred).Round(2)
}
