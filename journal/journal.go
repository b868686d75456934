// Package journal keeps an append-only record of sealed candles and
// portfolio valuations, separate from the ledger itself.
package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/portfolio"
)

// ValuationSnapshot is a portfolio's totals at one instant.
type ValuationSnapshot struct {
	AccountID    string
	Time         time.Time
	Cash         decimal.Decimal
	Invested     decimal.Decimal
	CurrentValue decimal.Decimal
	NetWorth     decimal.Decimal
	TotalPnL     decimal.Decimal
	DayPnL       decimal.Decimal
	Holdings     int
}

// Snapshot captures p's totals.
func Snapshot(p *portfolio.Portfolio, at time.Time) ValuationSnapshot {
	return ValuationSnapshot{
		AccountID:    p.AccountID,
		Time:         at,
		Cash:         p.Cash,
		Invested:     p.TotalInvested,
		CurrentValue: p.CurrentValue,
		NetWorth:     p.NetWorth(),
		TotalPnL:     p.TotalPnL,
		DayPnL:       p.DayPnL,
		Holdings:     len(p.Holdings),
	}
}

type Journal interface {
	// RecordCandle stores a sealed candle. Recording the same bucket twice
	// keeps the first copy.
	RecordCandle(market.Candle) error
	RecordValuation(ValuationSnapshot) error
	Close() error
}
