package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrQuoteNotFound is returned by a QuoteSource that does not know the symbol.
var ErrQuoteNotFound = errors.New("quote not found")

// QuoteSource supplies point-in-time quote snapshots.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// HistorySource supplies historical OHLCV bars of the given width.
type HistorySource interface {
	GetHistorical(ctx context.Context, symbol string, start, end time.Time, width time.Duration) ([]Candle, error)
}

type MarketState string

const (
	StateRegular MarketState = "REGULAR"
	StatePre     MarketState = "PRE"
	StatePost    MarketState = "POST"
	StateClosed  MarketState = "CLOSED"
)

func ParseMarketState(s string) (MarketState, error) {
	switch st := MarketState(strings.ToUpper(strings.TrimSpace(s))); st {
	case StateRegular, StatePre, StatePost, StateClosed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown market state %q", s)
	}
}

// Quote is an immutable snapshot of a symbol as reported by the quote source.
// Open/High/Low/PrevClose are day-level figures; zero means the source did not
// report them. Volume is the cumulative volume for the day.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	PrevClose decimal.Decimal
	Volume    int64
	State     MarketState
	Time      time.Time
}

// Validate rejects snapshots that must never reach the aggregator or the ledger.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Symbol) == "" {
		return errors.New("quote: symbol is required")
	}
	if !q.Price.IsPositive() {
		return fmt.Errorf("quote %s: price must be positive, got %s", q.Symbol, q.Price)
	}
	for name, v := range map[string]decimal.Decimal{
		"open": q.Open, "high": q.High, "low": q.Low, "prev_close": q.PrevClose,
	} {
		if v.IsNegative() {
			return fmt.Errorf("quote %s: %s must not be negative, got %s", q.Symbol, name, v)
		}
	}
	if q.Volume < 0 {
		return fmt.Errorf("quote %s: volume must not be negative, got %d", q.Symbol, q.Volume)
	}
	if _, err := ParseMarketState(string(q.State)); err != nil {
		return fmt.Errorf("quote %s: %w", q.Symbol, err)
	}
	if q.Time.IsZero() {
		return fmt.Errorf("quote %s: timestamp is required", q.Symbol)
	}
	return nil
}

// DayChange is the per-share move against the previous close.
func (q Quote) DayChange() decimal.Decimal {
	if !q.PrevClose.IsPositive() {
		return decimal.Zero
	}
	return q.Price.Sub(q.PrevClose)
}

// DayChangePct is DayChange as a percentage of the previous close.
func (q Quote) DayChangePct() decimal.Decimal {
	if !q.PrevClose.IsPositive() {
		return decimal.Zero
	}
	return q.DayChange().Div(q.PrevClose).Mul(decimal.NewFromInt(100)).Round(2)
}

// NormalizeSymbol is the canonical form used as a map and storage key.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
