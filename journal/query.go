package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/market"
)

var (
	// ErrNoValuation is returned when an account has no journaled valuation.
	ErrNoValuation = errors.New("no valuation recorded")
	ErrNoCandle    = errors.New("no candle recorded")
)

// ListCandlesBetween returns symbol's candles of the given width whose start
// is within [start, end), oldest first.
func (j *SQLite) ListCandlesBetween(symbol string, width time.Duration, start, end time.Time) ([]market.Candle, error) {
	return j.GetHistorical(context.Background(), symbol, start, end, width)
}

// GetHistorical serves journaled candles as a market.HistorySource.
func (j *SQLite) GetHistorical(ctx context.Context, symbol string, start, end time.Time, width time.Duration) ([]market.Candle, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, start, width_seconds, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND width_seconds = ? AND start >= ? AND start < ?
		ORDER BY start ASC`,
		market.NormalizeSymbol(symbol), int64(width.Seconds()), start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestCandle returns symbol's most recent journaled candle of any width.
func (j *SQLite) LatestCandle(ctx context.Context, symbol string) (market.Candle, error) {
	sym := market.NormalizeSymbol(symbol)
	row := j.db.QueryRowContext(ctx, `
		SELECT symbol, start, width_seconds, open, high, low, close, volume
		FROM candles
		WHERE symbol = ?
		ORDER BY start DESC, width_seconds ASC
		LIMIT 1`, sym)

	c, err := scanCandle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Candle{}, fmt.Errorf("%s: %w", sym, ErrNoCandle)
	}
	return c, err
}

// GetQuote serves the close of the latest journaled candle as a quote, so
// orders can be priced offline from what an earlier watch recorded.
func (j *SQLite) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	c, err := j.LatestCandle(ctx, symbol)
	if errors.Is(err, ErrNoCandle) {
		return market.Quote{}, fmt.Errorf("%w: %v", market.ErrQuoteNotFound, err)
	}
	if err != nil {
		return market.Quote{}, err
	}
	return market.Quote{
		Symbol: c.Symbol,
		Price:  c.Close,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Volume: c.Volume,
		State:  market.StateRegular,
		Time:   c.End(),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCandle(row scanner) (market.Candle, error) {
	var (
		c                    market.Candle
		widthSec             int64
		open, high, low, cls string
	)
	if err := row.Scan(&c.Symbol, &c.Start, &widthSec, &open, &high, &low, &cls, &c.Volume); err != nil {
		return market.Candle{}, err
	}
	c.Start = c.Start.UTC()
	c.Width = time.Duration(widthSec) * time.Second

	var err error
	if c.Open, err = decimal.NewFromString(open); err != nil {
		return market.Candle{}, fmt.Errorf("candle %s %s open: %w", c.Symbol, c.Start, err)
	}
	if c.High, err = decimal.NewFromString(high); err != nil {
		return market.Candle{}, fmt.Errorf("candle %s %s high: %w", c.Symbol, c.Start, err)
	}
	if c.Low, err = decimal.NewFromString(low); err != nil {
		return market.Candle{}, fmt.Errorf("candle %s %s low: %w", c.Symbol, c.Start, err)
	}
	if c.Close, err = decimal.NewFromString(cls); err != nil {
		return market.Candle{}, fmt.Errorf("candle %s %s close: %w", c.Symbol, c.Start, err)
	}
	return c, nil
}

// LatestValuation returns the most recent valuation journaled for account.
func (j *SQLite) LatestValuation(accountID string) (ValuationSnapshot, error) {
	row := j.db.QueryRow(`
		SELECT account_id, time, cash, invested, current_value, net_worth, total_pnl, day_pnl, holdings
		FROM valuations
		WHERE account_id = ?
		ORDER BY time DESC, rowid DESC
		LIMIT 1`, accountID)

	var (
		v                                               ValuationSnapshot
		cash, invested, current, worth, total, dayTotal string
	)
	err := row.Scan(&v.AccountID, &v.Time, &cash, &invested, &current, &worth, &total, &dayTotal, &v.Holdings)
	if err != nil {
		if err == sql.ErrNoRows {
			return ValuationSnapshot{}, fmt.Errorf("account %q: %w", accountID, ErrNoValuation)
		}
		return ValuationSnapshot{}, err
	}
	v.Time = v.Time.UTC()

	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&v.Cash, cash}, {&v.Invested, invested}, {&v.CurrentValue, current},
		{&v.NetWorth, worth}, {&v.TotalPnL, total}, {&v.DayPnL, dayTotal},
	} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return ValuationSnapshot{}, fmt.Errorf("valuation for %q: %w", accountID, err)
		}
	}
	return v, nil
}
