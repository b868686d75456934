package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adarshjiiidev/Kagazi/market"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordCandle(c market.Candle) error {
	_, err := j.db.Exec(`
		INSERT OR IGNORE INTO candles
		(symbol, start, width_seconds, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Symbol, c.Start.UTC(), int64(c.Width.Seconds()),
		c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume,
	)
	return err
}

func (j *SQLite) RecordValuation(v ValuationSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO valuations
		(account_id, time, cash, invested, current_value, net_worth, total_pnl, day_pnl, holdings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.AccountID, v.Time.UTC(),
		v.Cash.String(), v.Invested.String(), v.CurrentValue.String(), v.NetWorth.String(),
		v.TotalPnL.String(), v.DayPnL.String(), v.Holdings,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
