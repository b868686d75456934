package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/portfolio"
)

var t0 = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func candle(symbol string, start time.Time, o, h, l, c string, vol int64) market.Candle {
	return market.Candle{
		Symbol: symbol,
		Start:  start,
		Width:  5 * time.Minute,
		Open:   decimal.RequireFromString(o),
		High:   decimal.RequireFromString(h),
		Low:    decimal.RequireFromString(l),
		Close:  decimal.RequireFromString(c),
		Volume: vol,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('candles','valuations')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["candles"])
	assert.True(t, found["valuations"])
}

func TestSQLiteCandlesRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	first := candle("X", t0, "100", "105", "98", "98", 1200)
	require.NoError(t, j.RecordCandle(candle("X", t0.Add(5*time.Minute), "98", "99", "97.5", "99", 1500)))
	require.NoError(t, j.RecordCandle(first))
	require.NoError(t, j.RecordCandle(candle("Y", t0, "1", "1", "1", "1", 1)))

	// A second copy of a sealed bucket is ignored.
	require.NoError(t, j.RecordCandle(candle("X", t0, "1", "1", "1", "1", 1)))

	got, err := j.ListCandlesBetween("x", 5*time.Minute, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Start.Equal(t0))
	assert.Equal(t, 5*time.Minute, got[0].Width)
	assert.True(t, got[0].High.Equal(first.High))
	assert.Equal(t, "98", got[0].Close.String())
	assert.Equal(t, int64(1200), got[0].Volume)
	assert.Equal(t, "97.5", got[1].Low.String())
}

func TestSQLiteGetHistoricalBounds(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	for i := 0; i < 4; i++ {
		require.NoError(t, j.RecordCandle(candle("X", t0.Add(time.Duration(i)*5*time.Minute), "1", "2", "1", "2", 0)))
	}

	var src market.HistorySource = j
	got, err := src.GetHistorical(context.Background(), "X", t0.Add(5*time.Minute), t0.Add(15*time.Minute), 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 2, "start inclusive, end exclusive")
	assert.True(t, got[0].Start.Equal(t0.Add(5*time.Minute)))

	other, err := src.GetHistorical(context.Background(), "X", t0, t0.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteValuations(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	_, err := j.LatestValuation("acc")
	assert.ErrorIs(t, err, ErrNoValuation)

	p := portfolio.New("acc", decimal.RequireFromString("998999.46"), t0)
	require.NoError(t, j.RecordValuation(Snapshot(p, t0)))

	p.Cash = decimal.RequireFromString("1000097.92")
	require.NoError(t, j.RecordValuation(Snapshot(p, t0.Add(time.Minute))))

	v, err := j.LatestValuation("acc")
	require.NoError(t, err)
	assert.Equal(t, "1000097.92", v.Cash.String())
	assert.Equal(t, "1000097.92", v.NetWorth.String())
	assert.True(t, v.Time.Equal(t0.Add(time.Minute)))
	assert.Equal(t, 0, v.Holdings)
}

var (
	_ market.QuoteSource   = (*SQLite)(nil)
	_ market.HistorySource = (*SQLite)(nil)
	_ Journal              = (*SQLite)(nil)
)

func TestSQLiteLatestCandleAsQuote(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	_, err := j.GetQuote(ctx, "INFY")
	assert.ErrorIs(t, err, market.ErrQuoteNotFound)

	require.NoError(t, j.RecordCandle(candle("INFY", t0, "100", "102", "99", "101", 10)))
	require.NoError(t, j.RecordCandle(candle("INFY", t0.Add(5*time.Minute), "101", "105", "100", "104", 20)))
	require.NoError(t, j.RecordCandle(candle("TCS", t0.Add(time.Hour), "1", "1", "1", "1", 1)))

	c, err := j.LatestCandle(ctx, "infy")
	require.NoError(t, err)
	assert.True(t, c.Start.Equal(t0.Add(5*time.Minute)))
	assert.Equal(t, "104", c.Close.String())

	q, err := j.GetQuote(ctx, "INFY")
	require.NoError(t, err)
	require.NoError(t, q.Validate())
	assert.Equal(t, "104", q.Price.String())
	assert.True(t, q.Time.Equal(t0.Add(10*time.Minute)))
}
