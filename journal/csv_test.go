package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	candlesPath := filepath.Join(dir, "candles.csv")
	valuationsPath := filepath.Join(dir, "valuations.csv")

	j, err := NewCSV(candlesPath, valuationsPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{candleHeader}, readCSV(t, candlesPath))
	assert.Equal(t, [][]string{valuationHeader}, readCSV(t, valuationsPath))
}

func TestCSVJournalRecordsAndReopens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	candlesPath := filepath.Join(dir, "candles.csv")
	valuationsPath := filepath.Join(dir, "valuations.csv")

	j, err := NewCSV(candlesPath, valuationsPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordCandle(candle("X", t0, "100", "105", "98", "98", 1200)))
	require.NoError(t, j.RecordValuation(ValuationSnapshot{
		AccountID: "acc",
		Time:      t0,
		Cash:      decimal.RequireFromString("998999.46"),
		NetWorth:  decimal.RequireFromString("999999.46"),
		Holdings:  1,
	}))
	require.NoError(t, j.Close())

	j, err = NewCSV(candlesPath, valuationsPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordCandle(candle("X", t0.Add(5*time.Minute), "98", "99", "97", "99", 1500)))
	require.NoError(t, j.Close())

	rows := readCSV(t, candlesPath)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"X", "2024-03-04T09:30:00Z", "300", "100", "105", "98", "98", "1200"}, rows[1])
	assert.Equal(t, "2024-03-04T09:35:00Z", rows[2][1])

	vals := readCSV(t, valuationsPath)
	require.Len(t, vals, 2)
	assert.Equal(t, "acc", vals[1][0])
	assert.Equal(t, "998999.46", vals[1][2])
	assert.Equal(t, "0", vals[1][3])
	assert.Equal(t, "1", vals[1][8])
}
