package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/adarshjiiidev/Kagazi/market"
)

var (
	candleHeader    = []string{"symbol", "start", "width_seconds", "open", "high", "low", "close", "volume"}
	valuationHeader = []string{"account_id", "time", "cash", "invested", "current_value", "net_worth", "total_pnl", "day_pnl", "holdings"}
)

// CSVJournal appends to two CSV files. Headers are written only when a
// file is new or empty, so a journal can be reopened and continued.
type CSVJournal struct {
	mu         sync.Mutex
	candles    *csv.Writer
	valuations *csv.Writer
	cf, vf     *os.File
}

func NewCSV(candlesPath, valuationsPath string) (*CSVJournal, error) {
	cf, cw, err := openAppend(candlesPath, candleHeader)
	if err != nil {
		return nil, err
	}
	vf, vw, err := openAppend(valuationsPath, valuationHeader)
	if err != nil {
		_ = cf.Close()
		return nil, err
	}
	return &CSVJournal{candles: cw, valuations: vw, cf: cf, vf: vf}, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("write header to %s: %w", path, err)
		}
	}
	return f, w, nil
}

func (j *CSVJournal) RecordCandle(c market.Candle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRow(j.candles, []string{
		c.Symbol,
		c.Start.UTC().Format(time.RFC3339),
		strconv.FormatInt(int64(c.Width.Seconds()), 10),
		c.Open.String(),
		c.High.String(),
		c.Low.String(),
		c.Close.String(),
		strconv.FormatInt(c.Volume, 10),
	})
}

func (j *CSVJournal) RecordValuation(v ValuationSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRow(j.valuations, []string{
		v.AccountID,
		v.Time.UTC().Format(time.RFC3339Nano),
		v.Cash.String(),
		v.Invested.String(),
		v.CurrentValue.String(),
		v.NetWorth.String(),
		v.TotalPnL.String(),
		v.DayPnL.String(),
		strconv.Itoa(v.Holdings),
	})
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.candles.Flush()
	if err := j.candles.Error(); err != nil {
		return err
	}
	j.valuations.Flush()
	if err := j.valuations.Error(); err != nil {
		return err
	}

	if err := j.cf.Close(); err != nil {
		return err
	}
	return j.vf.Close()
}
