package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuote() Quote {
	return Quote{
		Symbol:    "INFY",
		Price:     decimal.NewFromInt(1500),
		PrevClose: decimal.NewFromInt(1480),
		Volume:    1000,
		State:     StateRegular,
		Time:      time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
	}
}

func TestQuoteValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(q *Quote)
		errMsg string
	}{
		{"valid", func(q *Quote) {}, ""},
		{"missing symbol", func(q *Quote) { q.Symbol = " " }, "symbol is required"},
		{"zero price", func(q *Quote) { q.Price = decimal.Zero }, "price must be positive"},
		{"negative high", func(q *Quote) { q.High = decimal.NewFromInt(-1) }, "high must not be negative"},
		{"negative volume", func(q *Quote) { q.Volume = -5 }, "volume must not be negative"},
		{"bad state", func(q *Quote) { q.State = "HALTED" }, "unknown market state"},
		{"no time", func(q *Quote) { q.Time = time.Time{} }, "timestamp is required"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := validQuote()
			tt.mutate(&q)
			err := q.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestQuoteDayChange(t *testing.T) {
	t.Parallel()

	q := validQuote()
	assert.True(t, q.DayChange().Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "1.35", q.DayChangePct().String())

	q.PrevClose = decimal.Zero
	assert.True(t, q.DayChange().IsZero())
	assert.True(t, q.DayChangePct().IsZero())
}

func TestParseMarketState(t *testing.T) {
	t.Parallel()

	st, err := ParseMarketState(" post ")
	require.NoError(t, err)
	assert.Equal(t, StatePost, st)

	_, err = ParseMarketState("open")
	assert.Error(t, err)
}

func TestCandleValid(t *testing.T) {
	t.Parallel()

	c := Candle{
		Open:  decimal.NewFromInt(100),
		High:  decimal.NewFromInt(105),
		Low:   decimal.NewFromInt(98),
		Close: decimal.NewFromInt(99),
	}
	assert.True(t, c.Valid())

	c.Low = decimal.NewFromInt(101)
	assert.False(t, c.Valid())
}

func TestQuoteStore(t *testing.T) {
	t.Parallel()

	s := NewQuoteStore()
	_, err := s.GetQuote(context.Background(), "INFY")
	assert.True(t, errors.Is(err, ErrQuoteNotFound))

	q := validQuote()
	q.Symbol = "infy"
	s.Set(q)

	older := validQuote()
	older.Price = decimal.NewFromInt(1)
	older.Time = q.Time.Add(-time.Minute)
	s.Set(older)

	got, err := s.GetQuote(context.Background(), "INFY")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, []string{"INFY"}, s.Symbols())
}

type failingSource struct{ err error }

func (f failingSource) GetQuote(context.Context, string) (Quote, error) { return Quote{}, f.err }

func TestFirstOf(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := NewQuoteStore()
	fallback := NewQuoteStore()
	q := validQuote()
	fallback.Set(q)

	src := FirstOf(primary, fallback)
	got, err := src.GetQuote(ctx, "infy")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(q.Price))

	q.Price = decimal.NewFromInt(1600)
	q.Time = q.Time.Add(time.Minute)
	primary.Set(q)
	got, err = src.GetQuote(ctx, "INFY")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(1600)))

	_, err = src.GetQuote(ctx, "TCS")
	assert.ErrorIs(t, err, ErrQuoteNotFound)

	boom := errors.New("provider down")
	_, err = FirstOf(failingSource{boom}, fallback).GetQuote(ctx, "INFY")
	assert.ErrorIs(t, err, boom)
}
