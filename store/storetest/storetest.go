// Package storetest is a behaviour suite every store.Store implementation
// must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/portfolio"
	"github.com/adarshjiiidev/Kagazi/store"
)

var base = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Trade builds an executed BUY with distinct, millisecond-aligned timestamps.
func Trade(id, account, symbol string, n int) broker.Trade {
	at := base.Add(time.Duration(n) * time.Second)
	return broker.Trade{
		ID:               id,
		AccountID:        account,
		Symbol:           symbol,
		Side:             broker.Buy,
		Kind:             broker.Market,
		Quantity:         10,
		Price:            d("100"),
		Status:           broker.StatusExecuted,
		ExecutedQuantity: 10,
		ExecutedPrice:    d("100.05"),
		TotalValue:       d("1000.5"),
		Charges: broker.Charges{
			Brokerage:      d("0.3"),
			ExchangeFee:    d("0.03"),
			ConsumptionTax: d("0.06"),
			StampDuty:      d("0.15"),
			TransactionTax: decimal.Zero,
			RegulatorFee:   decimal.Zero,
			Total:          d("0.54"),
		},
		CreatedAt:  at,
		ExecutedAt: at,
	}
}

// Portfolio builds an account holding one position.
func Portfolio(account string) *portfolio.Portfolio {
	p := portfolio.New(account, d("998999.46"), base)
	p.Holdings["X"] = &portfolio.Holding{
		Symbol:        "X",
		Quantity:      10,
		AvgPrice:      d("100.054"),
		CurrentPrice:  d("100"),
		InvestedValue: d("1000.54"),
		CurrentValue:  d("1000"),
		PnL:           d("-0.54"),
		PnLPct:        d("-0.05"),
		DayChange:     decimal.Zero,
		DayChangePct:  decimal.Zero,
		UpdatedAt:     base,
	}
	p.Recompute()
	return p
}

func commit(t *testing.T, s store.Store, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	t.Helper()
	ctx := context.Background()
	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	if err := fn(ctx, uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("trade round trip", func(t *testing.T) {
		s := newStore(t)
		tr := Trade("T1", "acc", "X", 0)
		tr.RealizedPnL = decimal.NewNullDecimal(d("12.34"))
		tr.Note = "hello"

		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Trades().Save(ctx, &tr)
		}))

		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			got, err := uow.Trades().FindByID(ctx, "T1")
			require.NoError(t, err)
			assert.Equal(t, tr.Symbol, got.Symbol)
			assert.Equal(t, broker.StatusExecuted, got.Status)
			assert.True(t, got.ExecutedPrice.Equal(tr.ExecutedPrice))
			assert.True(t, got.Charges.Total.Equal(d("0.54")))
			assert.True(t, got.Charges.StampDuty.Equal(d("0.15")))
			assert.True(t, got.RealizedPnL.Valid)
			assert.True(t, got.RealizedPnL.Decimal.Equal(d("12.34")))
			assert.True(t, got.CreatedAt.Equal(tr.CreatedAt))
			assert.Equal(t, "hello", got.Note)
			return nil
		}))
	})

	t.Run("trade not found", func(t *testing.T) {
		s := newStore(t)
		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			_, err := uow.Trades().FindByID(ctx, "missing")
			assert.ErrorIs(t, err, store.ErrNotFound)
			return nil
		})
	})

	t.Run("trade save replaces", func(t *testing.T) {
		s := newStore(t)
		tr := Trade("T1", "acc", "X", 0)
		tr.Status = broker.StatusPending
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Trades().Save(ctx, &tr)
		}))
		tr.Status = broker.StatusCancelled
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Trades().Save(ctx, &tr)
		}))
		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			got, err := uow.Trades().FindByID(ctx, "T1")
			require.NoError(t, err)
			assert.Equal(t, broker.StatusCancelled, got.Status)
			assert.False(t, got.RealizedPnL.Valid)
			return nil
		})
	})

	t.Run("history newest first with limit", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			for i := 0; i < 5; i++ {
				tr := Trade(fmt.Sprintf("T%d", i), "acc", "X", i)
				if err := uow.Trades().Save(ctx, &tr); err != nil {
					return err
				}
			}
			other := Trade("O1", "other", "X", 9)
			return uow.Trades().Save(ctx, &other)
		}))

		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			got, err := uow.Trades().ListByAccount(ctx, "acc", 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, []string{"T4", "T3", "T2"}, []string{got[0].ID, got[1].ID, got[2].ID})

			all, err := uow.Trades().ListByAccount(ctx, "acc", 0)
			require.NoError(t, err)
			assert.Len(t, all, 5)
			return nil
		})
	})

	t.Run("pending by symbol oldest first", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			for i, sym := range []string{"X", "Y", "X"} {
				tr := Trade(fmt.Sprintf("P%d", i), "acc", sym, 3-i)
				tr.Status = broker.StatusPending
				if err := uow.Trades().Save(ctx, &tr); err != nil {
					return err
				}
			}
			done := Trade("E1", "acc", "X", 0)
			return uow.Trades().Save(ctx, &done)
		}))

		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			xs, err := uow.Trades().ListPending(ctx, "X")
			require.NoError(t, err)
			require.Len(t, xs, 2)
			assert.Equal(t, "P2", xs[0].ID)
			assert.Equal(t, "P0", xs[1].ID)

			all, err := uow.Trades().ListPending(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
			return nil
		})
	})

	t.Run("portfolio round trip and version", func(t *testing.T) {
		s := newStore(t)
		p := Portfolio("acc")
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Portfolios().Save(ctx, p)
		}))
		assert.Equal(t, int64(1), p.Version)

		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			got, err := uow.Portfolios().Find(ctx, "acc")
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.Version)
			assert.True(t, got.Cash.Equal(d("998999.46")))
			assert.True(t, got.TotalInvested.Equal(d("1000.54")))
			h, ok := got.Lookup("X")
			require.True(t, ok)
			assert.Equal(t, int64(10), h.Quantity)
			assert.True(t, h.AvgPrice.Equal(d("100.054")))
			assert.True(t, got.UpdatedAt.Equal(base))
			return nil
		})

		// Selling out removes the holding row.
		next := p.Clone()
		delete(next.Holdings, "X")
		next.Cash = d("1000097.92")
		next.Recompute()
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Portfolios().Save(ctx, next)
		}))
		assert.Equal(t, int64(2), next.Version)

		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			got, err := uow.Portfolios().Find(ctx, "acc")
			require.NoError(t, err)
			assert.Empty(t, got.Holdings)
			assert.True(t, got.Cash.Equal(d("1000097.92")))
			return nil
		})
	})

	t.Run("portfolio not found", func(t *testing.T) {
		s := newStore(t)
		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			_, err := uow.Portfolios().Find(ctx, "nobody")
			assert.ErrorIs(t, err, store.ErrNotFound)
			return nil
		})
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		s := newStore(t)
		p := Portfolio("acc")
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Portfolios().Save(ctx, p)
		}))

		stale := p.Clone()
		fresh := p.Clone()
		fresh.Cash = d("1")
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Portfolios().Save(ctx, fresh)
		}))

		stale.Cash = d("2")
		err := commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Portfolios().Save(ctx, stale)
		})
		assert.ErrorIs(t, err, store.ErrConflict)

		// Creating an account twice conflicts too.
		dup := Portfolio("acc")
		err = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Portfolios().Save(ctx, dup)
		})
		assert.ErrorIs(t, err, store.ErrConflict)

		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			got, err := uow.Portfolios().Find(ctx, "acc")
			require.NoError(t, err)
			assert.True(t, got.Cash.Equal(d("1")))
			return nil
		})
	})

	t.Run("rollback discards trade and portfolio together", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		uow, err := s.Begin(ctx)
		require.NoError(t, err)
		tr := Trade("T1", "acc", "X", 0)
		require.NoError(t, uow.Trades().Save(ctx, &tr))
		require.NoError(t, uow.Portfolios().Save(ctx, Portfolio("acc")))
		require.NoError(t, uow.Rollback())

		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			_, err := uow.Trades().FindByID(ctx, "T1")
			assert.ErrorIs(t, err, store.ErrNotFound)
			_, err = uow.Portfolios().Find(ctx, "acc")
			assert.ErrorIs(t, err, store.ErrNotFound)
			return nil
		})
	})

	t.Run("reads see own writes", func(t *testing.T) {
		s := newStore(t)
		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			tr := Trade("T1", "acc", "X", 0)
			require.NoError(t, uow.Trades().Save(ctx, &tr))
			require.NoError(t, uow.Portfolios().Save(ctx, Portfolio("acc")))

			got, err := uow.Trades().ListByAccount(ctx, "acc", 10)
			require.NoError(t, err)
			assert.Len(t, got, 1)
			p, err := uow.Portfolios().Find(ctx, "acc")
			require.NoError(t, err)
			assert.Equal(t, int64(1), p.Version)
			return nil
		})
	})

	t.Run("holders of a symbol", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			for _, acc := range []string{"b", "a"} {
				if err := uow.Portfolios().Save(ctx, Portfolio(acc)); err != nil {
					return err
				}
			}
			return uow.Portfolios().Save(ctx, portfolio.New("empty", d("10"), base))
		}))

		_ = commit(t, s, func(ctx context.Context, uow store.UnitOfWork) error {
			got, err := uow.Portfolios().Holders(ctx, "X")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, got)

			none, err := uow.Portfolios().Holders(ctx, "Y")
			require.NoError(t, err)
			assert.Empty(t, none)
			return nil
		})
	})
}
