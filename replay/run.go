package replay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/pricing"
	"github.com/adarshjiiidev/Kagazi/sim"
)

type Options struct {
	// Account places orders whose line names none.
	Account string
	// Quotes, when set, is updated before each quote reaches the engine so
	// orders placed later in the feed see the replayed price.
	Quotes *market.QuoteStore
	// OnUpdate receives every quote that changed candle state.
	OnUpdate pricing.Sink
	Logger   logrus.FieldLogger
}

// Summary counts what a replay did.
type Summary struct {
	Quotes   int
	Ignored  int
	Sealed   int
	Orders   int
	Rejected int
	Fills    int
	// Sessions counts symbols reopened after a market close.
	Sessions int
}

// Run feeds events in order. Quotes go to agg and, unless the aggregator
// ignored them as stale, to eng.OnQuote when eng is set. Orders go to
// eng.PlaceOrder; rejected orders and orders for symbols not quoted yet are
// counted and logged. Any other engine error stops the replay.
//
// A symbol whose session was closed by a CLOSED quote is reset when a quote
// from a later calendar day arrives, so multi-day recordings keep building
// candles.
func Run(ctx context.Context, events []Event, agg *pricing.Aggregator, eng *sim.Engine, opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	var sum Summary
	closedOn := make(map[string]string)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		lg := log.WithField("line", ev.Line)

		switch {
		case ev.Quote != nil:
			q := *ev.Quote
			sum.Quotes++
			u, err := agg.Ingest(q.Symbol, q, q.Time)
			if err != nil {
				lg.WithError(err).Warn("quote rejected")
				sum.Ignored++
				continue
			}
			if u.Kind == pricing.SessionEnded {
				day := q.Time.In(agg.Location()).Format(time.DateOnly)
				prev, closed := closedOn[u.Symbol]
				switch {
				case q.State == market.StateClosed:
					if !closed {
						closedOn[u.Symbol] = day
					}
				case closed && day > prev:
					agg.Reset(u.Symbol)
					delete(closedOn, u.Symbol)
					sum.Sessions++
					lg.WithField("symbol", u.Symbol).Info("new session")
					if u, err = agg.Ingest(q.Symbol, q, q.Time); err != nil {
						lg.WithError(err).Warn("quote rejected")
						sum.Ignored++
						continue
					}
				}
			}
			if u.Kind == pricing.Ignored {
				sum.Ignored++
				continue
			}
			if opts.OnUpdate != nil {
				opts.OnUpdate(ctx, q, u)
			}
			if u.Sealed != nil {
				sum.Sealed++
			}

			if opts.Quotes != nil {
				opts.Quotes.Set(q)
			}
			if eng != nil {
				fills, err := eng.OnQuote(ctx, q)
				sum.Fills += len(fills)
				if err != nil {
					return sum, err
				}
			}

		case ev.Order != nil:
			if eng == nil {
				continue
			}
			acc := ev.Order.Account
			if acc == "" {
				acc = opts.Account
			}
			sum.Orders++
			r, err := eng.PlaceOrder(ctx, acc, ev.Order.Request)
			var ve *sim.ValidationError
			switch {
			case errors.As(err, &ve):
				sum.Rejected++
				lg.WithField("reasons", ve.Errors).Warn("order rejected")
			case errors.Is(err, sim.ErrQuoteUnavailable):
				sum.Rejected++
				lg.WithError(err).Warn("order skipped")
			case err != nil:
				return sum, err
			case r.Status == broker.StatusExecuted:
				sum.Fills++
			}
		}
	}
	return sum, nil
}
