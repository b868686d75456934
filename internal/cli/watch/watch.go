package watch

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adarshjiiidev/Kagazi/internal/cli/config"
	"github.com/adarshjiiidev/Kagazi/internal/cli/format"
	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/pricing"
	"github.com/adarshjiiidev/Kagazi/replay"
)

func New(rc *config.RootConfig) *cobra.Command {
	var (
		replayPath string
		poll       bool
		backfill   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [SYMBOL...]",
		Short: "Build candles from a quote feed and fill pending orders",
		Long: `Watch feeds quote snapshots through the candle aggregator and the order
engine. Sealed candles are journaled; pending LIMIT orders fill as the
market reaches them; holdings are revalued on every quote.

With --replay alone the recording is played once in file order, scripted
orders included. Adding --poll serves the recording as a live source and
polls the given symbols until the recording runs out or the session ends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if replayPath == "" {
				return fmt.Errorf("--replay is required")
			}
			events, err := replay.LoadFile(replayPath)
			if err != nil {
				return fmt.Errorf("load recording: %w", err)
			}

			st, err := rc.Open()
			if err != nil {
				return err
			}
			defer st.Close()

			opts, err := st.Config.Candles.Options(st.Log)
			if err != nil {
				return err
			}
			agg, err := pricing.NewAggregator(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			src := replay.NewSource(events)
			symbols := args
			if len(symbols) == 0 {
				symbols = src.Symbols()
			}

			out := cmd.OutOrStdout()
			w := &watcher{st: st, out: out, log: st.Log.WithField("component", "watch")}

			if backfill > 0 {
				w.backfill(ctx, agg, symbols, startOf(events, poll).Add(-backfill), startOf(events, poll))
			}

			if !poll {
				sum, err := replay.Run(ctx, events, agg, st.Engine, replay.Options{
					Account:  st.Config.Account.ID,
					Quotes:   st.Quotes,
					OnUpdate: w.print,
					Logger:   st.Log,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "replayed %d quotes (%d ignored), %d candles sealed, %d orders (%d rejected), %d fills\n",
					sum.Quotes, sum.Ignored, sum.Sealed, sum.Orders, sum.Rejected, sum.Fills)
			} else {
				popts, err := st.Config.Poller.Options(st.Log)
				if err != nil {
					return err
				}
				// The recording repeats its last quote forever; stop once
				// every symbol has been served its last one.
				pctx, cancel := context.WithCancel(ctx)
				defer cancel()
				sink := func(ctx context.Context, q market.Quote, u pricing.CandleUpdate) {
					w.sink(ctx, q, u)
					if src.Exhausted() {
						cancel()
					}
				}
				if err := pricing.NewPoller(src, agg, sink, popts).Run(pctx, symbols); err != nil {
					return err
				}
			}

			for _, sym := range symbols {
				if c, ok := agg.Current(sym); ok {
					fmt.Fprintf(out, "%s open candle %s\n", sym, candleLine(c))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&replayPath, "replay", "", "JSON-lines quote recording")
	cmd.Flags().BoolVar(&poll, "poll", false, "Poll the recording as a live source instead of replaying it")
	cmd.Flags().DurationVar(&backfill, "backfill", 0, "Seed history from journaled candles this far back")
	return cmd
}

type watcher struct {
	st  *config.Stack
	out io.Writer
	log logrus.FieldLogger
}

// sink is the poller path: the quote also reaches the engine here.
func (w *watcher) sink(ctx context.Context, q market.Quote, u pricing.CandleUpdate) {
	w.print(ctx, q, u)
	w.st.Quotes.Set(q)
	fills, err := w.st.Engine.OnQuote(ctx, q)
	if err != nil {
		w.log.WithError(err).WithField("symbol", q.Symbol).Warn("quote not applied to ledger")
	}
	for _, r := range fills {
		fmt.Fprintf(w.out, "filled %s %s %d %s @ %s\n",
			r.TradeID, r.Trade.Side, r.ExecutedQuantity, r.Trade.Symbol, format.Price(r.ExecutedPrice))
	}
}

func (w *watcher) print(_ context.Context, q market.Quote, u pricing.CandleUpdate) {
	if u.Sealed != nil {
		w.journal(*u.Sealed)
		fmt.Fprintf(w.out, "%s sealed %s\n", u.Symbol, candleLine(*u.Sealed))
	}
	if u.Kind == pricing.SessionEnded {
		fmt.Fprintf(w.out, "%s session ended\n", u.Symbol)
	}
}

func (w *watcher) journal(c market.Candle) {
	if err := w.st.Journal.RecordCandle(c); err != nil {
		w.log.WithError(err).WithField("symbol", c.Symbol).Warn("journal candle failed")
	}
}

func (w *watcher) backfill(ctx context.Context, agg *pricing.Aggregator, symbols []string, from, to time.Time) {
	if w.st.History == nil {
		w.log.Warn("backfill needs the sqlite journal, skipped")
		return
	}
	for _, sym := range symbols {
		cs, err := w.st.History.GetHistorical(ctx, sym, from, to, agg.Width())
		if err != nil {
			w.log.WithError(err).WithField("symbol", sym).Warn("backfill failed")
			continue
		}
		n := agg.Backfill(sym, cs)
		w.log.WithFields(logrus.Fields{"symbol": sym, "candles": n}).Info("backfilled")
	}
}

// startOf is where history ends: the first recorded quote when replaying,
// now when polling.
func startOf(events []replay.Event, poll bool) time.Time {
	if !poll {
		for _, ev := range events {
			if ev.Quote != nil {
				return ev.Quote.Time
			}
		}
	}
	return time.Now()
}

func candleLine(c market.Candle) string {
	return fmt.Sprintf("%s %s O %s H %s L %s C %s V %d",
		market.WidthLabel(c.Width), c.Start.Format(time.RFC3339), format.Price(c.Open), format.Price(c.High),
		format.Price(c.Low), format.Price(c.Close), c.Volume)
}
