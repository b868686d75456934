package orders

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/internal/cli/config"
	"github.com/adarshjiiidev/Kagazi/internal/cli/format"
	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/sim"
)

// New returns the order, cancel and trades commands.
func New(rc *config.RootConfig) []*cobra.Command {
	return []*cobra.Command{newOrderCmd(rc), newCancelCmd(rc), newTradesCmd(rc)}
}

func newOrderCmd(rc *config.RootConfig) *cobra.Command {
	var (
		account string
		limit   string
		stop    string
		price   string
	)

	cmd := &cobra.Command{
		Use:   "order buy|sell SYMBOL QTY",
		Short: "Place a paper order",
		Long: `Place a paper order against the account.

Without --limit or --stop the order is a MARKET order and executes at once
against the reference price. --limit makes it a LIMIT order that rests until
a watched quote reaches it. --stop alone or with --limit rests until
cancelled.

The reference price is --price when given, otherwise the close of the last
journaled candle for the symbol.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := broker.ParseSide(args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("quantity must be a whole number: %q", args[2])
			}
			req := broker.OrderRequest{
				Symbol:   market.NormalizeSymbol(args[1]),
				Side:     side,
				Kind:     broker.Market,
				Quantity: qty,
			}
			if req.LimitPrice, err = optionalDecimal("--limit", limit); err != nil {
				return err
			}
			if req.StopPrice, err = optionalDecimal("--stop", stop); err != nil {
				return err
			}
			switch {
			case limit != "" && stop != "":
				req.Kind = broker.StopLimit
			case limit != "":
				req.Kind = broker.Limit
			case stop != "":
				req.Kind = broker.Stop
			}

			st, err := rc.Open()
			if err != nil {
				return err
			}
			defer st.Close()

			if price != "" {
				px, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("--price: %w", err)
				}
				st.Quotes.Set(market.Quote{Symbol: req.Symbol, Price: px, State: market.StateRegular, Time: time.Now().UTC()})
			}

			acc := accountOr(account, st)
			r, err := st.Engine.PlaceOrder(cmd.Context(), acc, req)
			var ve *sim.ValidationError
			if errors.As(err, &ve) {
				out := cmd.ErrOrStderr()
				fmt.Fprintln(out, "order rejected:")
				for _, e := range ve.Errors {
					fmt.Fprintf(out, "  - %s\n", e)
				}
				if req.Side == broker.Buy {
					fmt.Fprintf(out, "cash covers at most %d share(s)\n", ve.Affordable)
				}
				return fmt.Errorf("%d validation error(s)", len(ve.Errors))
			}
			if err != nil {
				if sim.IsRetryable(err) {
					return fmt.Errorf("%w (safe to retry)", err)
				}
				return err
			}

			printReceipt(cmd.OutOrStdout(), r, st.Config.Account.Currency)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account id (default from config)")
	cmd.Flags().StringVar(&limit, "limit", "", "Limit price")
	cmd.Flags().StringVar(&stop, "stop", "", "Stop price")
	cmd.Flags().StringVar(&price, "price", "", "Reference price to trade against")
	return cmd
}

func newCancelCmd(rc *config.RootConfig) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "cancel TRADE_ID",
		Short: "Cancel a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rc.Open()
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := st.Engine.CancelOrder(cmd.Context(), accountOr(account, st), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", t.ID, t.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account id (default from config)")
	return cmd
}

func newTradesCmd(rc *config.RootConfig) *cobra.Command {
	var (
		account string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List the account's trades, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rc.Open()
			if err != nil {
				return err
			}
			defer st.Close()

			trades, err := st.Engine.ListTrades(cmd.Context(), accountOr(account, st), limit)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no trades")
				return nil
			}
			printTrades(cmd.OutOrStdout(), trades, st.Config.Account.Currency)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account id (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of trades")
	return cmd
}

func accountOr(flag string, st *config.Stack) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return st.Config.Account.ID
}

func optionalDecimal(name, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func printReceipt(w io.Writer, r sim.Receipt, currency string) {
	t := r.Trade
	fmt.Fprintf(w, "trade    %s\n", r.TradeID)
	fmt.Fprintf(w, "order    %s %s %d %s\n", t.Kind, t.Side, t.Quantity, t.Symbol)
	fmt.Fprintf(w, "status   %s\n", r.Status)
	if r.Status == broker.StatusExecuted {
		fmt.Fprintf(w, "price    %s (reference %s)\n", format.Price(r.ExecutedPrice), format.Price(t.Price))
		fmt.Fprintf(w, "value    %s\n", format.Money(t.TotalValue, currency))
		fmt.Fprintf(w, "charges  %s\n", format.Money(r.Charges.Total, currency))
		if r.RealizedPnL.Valid {
			fmt.Fprintf(w, "realized %s\n", format.Signed(r.RealizedPnL.Decimal, currency))
		}
	}
	if t.Note != "" {
		fmt.Fprintf(w, "note     %s\n", t.Note)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning  %s\n", warn)
	}
}

func printTrades(w io.Writer, trades []broker.Trade, currency string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSIDE\tKIND\tSYMBOL\tQTY\tPRICE\tCHARGES\tSTATUS")
	for _, t := range trades {
		px := "-"
		if t.Status == broker.StatusExecuted {
			px = format.Price(t.ExecutedPrice)
		} else if t.LimitPrice.IsPositive() {
			px = "@" + format.Price(t.LimitPrice)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			t.ID, t.CreatedAt.Format(time.RFC3339), t.Side, t.Kind, t.Symbol, t.Quantity,
			px, format.Money(t.Charges.Total, currency), t.Status)
	}
	_ = tw.Flush()
}
