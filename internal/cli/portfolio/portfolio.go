package portfolio

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adarshjiiidev/Kagazi/internal/cli/config"
	"github.com/adarshjiiidev/Kagazi/internal/cli/format"
	"github.com/adarshjiiidev/Kagazi/journal"
	"github.com/adarshjiiidev/Kagazi/portfolio"
)

func New(rc *config.RootConfig) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show cash, holdings and P&L",
		Long: `Show the account's portfolio. The account is opened with the configured
cash on first use. Holdings are marked to the latest known prices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rc.Open()
			if err != nil {
				return err
			}
			defer st.Close()

			acc := account
			if acc == "" {
				acc = st.Config.Account.ID
			}
			p, err := st.Engine.GetPortfolio(cmd.Context(), acc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			Print(out, p, st.Config.Account.Currency)

			if st.History != nil {
				v, err := st.History.LatestValuation(acc)
				switch {
				case errors.Is(err, journal.ErrNoValuation):
				case err != nil:
					st.Log.WithError(err).Warn("read last valuation")
				default:
					fmt.Fprintf(out, "\nlast snapshot %s net worth %s\n",
						v.Time.Format(time.RFC3339), format.Money(v.NetWorth, st.Config.Account.Currency))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account id (default from config)")
	return cmd
}

// Print writes a summary block followed by one row per holding.
func Print(w io.Writer, p *portfolio.Portfolio, currency string) {
	fmt.Fprintf(w, "account    %s (v%d)\n", p.AccountID, p.Version)
	fmt.Fprintf(w, "cash       %s\n", format.Money(p.Cash, currency))
	fmt.Fprintf(w, "invested   %s\n", format.Money(p.TotalInvested, currency))
	fmt.Fprintf(w, "value      %s\n", format.Money(p.CurrentValue, currency))
	fmt.Fprintf(w, "net worth  %s\n", format.Money(p.NetWorth(), currency))
	fmt.Fprintf(w, "total P&L  %s (%s)\n", format.Signed(p.TotalPnL, currency), format.Pct(p.TotalPnLPct))
	fmt.Fprintf(w, "day P&L    %s (%s)\n", format.Signed(p.DayPnL, currency), format.Pct(p.DayPnLPct))

	if len(p.Holdings) == 0 {
		fmt.Fprintln(w, "\nno holdings")
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG\tLTP\tINVESTED\tVALUE\tP&L\tP&L%\tDAY%\t")
	for _, sym := range p.Symbols() {
		h := p.Holdings[sym]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			h.Symbol, h.Quantity, format.Price(h.AvgPrice), format.Price(h.CurrentPrice),
			format.Money(h.InvestedValue, currency), format.Money(h.CurrentValue, currency),
			format.Signed(h.PnL, currency), format.Pct(h.PnLPct), format.Pct(h.DayChangePct))
	}
	_ = tw.Flush()
}
