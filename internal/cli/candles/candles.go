package candles

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adarshjiiidev/Kagazi/internal/cli/config"
	"github.com/adarshjiiidev/Kagazi/internal/cli/format"
	"github.com/adarshjiiidev/Kagazi/market"
)

func New(rc *config.RootConfig) *cobra.Command {
	var (
		widthStr string
		fromStr  string
		toStr    string
	)

	cmd := &cobra.Command{
		Use:   "candles SYMBOL",
		Short: "List journaled candles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := market.NormalizeSymbol(args[0])
			from, err := parseTime("--from", fromStr, time.Time{})
			if err != nil {
				return err
			}
			to, err := parseTime("--to", toStr, time.Now().UTC().Add(24*time.Hour))
			if err != nil {
				return err
			}
			if !from.Before(to) {
				return fmt.Errorf("--from must be before --to")
			}

			st, err := rc.Open()
			if err != nil {
				return err
			}
			defer st.Close()
			if st.History == nil {
				return fmt.Errorf("candles needs the sqlite journal")
			}

			opts, err := st.Config.Candles.Options(nil)
			if err != nil {
				return err
			}
			width := opts.Width
			if widthStr != "" {
				if width, err = market.ParseWidth(widthStr); err != nil {
					return fmt.Errorf("--width: %w", err)
				}
			}

			cs, err := st.History.ListCandlesBetween(symbol, width, from, to)
			if err != nil {
				return err
			}
			if len(cs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no candles")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", symbol, market.WidthLabel(width))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "START\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
			for _, c := range cs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", c.Start.Format(time.RFC3339),
					format.Price(c.Open), format.Price(c.High), format.Price(c.Low), format.Price(c.Close), c.Volume)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&widthStr, "width", "", `Candle width, "M5" or "5m" (default from config)`)
	cmd.Flags().StringVar(&fromStr, "from", "", "Start time, RFC3339 (inclusive)")
	cmd.Flags().StringVar(&toStr, "to", "", "End time, RFC3339 (exclusive)")
	return cmd
}

func parseTime(flag, s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s: %w", flag, err)
	}
	return t.UTC(), nil
}
