package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adarshjiiidev/Kagazi/internal/cli/candles"
	"github.com/adarshjiiidev/Kagazi/internal/cli/config"
	"github.com/adarshjiiidev/Kagazi/internal/cli/orders"
	"github.com/adarshjiiidev/Kagazi/internal/cli/portfolio"
	"github.com/adarshjiiidev/Kagazi/internal/cli/watch"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func NewRootCmd() *cobra.Command {
	rc := &config.RootConfig{}

	cmd := &cobra.Command{
		Use:           "kagazi",
		Short:         "Kagazi: paper trading with live candles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file, YAML or JSON (optional)")
	cmd.PersistentFlags().StringVar(&rc.DBPath, "db", "", "SQLite ledger database (overrides config)")
	cmd.PersistentFlags().StringVar(&rc.JournalPath, "journal", "", "SQLite journal database (overrides config)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&rc.LogJSON, "log-json", false, "Log as JSON")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return rc.Load()
	}

	cmd.AddCommand(watch.New(rc))
	cmd.AddCommand(orders.New(rc)...)
	cmd.AddCommand(
		portfolio.New(rc),
		candles.New(rc),
		newConfigCmd(rc),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kagazi", Version)
		},
	})

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
