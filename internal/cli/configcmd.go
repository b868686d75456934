package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adarshjiiidev/Kagazi/internal/cli/config"
)

// newConfigCmd prints the effective configuration, or writes it to a file
// that can be edited and passed back with --config.
func newConfigCmd(rc *config.RootConfig) *cobra.Command {
	var write string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or write the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if write != "" {
				if err := rc.Config.SaveToFile(write); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", write)
				return nil
			}
			data, err := yaml.Marshal(rc.Config)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "Write to this path instead (.yaml/.yml for YAML, otherwise JSON)")
	return cmd
}
