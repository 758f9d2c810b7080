package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the 'version' command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		Short:                 "Show amari-proxy version",
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if version == "" {
				version = "dev"
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "amari-proxy version "+version)
		},
	}
}
