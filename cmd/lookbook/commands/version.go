package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/lookbook/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lookbook %s\n", version.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", version.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built:  %s\n", version.Date)
		},
	}
}
