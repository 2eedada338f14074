package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newIndexCmd scans the output root and reports how many documents it holds.
func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Scans the output root and prints the number of harvested documents",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%d documents under %s\n",
				appInstance.IndexSize(), appInstance.Config().Output.Root)
			return nil
		}),
	}
}
