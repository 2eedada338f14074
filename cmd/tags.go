package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newTagsCmd lists the tags followed by the configured session.
func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Lists the tags the session's viewer follows",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			tags, err := appInstance.FollowedTags(cmd.Context())
			if err != nil {
				return err
			}
			for _, tag := range tags {
				fmt.Fprintln(cmd.OutOrStdout(), tag)
			}
			return nil
		}),
	}
}
