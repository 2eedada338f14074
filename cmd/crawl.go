// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Harvests the selected tag feeds",
		Long: `Walks each selected tag's feed from cursor 0 in steps of 25 until a page
comes back empty, writing every admitted document that is not already in the
output tree. Tags come from --tag, crawl.tags in the config file, and the
viewer's followed tags when --all is set.`,
		Args: cobra.NoArgs,
		RunE: withApp(runCrawlCommand),
	}
	cmd.Flags().StringSlice("tag", nil, "tag to harvest (repeatable or comma-separated)")
	cmd.Flags().Bool("all", false, "also harvest every tag the session's viewer follows")
	cmd.Flags().Int("min-engagement", 0, "admission threshold on the engagement count")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, appInstance App) error {
	cfg := appInstance.Config()

	tags, err := appInstance.ResolveTags(cmd.Context(), cfg.Crawl.Tags, cfg.Crawl.AllTags)
	if err != nil {
		return err
	}
	appInstance.Logger().Info("crawl starting",
		zap.Strings("tags", tags),
		zap.Int("min_engagement", cfg.Crawl.MinEngagement),
		zap.Int("indexed", appInstance.IndexSize()),
	)

	report, runErr := appInstance.Run(cmd.Context(), tags)
	printSummary(cmd.OutOrStdout(), report)
	if runErr != nil {
		return fmt.Errorf("run crawl: %w", runErr)
	}
	return nil
}

func printSummary(w io.Writer, report crawler.SessionReport) {
	fmt.Fprintf(w, "run %s: %d written across %d tags\n", report.RunID, report.Written(), len(report.Tags))
	for _, tag := range report.Tags {
		fmt.Fprintf(w, "  %-24s pages=%d seen=%d admitted=%d written=%d skipped=%d not_found=%d failed=%d\n",
			tag.Tag, tag.Pages, tag.Seen, tag.Admitted, tag.Written, tag.Skipped, tag.NotFound, tag.Failed)
		if tag.Err != nil {
			fmt.Fprintf(w, "  %-24s stopped at cursor %d: %v\n", "", tag.Cursor(), tag.Err)
		}
	}
}
