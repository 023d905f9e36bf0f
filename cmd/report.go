package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"orgcommits/aggregate"
	"orgcommits/config"
	"orgcommits/export"
	"orgcommits/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Print statistics for a previously exported CSV or Parquet file.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().String("author", "", "Keep only commits whose author resembles this name")
	reportCmd.Flags().Int("top", config.DefaultTopCommits, "Number of largest commits to report")
}

func runReport(cmd *cobra.Command, args []string) error {
	commits, err := export.Load(args[0])
	if err != nil {
		return err
	}

	author, _ := cmd.Flags().GetString("author")
	top, _ := cmd.Flags().GetInt("top")

	commits = aggregate.FilterByAuthor(commits, author)
	if len(commits) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No commits found")
		return err
	}

	p := report.NewPrinter(cmd.OutOrStdout(), !color.NoColor)
	if err := p.Statistics(aggregate.Aggregate(commits)); err != nil {
		return err
	}
	if err := p.LargestCommits(commits, top); err != nil {
		return err
	}
	return p.Timeline(aggregate.Timeline(commits), report.TimelineDays)
}
