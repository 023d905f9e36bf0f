// Package report prints collection statistics for humans.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"orgcommits/aggregate"
	"orgcommits/models"
)

// Report limits
const (
	TopRepositories    = 10
	TopAuthors         = 5
	ChangeRepositories = 10
	MessageWidth       = 60
	TimelineDays       = 14
)

// Printer renders statistics and commit tables to a writer.
type Printer struct {
	w     io.Writer
	green func(...any) string
	red   func(...any) string
	bold  func(...any) string
}

// NewPrinter creates a Printer. Colors are applied only when useColors is set.
func NewPrinter(w io.Writer, useColors bool) *Printer {
	p := &Printer{w: w, green: fmt.Sprint, red: fmt.Sprint, bold: fmt.Sprint}
	if useColors {
		p.green = color.New(color.FgGreen).SprintFunc()
		p.red = color.New(color.FgRed).SprintFunc()
		p.bold = color.New(color.Bold).SprintFunc()
	}
	return p
}

// Statistics writes the summary, the top repositories and authors, and the
// per-repository change table when change totals are present.
func (p *Printer) Statistics(stats *models.Statistics) error {
	if stats == nil {
		_, err := fmt.Fprintln(p.w, "No statistics available")
		return err
	}

	lines := []string{
		p.bold("Commit collection statistics"),
		fmt.Sprintf("  Total commits:  %s", Thousands(stats.TotalCommits)),
		fmt.Sprintf("  Unique authors: %d", stats.UniqueAuthors),
		fmt.Sprintf("  Repositories:   %d", stats.UniqueRepositories),
		fmt.Sprintf("  Date range:     %s to %s", stats.DateRange.Earliest, stats.DateRange.Latest),
	}
	if ch := stats.Changes; ch != nil {
		lines = append(lines,
			fmt.Sprintf("  Lines added:    %s", Thousands(ch.Additions)),
			fmt.Sprintf("  Lines deleted:  %s", Thousands(ch.Deletions)),
			fmt.Sprintf("  Net change:     %s", p.signed(ch.Net)),
		)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}

	if len(stats.RepositoryBreakdown) > 0 {
		if err := p.counts("Top repositories by commit count", "Repository",
			aggregate.Ranked(stats.RepositoryBreakdown, TopRepositories)); err != nil {
			return err
		}
	}

	if len(stats.AuthorBreakdown) > 1 {
		if err := p.counts("Top contributors", "Author",
			aggregate.Ranked(stats.AuthorBreakdown, TopAuthors)); err != nil {
			return err
		}
	}

	if stats.Changes != nil && len(stats.Changes.PerRepository) > 0 {
		return p.changes(aggregate.RankedChanges(stats.Changes, ChangeRepositories))
	}
	return nil
}

func (p *Printer) counts(title, label string, ranked []aggregate.Count) error {
	if _, err := fmt.Fprintf(p.w, "\n%s\n", p.bold(title)); err != nil {
		return err
	}

	table := tablewriter.NewWriter(p.w)
	defer func() { _ = table.Close() }()
	table.Header([]string{label, "Commits"})

	data := make([][]string, 0, len(ranked))
	for _, c := range ranked {
		data = append(data, []string{c.Name, Thousands(c.Commits)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func (p *Printer) changes(ranked []aggregate.RepositoryChange) error {
	if _, err := fmt.Fprintf(p.w, "\n%s\n", p.bold("Repository breakdown with code changes")); err != nil {
		return err
	}

	table := tablewriter.NewWriter(p.w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"Repository", "Commits", "Added", "Deleted", "Net"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(ranked))
	for _, rc := range ranked {
		data = append(data, []string{
			rc.Name,
			Thousands(rc.Commits),
			"+" + Thousands(rc.Additions),
			"-" + Thousands(rc.Deletions),
			p.signed(rc.Net()),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// LargestCommits writes the commits with the most changed lines. It writes
// nothing when no commit has change statistics.
func (p *Printer) LargestCommits(commits []models.Commit, limit int) error {
	top := aggregate.TopByChange(commits, limit)
	if len(top) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(p.w, "\n%s\n", p.bold(fmt.Sprintf("Top %d largest commits", len(top)))); err != nil {
		return err
	}

	table := tablewriter.NewWriter(p.w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"#", "Repository", "SHA", "Changes", "Author", "Message"})

	data := make([][]string, 0, len(top))
	for i, c := range top {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			c.Repository,
			c.SHA,
			fmt.Sprintf("+%s/-%s (total: %s)",
				Thousands(c.Stats.Additions), Thousands(c.Stats.Deletions), Thousands(c.Stats.Total)),
			c.Author,
			Truncate(c.Message, MessageWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// Timeline writes commit counts for the most recent days, newest first.
func (p *Printer) Timeline(timeline map[string]int, days int) error {
	if len(timeline) == 0 {
		return nil
	}

	dates := make([]string, 0, len(timeline))
	for d := range timeline {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if days > 0 && len(dates) > days {
		dates = dates[:days]
	}

	if _, err := fmt.Fprintf(p.w, "\n%s\n", p.bold("Recent activity")); err != nil {
		return err
	}

	table := tablewriter.NewWriter(p.w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"Day", "Commits"})

	data := make([][]string, 0, len(dates))
	for _, d := range dates {
		data = append(data, []string{d, Thousands(timeline[d])})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func (p *Printer) signed(n int) string {
	switch {
	case n > 0:
		return p.green("+" + Thousands(n))
	case n < 0:
		return p.red(Thousands(n))
	default:
		return "0"
	}
}

// Thousands formats n with comma separators.
func Thousands(n int) string {
	return humanize.Comma(int64(n))
}

// Truncate shortens s to width runes followed by "..." when it is longer.
func Truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width]) + "..."
}
