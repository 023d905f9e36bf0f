// Package export writes commit collections to tabular files and reads them back.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"orgcommits/config"
	"orgcommits/models"
)

// Column names.
const (
	ColTimestamp    = "timestamp"
	ColRepository   = "repository"
	ColBranch       = "branch"
	ColMessage      = "message"
	ColAuthor       = "author"
	ColSHA          = "sha"
	ColAdditions    = "additions"
	ColDeletions    = "deletions"
	ColTotalChanges = "total_changes"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// FieldSet selects the columns written for a collection. It is fixed by the
// run configuration, not inferred from individual commits.
type FieldSet struct {
	Branch bool
	Stats  bool
}

// Field sets used by the collector. Stats exports always carry the branch.
var (
	FieldsBasic      = FieldSet{}
	FieldsWithBranch = FieldSet{Branch: true}
	FieldsWithStats  = FieldSet{Branch: true, Stats: true}
)

// FieldSetFor returns the field set matching a collection run.
func FieldSetFor(includeBranches, includeStats bool) FieldSet {
	switch {
	case includeStats:
		return FieldsWithStats
	case includeBranches:
		return FieldsWithBranch
	default:
		return FieldsBasic
	}
}

// Name returns basic, with_branches or with_stats.
func (f FieldSet) Name() string {
	switch {
	case f.Stats:
		return "with_stats"
	case f.Branch:
		return "with_branches"
	default:
		return "basic"
	}
}

// Columns returns the header of the field set in output order.
func (f FieldSet) Columns() []string {
	cols := []string{ColTimestamp, ColRepository}
	if f.Branch {
		cols = append(cols, ColBranch)
	}
	cols = append(cols, ColMessage, ColAuthor, ColSHA)
	if f.Stats {
		cols = append(cols, ColAdditions, ColDeletions, ColTotalChanges)
	}
	return cols
}

func (f FieldSet) row(c models.Commit) []string {
	row := []string{c.Timestamp, c.Repository}
	if f.Branch {
		row = append(row, c.Branch)
	}
	row = append(row, c.Message, c.Author, c.SHA)
	if f.Stats {
		var s models.ChangeStats
		if c.Stats != nil {
			s = *c.Stats
		}
		row = append(row, strconv.Itoa(s.Additions), strconv.Itoa(s.Deletions), strconv.Itoa(s.Total))
	}
	return row
}

// WriteCSV writes a header and one row per commit.
func WriteCSV(w io.Writer, commits []models.Commit, fields FieldSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields.Columns()); err != nil {
		return err
	}
	for _, c := range commits {
		if err := cw.Write(fields.row(c)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes commits to the file at path, replacing it.
func SaveCSV(path string, commits []models.Commit, fields FieldSet) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteCSV(file, commits, fields); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write csv file: %w", err)
	}
	return file.Close()
}

// ReadCSV parses a file written by WriteCSV. The field set is recovered from
// the header.
func ReadCSV(r io.Reader) ([]models.Commit, FieldSet, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return []models.Commit{}, FieldsBasic, nil
	}
	if err != nil {
		return nil, FieldSet{}, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range FieldsBasic.Columns() {
		if _, ok := index[col]; !ok {
			return nil, FieldSet{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	_, hasBranch := index[ColBranch]
	_, hasAdditions := index[ColAdditions]
	fields := FieldSet{Branch: hasBranch, Stats: hasAdditions}

	commits := make([]models.Commit, 0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fields, fmt.Errorf("failed to read record: %w", err)
		}

		get := func(col string) string {
			if i, ok := index[col]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}

		c := models.Commit{
			Timestamp:  get(ColTimestamp),
			Repository: get(ColRepository),
			Branch:     get(ColBranch),
			Message:    get(ColMessage),
			Author:     get(ColAuthor),
			SHA:        get(ColSHA),
		}
		if fields.Stats {
			stats, err := parseStats(get(ColAdditions), get(ColDeletions), get(ColTotalChanges))
			if err != nil {
				return nil, fields, fmt.Errorf("commit %s: %w", c.SHA, err)
			}
			c.Stats = stats
		}
		commits = append(commits, c)
	}
	return commits, fields, nil
}

// LoadCSV reads commits from the file at path.
func LoadCSV(path string) ([]models.Commit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	commits, _, err := ReadCSV(file)
	return commits, err
}

func parseStats(additions, deletions, total string) (*models.ChangeStats, error) {
	var s models.ChangeStats
	var err error
	if s.Additions, err = atoi(additions); err != nil {
		return nil, fmt.Errorf("additions: %w", err)
	}
	if s.Deletions, err = atoi(deletions); err != nil {
		return nil, fmt.Errorf("deletions: %w", err)
	}
	if s.Total, err = atoi(total); err != nil {
		return nil, fmt.Errorf("total_changes: %w", err)
	}
	return &s, nil
}

func atoi(s string) (int, error) {
	if s = strings.TrimSpace(s); s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// DefaultFilename builds the output file name for a run:
// <org>_commits[_<year>][_all_branches][_with_stats][_<author>].<ext>
func DefaultFilename(cfg *config.CollectionConfig, format string) string {
	var b strings.Builder
	b.WriteString(cfg.Organization)
	b.WriteString("_commits")

	if len(cfg.Since) >= 4 {
		b.WriteString("_")
		b.WriteString(cfg.Since[:4])
	}
	if cfg.IncludeAllBranches {
		b.WriteString("_all_branches")
	}
	if cfg.IncludeStats {
		b.WriteString("_with_stats")
	}
	if cfg.AuthorFilter != "" {
		b.WriteString("_")
		b.WriteString(sanitize(cfg.AuthorFilter))
	}

	ext := config.FormatCSV
	if format == config.FormatParquet {
		ext = config.FormatParquet
	}
	return b.String() + "." + ext
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, s)
}
