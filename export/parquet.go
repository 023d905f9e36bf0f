package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"orgcommits/config"
	"orgcommits/models"
)

// commitRow is the Parquet schema of an exported commit. Branch and change
// columns are null when the field set does not carry them.
type commitRow struct {
	Timestamp    string  `parquet:"timestamp,snappy"`
	Repository   string  `parquet:"repository,snappy"`
	Branch       *string `parquet:"branch,optional,snappy"`
	Message      string  `parquet:"message,snappy"`
	Author       string  `parquet:"author,snappy"`
	SHA          string  `parquet:"sha,snappy"`
	Additions    *int64  `parquet:"additions,optional,snappy"`
	Deletions    *int64  `parquet:"deletions,optional,snappy"`
	TotalChanges *int64  `parquet:"total_changes,optional,snappy"`
}

func toRow(c models.Commit, fields FieldSet) commitRow {
	row := commitRow{
		Timestamp:  c.Timestamp,
		Repository: c.Repository,
		Message:    c.Message,
		Author:     c.Author,
		SHA:        c.SHA,
	}
	if fields.Branch {
		branch := c.Branch
		row.Branch = &branch
	}
	if fields.Stats {
		var s models.ChangeStats
		if c.Stats != nil {
			s = *c.Stats
		}
		additions, deletions, total := int64(s.Additions), int64(s.Deletions), int64(s.Total)
		row.Additions, row.Deletions, row.TotalChanges = &additions, &deletions, &total
	}
	return row
}

func (r commitRow) commit() models.Commit {
	c := models.Commit{
		Timestamp:  r.Timestamp,
		Repository: r.Repository,
		Message:    r.Message,
		Author:     r.Author,
		SHA:        r.SHA,
	}
	if r.Branch != nil {
		c.Branch = *r.Branch
	}
	if r.Additions != nil {
		c.Stats = &models.ChangeStats{
			Additions: int(*r.Additions),
			Deletions: int(deref(r.Deletions)),
			Total:     int(deref(r.TotalChanges)),
		}
	}
	return c
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// WriteParquet writes commits as a single Parquet file to w.
func WriteParquet(w io.Writer, commits []models.Commit, fields FieldSet) error {
	rows := make([]commitRow, len(commits))
	for i, c := range commits {
		rows[i] = toRow(c, fields)
	}

	writer := parquet.NewGenericWriter[commitRow](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	return writer.Close()
}

// SaveParquet writes commits to the file at path, replacing it.
func SaveParquet(path string, commits []models.Commit, fields FieldSet) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteParquet(file, commits, fields); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadParquet reads every commit from a Parquet file written by WriteParquet.
func ReadParquet(r io.ReaderAt) ([]models.Commit, error) {
	reader := parquet.NewGenericReader[commitRow](r)
	defer reader.Close()

	commits := make([]models.Commit, 0, reader.NumRows())
	if reader.NumRows() == 0 {
		return commits, nil
	}

	rows := make([]commitRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}
	for _, row := range rows[:n] {
		commits = append(commits, row.commit())
	}
	return commits, nil
}

// LoadParquet reads commits from the file at path.
func LoadParquet(path string) ([]models.Commit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return ReadParquet(bytes.NewReader(data))
}

// Save writes commits to path in the given format.
func Save(path, format string, commits []models.Commit, fields FieldSet) error {
	if format == config.FormatParquet {
		return SaveParquet(path, commits, fields)
	}
	return SaveCSV(path, commits, fields)
}

// Load reads commits from path, choosing the format by file extension.
func Load(path string) ([]models.Commit, error) {
	if strings.EqualFold(filepath.Ext(path), "."+config.FormatParquet) {
		return LoadParquet(path)
	}
	return LoadCSV(path)
}
